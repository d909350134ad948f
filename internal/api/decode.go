package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/patrickwarner/floodwatch/internal/reports"
	"github.com/patrickwarner/floodwatch/internal/storage"
)

// jsonReport is the JSON form of a create or update request. Coordinates and
// waterLevel are kept raw so that numbers, strings and objects all reach the
// workflow's parser unchanged.
type jsonReport struct {
	Location    string          `json:"location"`
	Coordinates json.RawMessage `json:"coordinates"`
	WaterLevel  json.RawMessage `json:"waterLevel"`
	Description string          `json:"description"`
	Status      string          `json:"status"`
}

// decodeInput reads a multipart, urlencoded or JSON report body.
func (s *Server) decodeInput(w http.ResponseWriter, r *http.Request) (reports.Input, error) {
	limit := s.MaxUploadBytes
	if limit <= 0 {
		limit = DefaultMaxUploadBytes
	}
	if r.ContentLength > limit {
		return reports.Input{}, fmt.Errorf("%w: %d bytes exceeds limit %d", errBodyTooLarge, r.ContentLength, limit)
	}
	body := &limitedBody{ReadCloser: http.MaxBytesReader(w, r.Body, limit), limit: limit}
	r.Body = body

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		mediaType = ""
	}

	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(limit); err != nil {
			return reports.Input{}, body.classify(err)
		}
		in := formInput(r)
		img, err := formImage(r)
		if err != nil {
			return reports.Input{}, body.classify(err)
		}
		in.Image = img
		return in, nil
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return reports.Input{}, body.classify(err)
		}
		return formInput(r), nil
	case "application/json", "":
		in, err := decodeJSON(body)
		if err != nil {
			return reports.Input{}, body.classify(err)
		}
		return in, nil
	default:
		return reports.Input{}, fmt.Errorf("%w: unsupported content type %q", errBadBody, mediaType)
	}
}

// limitedBody remembers whether the size limit was hit. A body cut off at the
// limit can surface as a parse error rather than *http.MaxBytesError.
type limitedBody struct {
	io.ReadCloser
	limit    int64
	exceeded bool
}

func (b *limitedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		b.exceeded = true
	}
	return n, err
}

// classify wraps a decode failure as errBodyTooLarge when the limit was
// reached and as errBadBody otherwise.
func (b *limitedBody) classify(err error) error {
	switch {
	case b.exceeded:
		return fmt.Errorf("%w: limit %d bytes: %v", errBodyTooLarge, b.limit, err)
	case errors.Is(err, errBadBody):
		return err
	default:
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
}

func formInput(r *http.Request) reports.Input {
	return reports.Input{
		Location:    r.PostFormValue("location"),
		Coordinates: r.PostFormValue("coordinates"),
		WaterLevel:  r.PostFormValue("waterLevel"),
		Description: r.PostFormValue("description"),
		Status:      r.PostFormValue("status"),
	}
}

func formImage(r *http.Request) (*storage.Image, error) {
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = file.Close()
	}()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return &storage.Image{
		Data:         data,
		OriginalName: header.Filename,
		ContentType:  header.Header.Get("Content-Type"),
	}, nil
}

func decodeJSON(body io.Reader) (reports.Input, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return reports.Input{}, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return reports.Input{}, nil
	}

	var req jsonReport
	if err := json.Unmarshal(raw, &req); err != nil {
		return reports.Input{}, fmt.Errorf("%w: %v", errBadBody, err)
	}
	level, err := rawScalar(req.WaterLevel)
	if err != nil {
		return reports.Input{}, err
	}
	return reports.Input{
		Location:    req.Location,
		Coordinates: rawText(req.Coordinates),
		WaterLevel:  level,
		Description: req.Description,
		Status:      req.Status,
	}, nil
}

// rawText returns the JSON text of v, or "" when it is absent or null.
func rawText(v json.RawMessage) string {
	s := strings.TrimSpace(string(v))
	if s == "null" {
		return ""
	}
	return s
}

// rawScalar turns a JSON number or string into its text.
func rawScalar(v json.RawMessage) (string, error) {
	s := rawText(v)
	if !strings.HasPrefix(s, `"`) {
		return s, nil
	}
	var text string
	if err := json.Unmarshal([]byte(s), &text); err != nil {
		return "", fmt.Errorf("%w: %v", errBadBody, err)
	}
	return text, nil
}
