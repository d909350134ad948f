package token

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

var (
	ErrInvalid     = errors.New("invalid token")
	ErrExpired     = fmt.Errorf("%w: expired", ErrInvalid)
	ErrEmptySecret = errors.New("token secret must not be empty")
)

// TTL is the fixed validity window of issued tokens.
const TTL = 24 * time.Hour

// header is the only header we issue or accept.
var header = mustEncode(map[string]string{"alg": "HS256", "typ": "JWT"})

// Claims identifies the caller a token was issued to.
type Claims struct {
	ID        string
	Name      string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// payload structure for encoding/decoding
type payload struct {
	ID    json.RawMessage `json:"id"`
	Name  string          `json:"name,omitempty"`
	Email string          `json:"email,omitempty"`
	IAT   int64           `json:"iat"`
	EXP   int64           `json:"exp"`
}

// Service issues and verifies HS256-signed identity tokens.
type Service struct {
	secret []byte
	clock  clockwork.Clock
}

// NewService returns a Service signing with secret. A nil clock uses wall time.
func NewService(secret []byte, clock clockwork.Clock) (*Service, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{secret: secret, clock: clock}, nil
}

// Issue signs claims into a bearer token valid for TTL from now. IssuedAt and
// ExpiresAt on the input are ignored.
func (s *Service) Issue(c Claims) (string, error) {
	if c.ID == "" {
		return "", fmt.Errorf("%w: missing id", ErrInvalid)
	}
	id, err := json.Marshal(c.ID)
	if err != nil {
		return "", err
	}
	now := s.clock.Now()
	pl := payload{
		ID:    id,
		Name:  c.Name,
		Email: c.Email,
		IAT:   now.Unix(),
		EXP:   now.Add(TTL).Unix(),
	}
	data, err := json.Marshal(pl)
	if err != nil {
		return "", err
	}

	enc := base64.RawURLEncoding
	signingInput := header + "." + enc.EncodeToString(data)
	return signingInput + "." + enc.EncodeToString(s.sign(signingInput)), nil
}

// Verify checks the token signature and expiry and returns its claims.
func (s *Service) Verify(token string) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Claims{}, ErrInvalid
	}
	enc := base64.RawURLEncoding

	var hdr struct {
		Alg string `json:"alg"`
	}
	rawHdr, err := enc.DecodeString(parts[0])
	if err != nil || json.Unmarshal(rawHdr, &hdr) != nil || hdr.Alg != "HS256" {
		return Claims{}, ErrInvalid
	}

	sig, err := enc.DecodeString(parts[2])
	if err != nil {
		return Claims{}, ErrInvalid
	}
	if !hmac.Equal(s.sign(parts[0]+"."+parts[1]), sig) {
		return Claims{}, ErrInvalid
	}

	data, err := enc.DecodeString(parts[1])
	if err != nil {
		return Claims{}, ErrInvalid
	}
	var pl payload
	if err := json.Unmarshal(data, &pl); err != nil {
		return Claims{}, ErrInvalid
	}
	if pl.EXP == 0 {
		return Claims{}, fmt.Errorf("%w: missing exp", ErrInvalid)
	}
	if !s.clock.Now().Before(time.Unix(pl.EXP, 0)) {
		return Claims{}, ErrExpired
	}
	id, err := parseID(pl.ID)
	if err != nil {
		return Claims{}, err
	}

	return Claims{
		ID:        id,
		Name:      pl.Name,
		Email:     pl.Email,
		IssuedAt:  time.Unix(pl.IAT, 0),
		ExpiresAt: time.Unix(pl.EXP, 0),
	}, nil
}

func (s *Service) sign(signingInput string) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(signingInput))
	return mac.Sum(nil)
}

// parseID accepts the identity as a JSON string or integer.
func parseID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", fmt.Errorf("%w: missing id", ErrInvalid)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("%w: malformed id", ErrInvalid)
	}
	switch id := v.(type) {
	case string:
		if strings.TrimSpace(id) == "" {
			return "", fmt.Errorf("%w: missing id", ErrInvalid)
		}
		return id, nil
	case json.Number:
		n, err := strconv.ParseInt(id.String(), 10, 64)
		if err != nil {
			return "", fmt.Errorf("%w: malformed id", ErrInvalid)
		}
		return strconv.FormatInt(n, 10), nil
	default:
		return "", fmt.Errorf("%w: malformed id", ErrInvalid)
	}
}

func mustEncode(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(data)
}
