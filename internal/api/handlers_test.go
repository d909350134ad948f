package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/patrickwarner/floodwatch/internal/db"
	"github.com/patrickwarner/floodwatch/internal/models"
	"github.com/patrickwarner/floodwatch/internal/observability"
	"github.com/patrickwarner/floodwatch/internal/reports"
	"github.com/patrickwarner/floodwatch/internal/storage"
	"github.com/patrickwarner/floodwatch/internal/token"
)

type testEnv struct {
	handler http.Handler
	server  *Server
	repo    *db.MemoryReports
	store   *storage.MemoryStore
	tokens  *token.Service
	clock   *clockwork.FakeClock
	metrics *observability.MockMetricsRegistry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, time.February, 14, 9, 0, 0, 0, time.UTC))
	tokens, err := token.NewService([]byte("test-secret"), clock)
	require.NoError(t, err)

	metrics := &observability.MockMetricsRegistry{}
	repo := db.NewMemoryReports(clock)
	repo.AddUser(models.User{ID: "u1", Name: "Sari", Email: "sari@example.com"})
	repo.AddUser(models.User{ID: "u2", Name: "Budi", Email: "budi@example.com"})
	store := storage.NewMemoryStore("https://cdn.example.com/banjirImage")
	uploader := storage.NewUploader(store, clock, zap.NewNop(), metrics)
	svc := reports.NewService(repo, uploader, zap.NewNop(), metrics)

	srv := NewServer(zap.NewNop(), svc, tokens, metrics)
	srv.CORSOrigin = "https://uas-sisi-klien-six.vercel.app"
	return &testEnv{
		handler: NewRouter(srv),
		server:  srv,
		repo:    repo,
		store:   store,
		tokens:  tokens,
		clock:   clock,
		metrics: metrics,
	}
}

func (e *testEnv) bearer(t *testing.T, userID string) string {
	t.Helper()
	tok, err := e.tokens.Issue(token.Claims{ID: userID})
	require.NoError(t, err)
	return "Bearer " + tok
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, path, auth string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	return req
}

type filePart struct {
	name        string
	contentType string
	data        []byte
}

func multipartRequest(t *testing.T, method, path, auth string, fields map[string]string, file *filePart) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="`+file.name+`"`)
		h.Set("Content-Type", file.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(file.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	return req
}

func validFields() map[string]string {
	return map[string]string{
		"location":    "Jl. Kemang Raya",
		"coordinates": `{"lat":-6.26,"lng":106.81}`,
		"waterLevel":  "45.5",
		"description": "knee deep",
	}
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func createReport(t *testing.T, e *testEnv, userID string) models.Report {
	t.Helper()
	rec := e.do(multipartRequest(t, http.MethodPost, "/api/reports", e.bearer(t, userID), validFields(), nil))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[models.Report](t, rec)
}

func TestCreateReport_NoToken(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(multipartRequest(t, http.MethodPost, "/api/reports", "", validFields(), nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Unauthorized: No token provided"}`, rec.Body.String())
	assert.Equal(t, 0, e.repo.Len())
	assert.Equal(t, 1, e.metrics.Count("auth_rejections", "missing_token"))
}

func TestCreateReport_ExpiredToken(t *testing.T) {
	e := newTestEnv(t)
	auth := e.bearer(t, "u1")
	e.clock.Advance(token.TTL + time.Second)

	rec := e.do(multipartRequest(t, http.MethodPost, "/api/reports", auth, validFields(), nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Unauthorized: Invalid token"}`, rec.Body.String())
	assert.Equal(t, 0, e.repo.Len())
}

func TestCreateReport_Multipart(t *testing.T) {
	e := newTestEnv(t)
	img := &filePart{name: "banjir kemang.jpg", contentType: "image/jpeg", data: []byte{0xff, 0xd8, 0xff}}

	rec := e.do(multipartRequest(t, http.MethodPost, "/api/reports", e.bearer(t, "u1"), validFields(), img))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "u1", body["userId"])
	assert.Equal(t, "ACTIVE", body["status"])
	assert.Equal(t, 45.5, body["waterLevel"])
	assert.Equal(t, map[string]any{"lat": -6.26, "lng": 106.81}, body["coordinates"])
	assert.NotContains(t, body, "user")

	keys := e.store.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasSuffix(keys[0], "-banjir-kemang.jpg"))
	assert.Equal(t, "https://cdn.example.com/banjirImage/"+keys[0], body["imageUrl"])
	stored, _ := e.store.Get(keys[0])
	assert.Equal(t, "image/jpeg", stored.Opts.ContentType)
	assert.Equal(t, 1, e.metrics.Count("requests", "create_report", http.MethodPost, "201"))
}

func TestCreateReport_JSONBody(t *testing.T) {
	e := newTestEnv(t)
	body := map[string]any{
		"location":    "Cawang",
		"coordinates": map[string]float64{"lat": -6.24, "lng": 106.86},
		"waterLevel":  120,
		"description": "chest deep",
	}

	rec := e.do(jsonRequest(http.MethodPost, "/api/reports", e.bearer(t, "u2"), body))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	report := decodeBody[models.Report](t, rec)
	assert.Equal(t, "u2", report.UserID)
	assert.Equal(t, 120.0, report.WaterLevel)
	assert.Nil(t, report.ImageURL)
}

func TestCreateReport_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(map[string]string)
		message string
	}{
		{"missing description", func(f map[string]string) { delete(f, "description") }, "Missing required fields"},
		{"malformed coordinates", func(f map[string]string) { f["coordinates"] = "not json" }, "Invalid coordinates format"},
		{"non numeric water level", func(f map[string]string) { f["waterLevel"] = "banyak" }, "Invalid water level value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			fields := validFields()
			tt.mutate(fields)

			rec := e.do(multipartRequest(t, http.MethodPost, "/api/reports", e.bearer(t, "u1"), fields, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeBody[map[string]any](t, rec)
			assert.Equal(t, tt.message, body["error"])
			assert.NotContains(t, body, "debug")
			assert.Equal(t, 0, e.repo.Len())
		})
	}
}

func TestCreateReport_MalformedJSON(t *testing.T) {
	e := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/reports", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", e.bearer(t, "u1"))

	rec := e.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid request body"}`, rec.Body.String())
}

func TestCreateReport_TooLarge(t *testing.T) {
	e := newTestEnv(t)
	e.server.MaxUploadBytes = 512
	img := &filePart{name: "big.jpg", contentType: "image/jpeg", data: bytes.Repeat([]byte("x"), 4096)}

	rec := e.do(multipartRequest(t, http.MethodPost, "/api/reports", e.bearer(t, "u1"), validFields(), img))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.JSONEq(t, `{"error":"Request body too large"}`, rec.Body.String())
	assert.Equal(t, 0, e.repo.Len())
	assert.Empty(t, e.store.Keys())
}

func TestCreateReport_TooLargeWithoutContentLength(t *testing.T) {
	e := newTestEnv(t)
	img := &filePart{name: "big.jpg", contentType: "image/jpeg", data: bytes.Repeat([]byte("x"), 4096)}

	// the cut may land inside a part header or a field value
	for cut := int64(300); cut <= 700; cut += 37 {
		e.server.MaxUploadBytes = cut
		req := multipartRequest(t, http.MethodPost, "/api/reports", e.bearer(t, "u1"), validFields(), img)
		req.ContentLength = -1
		rec := e.do(req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, "limit %d: %s", cut, rec.Body.String())
	}

	big := bytes.Repeat([]byte("a"), 2048)
	req := httptest.NewRequest(http.MethodPost, "/api/reports", bytes.NewReader(append([]byte(`{"location":"`), big...)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", e.bearer(t, "u1"))
	req.ContentLength = -1
	rec := e.do(req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, 0, e.repo.Len())
	assert.Empty(t, e.store.Keys())
}

func TestCreateReport_UploadFailure(t *testing.T) {
	e := newTestEnv(t)
	e.store.PutErr = errors.New("bucket not found")
	img := &filePart{name: "a.jpg", contentType: "image/jpeg", data: []byte("x")}

	rec := e.do(multipartRequest(t, http.MethodPost, "/api/reports", e.bearer(t, "u1"), validFields(), img))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to upload image"}`, rec.Body.String())
	assert.Equal(t, 0, e.repo.Len())
}

func TestCreateReport_InternalErrorDebugInDevelopment(t *testing.T) {
	e := newTestEnv(t)
	e.repo.CreateErr = errors.New("connection refused")

	rec := e.do(multipartRequest(t, http.MethodPost, "/api/reports", e.bearer(t, "u1"), validFields(), nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())

	e.server.Development = true
	rec = e.do(multipartRequest(t, http.MethodPost, "/api/reports", e.bearer(t, "u1"), validFields(), nil))
	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "connection refused", body["debug"])
}

func TestListReports_NewestFirstWithOwner(t *testing.T) {
	e := newTestEnv(t)
	first := createReport(t, e, "u1")
	e.clock.Advance(time.Minute)
	second := createReport(t, e, "u2")

	rec := e.do(httptest.NewRequest(http.MethodGet, "/api/reports", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0]["id"])
	assert.Equal(t, first.ID, list[1]["id"])
	assert.Equal(t, map[string]any{"name": "Budi", "email": "budi@example.com"}, list[0]["user"])
	assert.Equal(t, map[string]any{"name": "Sari", "email": "sari@example.com"}, list[1]["user"])
}

func TestListReports_EmptyArray(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(httptest.NewRequest(http.MethodGet, "/api/reports", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestCountUsers(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(httptest.NewRequest(http.MethodGet, "/api/reports/total-user", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", strings.TrimSpace(rec.Body.String()))
}

func TestUpdateReport_NotFound(t *testing.T) {
	e := newTestEnv(t)
	fields := validFields()
	fields["status"] = "RESOLVED"

	rec := e.do(multipartRequest(t, http.MethodPut, "/api/reports/abc", e.bearer(t, "u1"), fields, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Report not found"}`, rec.Body.String())
	assert.Equal(t, 0, e.repo.Len())

	fields["coordinates"] = "not-json"
	fields["waterLevel"] = "abc"
	rec = e.do(multipartRequest(t, http.MethodPut, "/api/reports/abc", e.bearer(t, "u1"), fields, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateReport_MissingFields(t *testing.T) {
	e := newTestEnv(t)
	report := createReport(t, e, "u1")

	rec := e.do(multipartRequest(t, http.MethodPut, "/api/reports/"+report.ID, e.bearer(t, "u1"),
		map[string]string{"location": "Kemang"}, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{
		"error": "Missing required fields",
		"details": {"location": false, "coordinates": true, "waterLevel": true, "description": true}
	}`, rec.Body.String())
}

func TestUpdateReport_InvalidStatus(t *testing.T) {
	e := newTestEnv(t)
	report := createReport(t, e, "u1")
	fields := validFields()
	fields["status"] = "CLOSED"

	rec := e.do(multipartRequest(t, http.MethodPut, "/api/reports/"+report.ID, e.bearer(t, "u1"), fields, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{
		"error": "Invalid status value",
		"details": {"status": "Status must be either 'ACTIVE' or 'RESOLVED'"}
	}`, rec.Body.String())
}

func TestUpdateReport_Success(t *testing.T) {
	e := newTestEnv(t)
	report := createReport(t, e, "u1")
	fields := validFields()
	fields["status"] = "RESOLVED"
	fields["coordinates"] = `[-6.3,106.9]`
	fields["waterLevel"] = "5"

	rec := e.do(multipartRequest(t, http.MethodPut, "/api/reports/"+report.ID, e.bearer(t, "u2"), fields, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody[models.Report](t, rec)
	assert.Equal(t, models.StatusResolved, updated.Status)
	assert.Equal(t, 5.0, updated.WaterLevel)
	assert.Equal(t, models.Coordinates{Lat: -6.3, Lng: 106.9}, updated.Coordinates.Data())
	assert.Equal(t, "u1", updated.UserID)
}

func TestDeleteReport_NonOwnerForbidden(t *testing.T) {
	e := newTestEnv(t)
	report := createReport(t, e, "u1")

	rec := e.do(jsonRequest(http.MethodDelete, "/api/reports/"+report.ID, e.bearer(t, "u2"), nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"Forbidden: Not your report"}`, rec.Body.String())
	assert.Equal(t, 1, e.repo.Len())
}

func TestDeleteReport_Owner(t *testing.T) {
	e := newTestEnv(t)
	report := createReport(t, e, "u1")

	rec := e.do(jsonRequest(http.MethodDelete, "/api/reports/"+report.ID, e.bearer(t, "u1"), nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Report deleted successfully"}`, rec.Body.String())
	assert.Equal(t, 0, e.repo.Len())

	rec = e.do(jsonRequest(http.MethodDelete, "/api/reports/"+report.ID, e.bearer(t, "u1"), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteReport_NoToken(t *testing.T) {
	e := newTestEnv(t)
	report := createReport(t, e, "u1")

	rec := e.do(httptest.NewRequest(http.MethodDelete, "/api/reports/"+report.ID, nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 1, e.repo.Len())
}

func TestUnknownRoute(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(httptest.NewRequest(http.MethodGet, "/api/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"Endpoint not found"}`, rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	e := newTestEnv(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/reports", nil)
	req.Header.Set("Origin", "https://uas-sisi-klien-six.vercel.app")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")

	rec := e.do(req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://uas-sisi-klien-six.vercel.app", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	e.server.DB = pingerFunc(func(context.Context) error { return errors.New("db down") })
	rec = e.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unavailable"}`, rec.Body.String())
}
