package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtnitsch/vincenzo/models"
	"github.com/dtnitsch/vincenzo/pkg/pipeline"
)

// fakeRunner succeeds for civitai URLs and reports invalid_url for everything else.
type fakeRunner struct {
	calls []string
}

func (f *fakeRunner) Run(ctx context.Context, rawURL string) (*pipeline.Outcome, error) {
	f.calls = append(f.calls, rawURL)
	if !strings.HasPrefix(rawURL, "https://civitai.com/") {
		err := fmt.Errorf("%w: %q is not an http(s) url", models.ErrInvalidURL, rawURL)
		return &pipeline.Outcome{Result: &models.ExportResult{
			Status:    models.StatusFailed,
			ErrorType: models.ErrorKind(err),
			Reason:    err.Error(),
		}}, err
	}
	rec := models.NewModelRecord(rawURL)
	rec.Name = "ExampleLoRA"
	rec.Type = "LoRA"
	return &pipeline.Outcome{
		Record: rec,
		Image:  &models.PreviewImage{Data: []byte("png"), ContentType: "image/png"},
		Result: &models.ExportResult{
			BaseName:  "ExampleLoRA",
			ImagePath: "output/ExampleLoRA.png",
			TextPath:  "output/ExampleLoRA.txt",
			Status:    models.StatusSuccess,
		},
	}, nil
}

func newTestServer(t *testing.T) (*Server, *fakeRunner) {
	t.Helper()
	runner := &fakeRunner{}
	s, err := NewServer(runner, slog.Default())
	require.NoError(t, err)
	return s, runner
}

func TestForm_Get(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="url"`)
	assert.NotContains(t, rec.Body.String(), StatusDone)
}

func TestForm_ExportSuccess(t *testing.T) {
	s, runner := newTestServer(t)

	form := url.Values{"url": {"https://civitai.com/models/12345"}}
	req := httptest.NewRequest(http.MethodPost, "/export", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, StatusDone)
	assert.Contains(t, body, "ExampleLoRA")
	assert.Contains(t, body, "data:image/png;base64,")
	assert.Equal(t, []string{"https://civitai.com/models/12345"}, runner.calls)
}

func TestForm_ExportInvalidURL(t *testing.T) {
	s, _ := newTestServer(t)

	form := url.Values{"url": {"not a url"}}
	req := httptest.NewRequest(http.MethodPost, "/export", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Error:")
	assert.NotContains(t, rec.Body.String(), StatusDone)
}

func TestAPIExport(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name       string
		body       string
		wantCode   int
		wantStatus string
	}{
		{"success", `{"url":"https://civitai.com/models/12345"}`, http.StatusOK, models.StatusSuccess},
		{"invalid url", `{"url":"not a url"}`, http.StatusBadRequest, models.StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/export", strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantCode, rec.Code)
			var resp ExportResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Result.Status)
		})
	}
}

func TestAPIExport_BadBody(t *testing.T) {
	s, runner := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/export", strings.NewReader("{")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, runner.calls)
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadGateway, statusFor(models.ErrFetch))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(models.ErrExtract))
	assert.Equal(t, http.StatusInternalServerError, statusFor(models.ErrIO))
}
