package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtnitsch/vincenzo/models"
	"github.com/dtnitsch/vincenzo/pkg/assets"
)

// site serves one model page and its preview image, counting every request.
type site struct {
	server   *httptest.Server
	requests atomic.Int32
	image    []byte
	imageOK  bool
}

func newSite(t *testing.T, imageOK bool) *site {
	t.Helper()
	s := &site{image: bytes.Repeat([]byte{0x89, 'P', 'N', 'G'}, 256), imageOK: imageOK}
	mux := http.NewServeMux()
	mux.HandleFunc("/models/12345", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, s.page(t))
	})
	mux.HandleFunc("/img/preview.png", func(w http.ResponseWriter, r *http.Request) {
		if !s.imageOK {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(s.image)
	})
	mux.HandleFunc("/api/download/models/2", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="ExampleLoRA_v2.safetensors"`)
	})
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(s.server.Close)
	return s
}

func (s *site) page(t *testing.T) string {
	model := map[string]any{
		"id":          12345,
		"name":        "ExampleLoRA",
		"type":        "LoRA",
		"publishedAt": "2024-03-01",
		"modelVersions": []any{map[string]any{
			"id":           2,
			"name":         "v2",
			"publishedAt":  "2024-03-01",
			"baseModel":    "SDXL 1.0",
			"trainedWords": []string{"a", "b", "a", "c"},
			"files": []any{map[string]any{
				"name":   "example.safetensors",
				"type":   "Model",
				"url":    s.server.URL + "/api/download/models/2",
				"hashes": []any{map[string]any{"type": "AutoV2", "hash": "ABC123"}},
			}},
		}},
	}
	nd := map[string]any{"props": map[string]any{"pageProps": map[string]any{"trpcState": map[string]any{"json": map[string]any{
		"queries": []any{map[string]any{
			"queryKey": []any{[]string{"model", "getById"}, map[string]any{"input": map[string]any{"id": 12345}}},
			"state":    map[string]any{"data": model},
		}},
	}}}}}
	raw, err := json.Marshal(nd)
	require.NoError(t, err)
	return fmt.Sprintf(`<html><head><title>ExampleLoRA | Civitai</title></head><body>
<img class="EdgeImage_image__abc" src="/img/preview.png">
<script id="__NEXT_DATA__" type="application/json">%s</script></body></html>`, raw)
}

func testConfig(t *testing.T) *models.Config {
	cfg := models.DefaultConfig()
	cfg.OutputDir = filepath.Join(t.TempDir(), "output")
	cfg.ImageHosts = []string{"127.0.0.1"}
	return cfg
}

func newRunner(t *testing.T, cfg *models.Config) *Runner {
	t.Helper()
	r, err := NewRunner(cfg, nil)
	require.NoError(t, err)
	return r
}

func TestRun_ExportsModelWithImage(t *testing.T) {
	s := newSite(t, true)
	cfg := testConfig(t)

	out, err := newRunner(t, cfg).Run(context.Background(), s.server.URL+"/models/12345")
	require.NoError(t, err)

	assert.Equal(t, models.StatusSuccess, out.Result.Status)
	assert.False(t, out.Result.UsedDefaultImage)
	assert.Equal(t, filepath.Join(cfg.OutputDir, "ExampleLoRA.png"), out.Result.ImagePath)
	assert.Equal(t, filepath.Join(cfg.OutputDir, "ExampleLoRA.txt"), out.Result.TextPath)

	img, err := os.ReadFile(out.Result.ImagePath)
	require.NoError(t, err)
	assert.Equal(t, s.image, img)

	text, err := os.ReadFile(out.Result.TextPath)
	require.NoError(t, err)
	assert.Contains(t, string(text), "Type: LoRA\n")
	assert.Contains(t, string(text), "Trigger words: a, b, c\n")
	assert.Contains(t, string(text), "Hash: AUTOV2 | ABC123\n")
	assert.Contains(t, string(text), "File name: example.safetensors\n")

	entries, err := os.ReadDir(cfg.OutputDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRun_ImageNotFoundUsesDefault(t *testing.T) {
	s := newSite(t, false)
	cfg := testConfig(t)

	out, err := newRunner(t, cfg).Run(context.Background(), s.server.URL+"/models/12345")
	require.NoError(t, err)
	assert.True(t, out.Result.UsedDefaultImage)

	img, err := os.ReadFile(out.Result.ImagePath)
	require.NoError(t, err)
	assert.Equal(t, assets.DefaultImage(), img)
}

func TestRun_InvalidURL(t *testing.T) {
	s := newSite(t, true)
	cfg := testConfig(t)

	out, err := newRunner(t, cfg).Run(context.Background(), "not a url")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvalidURL))
	assert.Equal(t, models.StatusFailed, out.Result.Status)
	assert.Equal(t, "invalid_url", out.Result.ErrorType)
	assert.Nil(t, out.Record)

	assert.Zero(t, s.requests.Load(), "no request should reach the network")
	_, statErr := os.Stat(cfg.OutputDir)
	assert.True(t, os.IsNotExist(statErr), "output dir should not be created")
}

func TestRun_FetchError(t *testing.T) {
	s := newSite(t, true)

	out, err := newRunner(t, testConfig(t)).Run(context.Background(), s.server.URL+"/models/999")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrFetch))
	assert.Equal(t, "fetch_error", out.Result.ErrorType)
}

func TestRun_PageTooLarge(t *testing.T) {
	s := newSite(t, true)
	cfg := testConfig(t)
	cfg.MaxPageBytes = 256

	out, err := newRunner(t, cfg).Run(context.Background(), s.server.URL+"/models/12345")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrFetch))
	assert.Contains(t, out.Result.Reason, "exceeds 256 bytes")
}

func TestRun_NotAModelPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><p>nothing here</p></body></html>")
	}))
	defer srv.Close()

	out, err := newRunner(t, testConfig(t)).Run(context.Background(), srv.URL+"/models/1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrExtract))
	assert.Equal(t, "extract_error", out.Result.ErrorType)
}

func TestRun_TitledNonModelPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Sign in | Civitai</title></head><body><form></form></body></html>`)
	})
	// removed models redirect to the home page
	mux.HandleFunc("/models/404", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusFound)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Civitai: The Home of Open-Source Generative AI</title></head><body></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	for _, path := range []string{"/login", "/models/404"} {
		t.Run(path, func(t *testing.T) {
			cfg := testConfig(t)
			out, err := newRunner(t, cfg).Run(context.Background(), srv.URL+path)
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrExtract), "error = %v", err)
			assert.Equal(t, "extract_error", out.Result.ErrorType)

			_, statErr := os.Stat(cfg.OutputDir)
			assert.True(t, os.IsNotExist(statErr), "nothing should be written")
		})
	}
}

func TestRun_Idempotent(t *testing.T) {
	s := newSite(t, true)
	cfg := testConfig(t)
	r := newRunner(t, cfg)

	first, err := r.Run(context.Background(), s.server.URL+"/models/12345")
	require.NoError(t, err)
	firstText, err := os.ReadFile(first.Result.TextPath)
	require.NoError(t, err)

	second, err := r.Run(context.Background(), s.server.URL+"/models/12345")
	require.NoError(t, err)
	secondText, err := os.ReadFile(second.Result.TextPath)
	require.NoError(t, err)

	assert.Equal(t, firstText, secondText)
	entries, err := os.ReadDir(cfg.OutputDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRun_ResolveFileNames(t *testing.T) {
	s := newSite(t, true)
	cfg := testConfig(t)
	cfg.ResolveFileNames = true

	out, err := newRunner(t, cfg).Run(context.Background(), s.server.URL+"/models/12345")
	require.NoError(t, err)
	assert.Equal(t, "ExampleLoRA_v2.safetensors", out.Record.FileName)

	text, err := os.ReadFile(out.Result.TextPath)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(text), "File name: ExampleLoRA_v2.safetensors\n"))
}
