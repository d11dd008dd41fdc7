package images

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/dtnitsch/vincenzo/models"
	"github.com/dtnitsch/vincenzo/pkg/assets"
)

type response struct {
	data        []byte
	contentType string
	err         error
}

// fakeDownloader serves canned responses and records the URLs requested.
type fakeDownloader struct {
	responses map[string]response
	requested []string
}

func (f *fakeDownloader) GetBytes(ctx context.Context, rawURL string, limit int64) ([]byte, string, error) {
	f.requested = append(f.requested, rawURL)
	r, ok := f.responses[rawURL]
	if !ok {
		return nil, "", fmt.Errorf("%w: status code 404", models.ErrFetch)
	}
	return r.data, r.contentType, r.err
}

var defaultCriteria = models.ImageCriteria{ContentTypes: []string{"image/"}, MinBytes: 16}

func pageWith(body string) *models.Page {
	return &models.Page{
		URL:  "https://civitai.com/models/12345/example",
		HTML: "<html><head>" + body + "</head></html>",
	}
}

func TestCandidates_Order(t *testing.T) {
	html := `<html><head><meta property="og:image" content="https://cdn.example.com/og.jpg"></head><body>
<img src="https://image.civitai.com/a/avatar.jpeg" class="avatar">
<img src="https://static.example.com/logo.png">
<img src="https://image.civitai.com/a/first.jpeg" class="EdgeImage_image__x1 foo">
<img data-src="/a/lazy.jpeg">
<img src="https://image.civitai.com/a/first.jpeg">
<img src="data:image/png;base64,AAAA">
</body></html>`
	page := &models.Page{URL: "https://image.civitai.com/models/1", HTML: html}

	got := Candidates(page, []string{"image.civitai.com"})
	want := []string{
		"https://image.civitai.com/a/first.jpeg",
		"https://image.civitai.com/a/avatar.jpeg",
		"https://image.civitai.com/a/lazy.jpeg",
		"https://cdn.example.com/og.jpg",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Candidates() =\n%v\nwant\n%v", got, want)
	}
}

func TestCandidates_AnyHost(t *testing.T) {
	page := pageWith(`</head><body><img src="https://static.example.com/logo.png">`)
	got := Candidates(page, nil)
	if len(got) != 1 || got[0] != "https://static.example.com/logo.png" {
		t.Errorf("Candidates() = %v", got)
	}
}

func TestCandidates_LeadImageFallback(t *testing.T) {
	html := `<html><head>
<meta name="twitter:image" content="https://image.civitai.com/lead/preview.jpeg">
</head><body><article>
<img src="https://static.example.com/logo.png">
<p>Lead Model is a style LoRA trained on watercolor landscapes, with soft edges, muted palettes and visible paper texture.</p>
</article></body></html>`
	page := &models.Page{URL: "https://civitai.com/models/55", HTML: html}

	got := Candidates(page, []string{"image.civitai.com"})
	want := []string{"https://image.civitai.com/lead/preview.jpeg"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Candidates() = %v, want %v", got, want)
	}

	// a gallery image on an allowed host wins, and the lead image is not consulted
	page.HTML = strings.Replace(html, "</article>", `<img src="https://image.civitai.com/g/1.jpeg"></article>`, 1)
	got = Candidates(page, []string{"image.civitai.com"})
	want = []string{"https://image.civitai.com/g/1.jpeg"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Candidates() = %v, want %v", got, want)
	}
}

func TestSelect_FirstValidWins(t *testing.T) {
	good := bytes.Repeat([]byte{0xff}, 64)
	dl := &fakeDownloader{responses: map[string]response{
		"https://image.civitai.com/html.jpeg":  {data: []byte("<html>not an image, really</html>"), contentType: "text/html"},
		"https://image.civitai.com/tiny.jpeg":  {data: []byte{1, 2}, contentType: "image/jpeg"},
		"https://image.civitai.com/good.jpeg":  {data: good, contentType: "image/jpeg"},
		"https://image.civitai.com/later.jpeg": {data: good, contentType: "image/jpeg"},
	}}
	page := pageWith(`</head><body>
<img src="https://image.civitai.com/missing.jpeg">
<img src="https://image.civitai.com/html.jpeg">
<img src="https://image.civitai.com/tiny.jpeg">
<img src="https://image.civitai.com/good.jpeg">
<img src="https://image.civitai.com/later.jpeg">`)

	s := NewSelector(dl, Options{Hosts: []string{"image.civitai.com"}, Criteria: defaultCriteria}, nil)
	img := s.Select(context.Background(), page)

	if img.IsDefault {
		t.Fatal("expected page-derived image")
	}
	if img.SourceURL != "https://image.civitai.com/good.jpeg" {
		t.Errorf("SourceURL = %q", img.SourceURL)
	}
	if !bytes.Equal(img.Data, good) {
		t.Error("image bytes differ from download")
	}
	if len(dl.requested) != 4 {
		t.Errorf("requested %d candidates, want 4 (stop at first valid): %v", len(dl.requested), dl.requested)
	}
}

func TestSelect_FallsBackToDefault(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "no candidates", body: `</head><body><p>nothing</p>`},
		{name: "candidate 404", body: `</head><body><img src="https://image.civitai.com/gone.jpeg">`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSelector(&fakeDownloader{}, Options{Hosts: []string{"image.civitai.com"}, Criteria: defaultCriteria}, nil)
			img := s.Select(context.Background(), pageWith(tt.body))
			if !img.IsDefault {
				t.Fatal("expected default image")
			}
			if !bytes.Equal(img.Data, assets.DefaultImage()) {
				t.Error("default image bytes differ from bundled placeholder")
			}
		})
	}
}

func TestSelect_APIFallback(t *testing.T) {
	good := bytes.Repeat([]byte{0xaa}, 64)
	api := `{"id":12345,"modelVersions":[
{"id":1,"images":[{"url":"https://image.civitai.com/v1.jpeg"}]},
{"id":2,"images":[{"url":"","urlSmall":"https://image.civitai.com/v2-small.jpeg"}]}]}`
	dl := &fakeDownloader{responses: map[string]response{
		"https://api.test/api/v1/models/12345":    {data: []byte(api), contentType: "application/json"},
		"https://image.civitai.com/v1.jpeg":       {data: good, contentType: "image/jpeg"},
		"https://image.civitai.com/v2-small.jpeg": {data: good, contentType: "image/webp"},
	}}

	opts := Options{Hosts: []string{"image.civitai.com"}, Criteria: defaultCriteria, APIFallback: true, APIBase: "https://api.test/"}
	s := NewSelector(dl, opts, nil)

	img := s.Select(context.Background(), pageWith(""))
	if img.IsDefault || img.SourceURL != "https://image.civitai.com/v1.jpeg" {
		t.Errorf("got %+v, want first version image", img.SourceURL)
	}

	page := pageWith("")
	page.URL = "https://civitai.com/models/12345?modelVersionId=2"
	img = s.Select(context.Background(), page)
	if img.SourceURL != "https://image.civitai.com/v2-small.jpeg" {
		t.Errorf("SourceURL = %q, want version 2 image", img.SourceURL)
	}
}

func TestValidate(t *testing.T) {
	png := assets.DefaultImage()
	tests := []struct {
		name        string
		data        []byte
		contentType string
		criteria    models.ImageCriteria
		wantErr     error
	}{
		{name: "valid", data: png, contentType: "image/png", criteria: defaultCriteria},
		{name: "sniffed", data: png, contentType: "", criteria: defaultCriteria},
		{name: "empty", data: nil, contentType: "image/png", criteria: defaultCriteria, wantErr: errEmptyImage},
		{name: "html", data: []byte("<html><body>hello world</body></html>"), contentType: "text/html", criteria: defaultCriteria, wantErr: errNotImage},
		{name: "too small", data: png[:8], contentType: "image/png", criteria: defaultCriteria, wantErr: errTooSmall},
		{name: "decodable", data: png, contentType: "image/png", criteria: models.ImageCriteria{RequireDecodable: true}},
		{name: "not decodable", data: bytes.Repeat([]byte{1}, 64), contentType: "image/png", criteria: models.ImageCriteria{RequireDecodable: true}, wantErr: errUndecodableData},
		{name: "custom types", data: png, contentType: "image/png", criteria: models.ImageCriteria{ContentTypes: []string{"image/jpeg"}}, wantErr: errNotImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.data, tt.contentType, tt.criteria)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
