package models

// Page is the raw result of a single page fetch.
type Page struct {
	URL         string `json:"url"`       // as requested
	FinalURL    string `json:"final_url"` // after redirects
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`
	HTML        string `json:"-"`
}

// BaseURL is the URL relative links on the page resolve against.
func (p *Page) BaseURL() string {
	if p.FinalURL != "" {
		return p.FinalURL
	}
	return p.URL
}
