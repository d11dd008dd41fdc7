package extractor

import (
	"errors"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"

	"github.com/dtnitsch/vincenzo/models"
)

// errNotModelURL stops a page title from naming a record on a non-model page,
// such as a login page or the home page a removed model redirects to.
var errNotModelURL = errors.New("page was not served from a /models/<id> url")

var titleSuffixes = []string{" | Civitai", " - Civitai"}

// CleanTitle strips the site suffix from a page title.
func CleanTitle(title string) string {
	title = normalizeText(title)
	for _, suffix := range titleSuffixes {
		title = strings.TrimSuffix(title, suffix)
	}
	return strings.TrimSpace(title)
}

// applyMeta reads OpenGraph and <title> tags.
func applyMeta(d *Document, rec *models.ModelRecord) error {
	if !d.titleAllowed(rec) {
		return errNotModelURL
	}
	title := d.Doc.Find(`meta[property="og:title"]`).AttrOr("content", "")
	if strings.TrimSpace(title) == "" {
		title = d.Doc.Find("title").First().Text()
	}
	setIfAbsent(&rec.Name, CleanTitle(title))
	setIfAbsent(&rec.Published, d.Doc.Find(`meta[property="article:published_time"]`).AttrOr("content", ""))

	if models.IsAbsent(rec.Name) {
		return errors.New("no title or og:title")
	}
	return nil
}

// applyReadability runs go-readability over the page for a title and date.
// It is skipped when earlier rules already found both.
func applyReadability(d *Document, rec *models.ModelRecord) error {
	if !models.IsAbsent(rec.Name) && !models.IsAbsent(rec.Published) {
		return nil
	}
	if !d.titleAllowed(rec) {
		return errNotModelURL
	}

	article, err := parseArticle(d.Page)
	if err != nil {
		return err
	}
	setIfAbsent(&rec.Name, CleanTitle(article.Title))
	if article.PublishedTime != nil {
		setIfAbsent(&rec.Published, article.PublishedTime.Format("2006-01-02"))
	}
	return nil
}

// parseArticle wraps readability for both the extractor and the image selector.
func parseArticle(page *models.Page) (readability.Article, error) {
	parsedURL, err := url.Parse(page.BaseURL())
	if err != nil {
		return readability.Article{}, err
	}
	readabilityParser := readability.NewParser()
	return readabilityParser.Parse(strings.NewReader(page.HTML), parsedURL)
}

// LeadImage returns readability's main image for page, or "".
func LeadImage(page *models.Page) string {
	article, err := parseArticle(page)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(article.Image)
}
