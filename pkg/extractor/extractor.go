// Package extractor turns a fetched model page into a models.ModelRecord.
//
// Extraction runs a fixed list of named rules. Each rule may fail on its own
// and only fills fields earlier rules left absent, so a missing field never
// aborts the whole record.
package extractor

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/dtnitsch/vincenzo/internal/common"
	"github.com/dtnitsch/vincenzo/models"
)

// Document is the parsed page shared by all rules.
type Document struct {
	Page      *models.Page
	Doc       *goquery.Document
	ModelID   int
	VersionID int
	// ModelPage is set when the URL the page was served from is a /models/<id> URL.
	// A redirect away from a model URL clears it.
	ModelPage bool
}

// titleAllowed reports whether title-based rules may name the record: either
// an earlier rule already found the model, or the page URL is a model URL.
func (d *Document) titleAllowed(rec *models.ModelRecord) bool {
	return d.ModelPage || !models.IsAbsent(rec.Name)
}

// Rule fills fields of rec from doc.
type Rule struct {
	Name  string
	Apply func(doc *Document, rec *models.ModelRecord) error
}

// DefaultRules returns the rules in priority order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "next_data", Apply: applyNextData},
		{Name: "meta", Apply: applyMeta},
		{Name: "readability", Apply: applyReadability},
	}
}

type Extractor struct {
	rules  []Rule
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{rules: DefaultRules(), logger: logger}
}

// Extract builds a record from page. It fails with models.ErrExtract only when
// no rule can recover a model name.
func (e *Extractor) Extract(page *models.Page) (*models.ModelRecord, error) {
	if page == nil || strings.TrimSpace(page.HTML) == "" {
		return nil, fmt.Errorf("%w: empty page", models.ErrExtract)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse HTML: %v", models.ErrExtract, err)
	}

	modelID, versionID := common.ModelIDs(page.URL)
	servedID, _ := common.ModelIDs(page.BaseURL())
	d := &Document{Page: page, Doc: doc, ModelID: modelID, VersionID: versionID, ModelPage: servedID != 0}

	rec := models.NewModelRecord(page.URL)
	rec.ModelID = modelID
	rec.VersionID = versionID

	for _, rule := range e.rules {
		if err := rule.Apply(d, rec); err != nil {
			e.logger.Debug("extraction rule found nothing", "rule", rule.Name, "url", page.URL, "error", err)
		}
	}

	if models.IsAbsent(rec.Name) {
		return nil, fmt.Errorf("%w: no model name found on %s", models.ErrExtract, page.URL)
	}
	return rec, nil
}

// setIfAbsent stores v in *field when the field has no value yet.
func setIfAbsent(field *string, v string) {
	v = normalizeText(v)
	if v == "" || !models.IsAbsent(*field) {
		return
	}
	*field = v
}

// normalizeText collapses internal whitespace runs to single spaces.
func normalizeText(input string) string {
	return strings.Join(strings.Fields(input), " ")
}

// DedupeWords trims words, drops empties and removes repeats, keeping the first occurrence.
func DedupeWords(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
