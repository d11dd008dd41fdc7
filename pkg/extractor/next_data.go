package extractor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dtnitsch/vincenzo/models"
)

// NextData is the subset of the page's __NEXT_DATA__ payload the exporter reads.
type NextData struct {
	Props struct {
		PageProps struct {
			TRPCState struct {
				JSON struct {
					Queries []TRPCQuery `json:"queries"`
				} `json:"json"`
			} `json:"trpcState"`
		} `json:"pageProps"`
	} `json:"props"`
}

type TRPCQuery struct {
	QueryKey json.RawMessage `json:"queryKey"`
	State    struct {
		Data json.RawMessage `json:"data"`
	} `json:"state"`
}

// Model mirrors the model object returned by the site's model.getById query
// and by the public /api/v1/models endpoint.
type Model struct {
	ID            int       `json:"id"`
	Name          string    `json:"name"`
	Type          string    `json:"type"`
	PublishedAt   string    `json:"publishedAt"`
	ModelVersions []Version `json:"modelVersions"`
}

type Version struct {
	ID            int             `json:"id"`
	Name          string          `json:"name"`
	PublishedAt   string          `json:"publishedAt"`
	BaseModel     string          `json:"baseModel"`
	BaseModelType string          `json:"baseModelType"`
	TrainedWords  json.RawMessage `json:"trainedWords"`
	ClipSkip      *float64        `json:"clipSkip"`
	Settings      *struct {
		Strength    *float64 `json:"strength"`
		MinStrength *float64 `json:"minStrength"`
		MaxStrength *float64 `json:"maxStrength"`
	} `json:"settings"`
	Files  []File  `json:"files"`
	Images []Image `json:"images"`
}

type File struct {
	Name   string          `json:"name"`
	Type   string          `json:"type"`
	URL    string          `json:"url"`
	Hashes json.RawMessage `json:"hashes"`
}

type Image struct {
	URL          string `json:"url"`
	URLSmall     string `json:"urlSmall"`
	URLThumbnail string `json:"urlThumbnail"`
}

// BestURL returns the first non-empty image URL variant.
func (i Image) BestURL() string {
	for _, u := range []string{i.URL, i.URLSmall, i.URLThumbnail} {
		if u = strings.TrimSpace(u); u != "" {
			return u
		}
	}
	return ""
}

var errNoNextData = errors.New("no __NEXT_DATA__ script")

// ParseNextData decodes the __NEXT_DATA__ script body.
func ParseNextData(raw string) (*NextData, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errNoNextData
	}
	nd := &NextData{}
	if err := json.Unmarshal([]byte(raw), nd); err != nil {
		// some pages HTML-escape the payload
		if err2 := json.Unmarshal([]byte(strings.ReplaceAll(raw, "&quot;", `"`)), nd); err2 != nil {
			return nil, fmt.Errorf("failed to decode __NEXT_DATA__: %w", err)
		}
	}
	return nd, nil
}

// FindModel returns the model.getById payload matching modelID. With no id
// match, the last model payload seen is returned.
func (nd *NextData) FindModel(modelID int) *Model {
	var candidate *Model
	for _, q := range nd.Props.PageProps.TRPCState.JSON.Queries {
		if !isModelQuery(q.QueryKey) || len(q.State.Data) == 0 {
			continue
		}
		m := &Model{}
		if err := json.Unmarshal(q.State.Data, m); err != nil {
			continue
		}
		if modelID == 0 || m.ID == modelID {
			return m
		}
		candidate = m
	}
	return candidate
}

// isModelQuery reports whether a queryKey looks like [["model","getById"], {...}].
func isModelQuery(raw json.RawMessage) bool {
	var key []json.RawMessage
	if err := json.Unmarshal(raw, &key); err != nil || len(key) == 0 {
		return false
	}
	var path []string
	if err := json.Unmarshal(key[0], &path); err != nil || len(path) < 2 {
		return false
	}
	return path[0] == "model" && path[1] == "getById"
}

// ChooseVersion picks the version matching versionID, else the most recently published one.
func (m *Model) ChooseVersion(versionID int) *Version {
	if len(m.ModelVersions) == 0 {
		return nil
	}
	if versionID != 0 {
		for i := range m.ModelVersions {
			if m.ModelVersions[i].ID == versionID {
				return &m.ModelVersions[i]
			}
		}
	}
	latest := &m.ModelVersions[0]
	for i := range m.ModelVersions[1:] {
		v := &m.ModelVersions[i+1]
		if v.PublishedAt > latest.PublishedAt {
			latest = v
		}
	}
	return latest
}

// Words returns the version's trigger words in page order without duplicates.
func (v *Version) Words() []string {
	if len(v.TrainedWords) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(v.TrainedWords, &list); err == nil {
		return DedupeWords(list)
	}
	var single string
	if err := json.Unmarshal(v.TrainedWords, &single); err == nil {
		return DedupeWords([]string{single})
	}
	return nil
}

// UsageTips renders clip skip and strength settings, e.g. "CLIP SKIP: 2 | STRENGTH: 0.8 (min 0.5, max 1)".
func (v *Version) UsageTips() string {
	var parts []string
	if v.ClipSkip != nil {
		parts = append(parts, "CLIP SKIP: "+formatNumber(*v.ClipSkip))
	}
	if v.Settings != nil && v.Settings.Strength != nil {
		s := "STRENGTH: " + formatNumber(*v.Settings.Strength)
		var extra []string
		if v.Settings.MinStrength != nil {
			extra = append(extra, "min "+formatNumber(*v.Settings.MinStrength))
		}
		if v.Settings.MaxStrength != nil {
			extra = append(extra, "max "+formatNumber(*v.Settings.MaxStrength))
		}
		if len(extra) > 0 {
			s += " (" + strings.Join(extra, ", ") + ")"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " | ")
}

// ModelFile returns the first file of type Model.
func (v *Version) ModelFile() *File {
	for i := range v.Files {
		if strings.EqualFold(v.Files[i].Type, "model") {
			return &v.Files[i]
		}
	}
	return nil
}

var hashPreference = []string{"AUTOV2", "SHA256", "SHA1", "CRC32"}

// Hash renders the preferred hash as "TYPE | value", or "" when none is present.
func (f *File) Hash() string {
	if len(f.Hashes) == 0 {
		return ""
	}

	var byType map[string]any
	if err := json.Unmarshal(f.Hashes, &byType); err == nil {
		for _, k := range []string{"AutoV2", "AUTOV2"} {
			if v, ok := byType[k].(string); ok && strings.TrimSpace(v) != "" {
				return "AUTOV2 | " + strings.TrimSpace(v)
			}
		}
		return ""
	}

	var list []struct {
		Type string `json:"type"`
		Hash string `json:"hash"`
	}
	if err := json.Unmarshal(f.Hashes, &list); err != nil {
		return ""
	}
	for _, want := range hashPreference {
		for _, h := range list {
			if strings.ToUpper(h.Type) == want && strings.TrimSpace(h.Hash) != "" {
				return want + " | " + strings.TrimSpace(h.Hash)
			}
		}
	}
	return ""
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// applyNextData reads the embedded tRPC state, the most complete source on model pages.
func applyNextData(d *Document, rec *models.ModelRecord) error {
	nd, err := ParseNextData(d.Doc.Find(`script#__NEXT_DATA__`).First().Text())
	if err != nil {
		return err
	}

	m := nd.FindModel(d.ModelID)
	if m == nil {
		return errors.New("no model.getById query in __NEXT_DATA__")
	}
	setIfAbsent(&rec.Name, m.Name)
	setIfAbsent(&rec.Type, m.Type)
	if rec.ModelID == 0 {
		rec.ModelID = m.ID
	}

	v := m.ChooseVersion(d.VersionID)
	if v == nil {
		setIfAbsent(&rec.Published, m.PublishedAt)
		return errors.New("model has no versions")
	}
	rec.VersionID = v.ID
	rec.VersionName = v.Name

	setIfAbsent(&rec.Published, v.PublishedAt)
	setIfAbsent(&rec.Published, m.PublishedAt)
	setIfAbsent(&rec.BaseModel, v.BaseModel)
	setIfAbsent(&rec.BaseModel, v.BaseModelType)
	if len(rec.TriggerWords) == 0 {
		rec.TriggerWords = v.Words()
	}
	if rec.UsageTips == "" {
		rec.UsageTips = v.UsageTips()
	}

	if f := v.ModelFile(); f != nil {
		setIfAbsent(&rec.Hash, f.Hash())
		setIfAbsent(&rec.FileName, f.Name)
		if rec.DownloadURL == "" {
			rec.DownloadURL = strings.TrimSpace(f.URL)
		}
	}
	return nil
}
