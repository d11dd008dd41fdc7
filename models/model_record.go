package models

import "strings"

// Absent marks a field the page did not provide.
const Absent = "unknown"

// ModelRecord holds the metadata recovered from one model page.
type ModelRecord struct {
	Name         string   `json:"name" yaml:"name"`
	Type         string   `json:"type" yaml:"type"` // LoRA, Checkpoint, LoCon, ...
	Published    string   `json:"published" yaml:"published"`
	BaseModel    string   `json:"base_model" yaml:"base_model"`
	TriggerWords []string `json:"trigger_words" yaml:"trigger_words"`
	Hash         string   `json:"hash" yaml:"hash"`
	FileName     string   `json:"file_name" yaml:"file_name"`
	SourceURL    string   `json:"source_url" yaml:"source_url"`

	ModelID     int    `json:"model_id,omitempty" yaml:"model_id,omitempty"`
	VersionID   int    `json:"version_id,omitempty" yaml:"version_id,omitempty"`
	VersionName string `json:"version_name,omitempty" yaml:"version_name,omitempty"`
	UsageTips   string `json:"usage_tips,omitempty" yaml:"usage_tips,omitempty"`
	DownloadURL string `json:"download_url,omitempty" yaml:"download_url,omitempty"`
}

// NewModelRecord returns a record with every field marked absent.
func NewModelRecord(sourceURL string) *ModelRecord {
	r := &ModelRecord{
		Name:      Absent,
		Type:      Absent,
		Published: Absent,
		BaseModel: Absent,
		Hash:      Absent,
		FileName:  Absent,
		SourceURL: Absent,
	}
	if strings.TrimSpace(sourceURL) != "" {
		r.SourceURL = sourceURL
	}
	return r
}

// IsAbsent reports whether v carries no usable value.
func IsAbsent(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || v == Absent
}

// Field is one labeled line of the text rendering.
type Field struct {
	Label string
	Value string
}

// Fields returns the record's labeled values in export order. Absent values
// are rendered with the Absent marker so every export has the same shape.
func (r *ModelRecord) Fields() []Field {
	words := Absent
	if len(r.TriggerWords) > 0 {
		words = strings.Join(r.TriggerWords, ", ")
	}
	return []Field{
		{"Type", orAbsent(r.Type)},
		{"Published date", orAbsent(r.Published)},
		{"Base model", orAbsent(r.BaseModel)},
		{"Trigger words", words},
		{"Hash", orAbsent(r.Hash)},
		{"File name", orAbsent(r.FileName)},
		{"Source URL", orAbsent(r.SourceURL)},
	}
}

func orAbsent(v string) string {
	if IsAbsent(v) {
		return Absent
	}
	return strings.TrimSpace(v)
}
