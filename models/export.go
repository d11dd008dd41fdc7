package models

// PreviewImage is the image written next to the metadata file.
type PreviewImage struct {
	Data        []byte
	IsDefault   bool   // bundled placeholder rather than a page image
	SourceURL   string // empty for the placeholder
	ContentType string
}

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// ExportResult reports the outcome of one export back to the front end.
type ExportResult struct {
	BaseName         string `json:"base_name,omitempty" yaml:"base_name,omitempty"`
	ImagePath        string `json:"image_path,omitempty" yaml:"image_path,omitempty"`
	TextPath         string `json:"text_path,omitempty" yaml:"text_path,omitempty"`
	Status           string `json:"status" yaml:"status"`
	ErrorType        string `json:"error_type,omitempty" yaml:"error_type,omitempty"`
	Reason           string `json:"reason,omitempty" yaml:"reason,omitempty"`
	UsedDefaultImage bool   `json:"used_default_image" yaml:"used_default_image"`
	Replaced         bool   `json:"replaced" yaml:"replaced"` // an earlier export of the same name was overwritten
}
