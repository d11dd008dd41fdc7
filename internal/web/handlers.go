package web

import (
	"encoding/base64"
	"encoding/json"
	"html/template"
	"net/http"
	"strings"

	"github.com/dtnitsch/vincenzo/models"
	"github.com/dtnitsch/vincenzo/pkg/pipeline"
)

// StatusDone is shown after a successful form export.
const StatusDone = "done~!"

type formView struct {
	URL       string
	Status    string
	Failed    bool
	Result    *models.ExportResult
	Record    *models.ModelRecord
	Fields    []models.Field
	ImageData template.URL
}

// ExportRequest is the body of POST /api/export.
type ExportRequest struct {
	URL string `json:"url"`
}

// ExportResponse is the reply of POST /api/export.
type ExportResponse struct {
	Result *models.ExportResult `json:"result"`
	Record *models.ModelRecord  `json:"record,omitempty"`
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	s.renderForm(w, http.StatusOK, formView{})
}

func (s *Server) handleFormExport(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderForm(w, http.StatusBadRequest, formView{Status: "invalid form submission", Failed: true})
		return
	}
	rawURL := strings.TrimSpace(r.PostFormValue("url"))

	out, err := s.runner.Run(r.Context(), rawURL)
	view := formView{URL: rawURL, Result: out.Result, Record: out.Record}
	if out.Record != nil {
		view.Fields = out.Record.Fields()
	}
	if out.Image != nil && len(out.Image.Data) > 0 {
		view.ImageData = dataURL(out.Image)
	}

	if err != nil {
		view.Status = "Error: " + err.Error()
		view.Failed = true
		s.renderForm(w, statusFor(err), view)
		return
	}
	view.Status = StatusDone
	s.renderForm(w, http.StatusOK, view)
}

func (s *Server) handleAPIExport(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	out, err := s.runner.Run(r.Context(), req.URL)
	code := http.StatusOK
	if err != nil {
		code = statusFor(err)
	}
	s.respondWithJSON(w, code, ExportResponse{Result: out.Result, Record: out.Record})
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	s.respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusFor maps a pipeline error kind to an HTTP status.
func statusFor(err error) int {
	switch models.ErrorKind(err) {
	case "invalid_url":
		return http.StatusBadRequest
	case "fetch_error":
		return http.StatusBadGateway
	case "extract_error":
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func dataURL(img *models.PreviewImage) template.URL {
	ct := img.ContentType
	if !strings.HasPrefix(ct, "image/") {
		ct = "image/png"
	}
	return template.URL("data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(img.Data))
}

// --- Helper Functions ---

func (s *Server) renderForm(w http.ResponseWriter, code int, view formView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := s.form.Execute(w, view); err != nil {
		s.logger.Error("failed to render form", "error", err)
	}
}

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

var _ Runner = (*pipeline.Runner)(nil)
