package server

import (
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"caseline/internal/storage"
)

// registerFiles serves stored uploads and generated reports as raw PDF
// downloads. These are plain chi routes, not Huma operations: the payloads
// are binary files, and the auth middleware still covers them because they
// live under the API base path.
func registerFiles(r chi.Router, basePath string, uploads *storage.UploadStore, reports *storage.ReportStore) {
	r.Get(path.Join(basePath, "uploads/{filename}"), func(w http.ResponseWriter, req *http.Request) {
		name := storage.SanitizeName(chi.URLParam(req, "filename"))
		if uploads == nil || !uploads.Exists(name) {
			respondStatusError(w, newAPIError(http.StatusNotFound, "not_found", "file not found", nil))
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		http.ServeFile(w, req, uploads.Path(name))
	})

	r.Get(path.Join(basePath, "reports/{filename}"), func(w http.ResponseWriter, req *http.Request) {
		name := storage.SanitizeName(chi.URLParam(req, "filename"))
		if reports == nil || !reports.Exists(name) {
			respondStatusError(w, newAPIError(http.StatusNotFound, "not_found", "file not found", nil))
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
		http.ServeFile(w, req, reports.Path(name))
	})
}
