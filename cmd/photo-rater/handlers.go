package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fpang/photo-rater/internal/batch"
	"github.com/fpang/photo-rater/internal/export"
	"github.com/fpang/photo-rater/internal/filehandler"
	"github.com/fpang/photo-rater/internal/rating"
	"github.com/rs/zerolog/log"
)

const (
	maxUploadBytes  = 512 << 20
	maxUploadMemory = 64 << 20
)

// routes registers the JSON API.
func (a *app) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/batch", a.handleBatch)
	mux.HandleFunc("GET /api/stats", a.handleStats)
	mux.HandleFunc("POST /api/batch/start", a.handleStart)
	mux.HandleFunc("POST /api/batch/stop", a.handleStop)
	mux.HandleFunc("POST /api/batch/clear", a.handleClear)

	mux.HandleFunc("POST /api/items", a.handleUpload)
	mux.HandleFunc("POST /api/pick", a.handlePick)
	mux.HandleFunc("DELETE /api/items/{id}", a.handleRemove)
	mux.HandleFunc("GET /api/items/{id}/preview", a.handlePreview)

	mux.HandleFunc("GET /api/export.csv", a.handleExport)
	mux.HandleFunc("POST /api/report", a.handleReport)

	mux.HandleFunc("GET /api/credential", a.handleCredentialGet)
	mux.HandleFunc("PUT /api/credential", a.handleCredentialPut)
	mux.HandleFunc("DELETE /api/credential", a.handleCredentialDelete)

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		httpError(w, http.StatusNotFound, "not found")
	})
	return mux
}

// batchSnapshot is the full UI state, also pushed over /api/events.
type batchSnapshot struct {
	Running  bool         `json:"running"`
	InFlight int          `json:"inFlight"`
	Items    []batch.Item `json:"items"`
	Stats    batch.Stats  `json:"stats"`
}

func (a *app) snapshot() batchSnapshot {
	return batchSnapshot{
		Running:  a.ctrl.Running(),
		InFlight: a.ctrl.InFlight(),
		Items:    a.ctrl.Items(),
		Stats:    a.ctrl.Stats(),
	}
}

// GET /api/batch
func (a *app) handleBatch(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, a.snapshot())
}

// GET /api/stats
func (a *app) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, a.ctrl.Stats())
}

// POST /api/batch/start
func (a *app) handleStart(w http.ResponseWriter, r *http.Request) {
	a.ctrl.Start()
	respondJSON(w, http.StatusOK, a.snapshot())
}

// POST /api/batch/stop
func (a *app) handleStop(w http.ResponseWriter, r *http.Request) {
	a.ctrl.Stop()
	respondJSON(w, http.StatusOK, a.snapshot())
}

// POST /api/batch/clear {"confirm": true}
func (a *app) handleClear(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Confirm bool `json:"confirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Confirm {
		httpError(w, http.StatusBadRequest, "clearing the batch requires confirmation")
		return
	}

	removed := a.ctrl.Clear()
	respondJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// addPayload creates the preview and appends the item.
func (a *app) addPayload(name string, data []byte, meta *filehandler.ImageMetadata) batch.Item {
	if meta == nil {
		meta = filehandler.MetadataFromBytes(data)
	}
	handle := a.previews.Create(data)
	return a.ctrl.Add(name, data, handle, meta)
}

// POST /api/items (multipart, field "files")
func (a *app) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		httpError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		httpError(w, http.StatusBadRequest, "no files in upload")
		return
	}

	added := make([]batch.Item, 0, len(files))
	skipped := []string{}
	for _, fh := range files {
		if !filehandler.IsImage(filepath.Ext(fh.Filename)) {
			skipped = append(skipped, fh.Filename)
			continue
		}
		f, err := fh.Open()
		if err != nil {
			log.Warn().Err(err).Str("file", fh.Filename).Msg("Failed to open upload")
			skipped = append(skipped, fh.Filename)
			continue
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			log.Warn().Err(err).Str("file", fh.Filename).Msg("Failed to read upload")
			skipped = append(skipped, fh.Filename)
			continue
		}
		added = append(added, a.addPayload(filepath.Base(fh.Filename), data, nil))
	}

	log.Info().Int("added", len(added)).Int("skipped", len(skipped)).Msg("Photos uploaded")
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"items":   added,
		"skipped": skipped,
	})
}

// DELETE /api/items/{id}
func (a *app) handleRemove(w http.ResponseWriter, r *http.Request) {
	if err := a.ctrl.Remove(r.PathValue("id")); err != nil {
		if errors.Is(err, batch.ErrNotFound) {
			httpError(w, http.StatusNotFound, "item not found")
			return
		}
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/items/{id}/preview
func (a *app) handlePreview(w http.ResponseWriter, r *http.Request) {
	it, ok := a.ctrl.Get(r.PathValue("id"))
	if !ok {
		httpError(w, http.StatusNotFound, "item not found")
		return
	}
	blob, ok := a.previews.Get(it.Preview)
	if !ok {
		httpError(w, http.StatusNotFound, "preview not available")
		return
	}

	w.Header().Set("Content-Type", blob.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(blob.Data)
}

// GET /api/export.csv
func (a *app) handleExport(w http.ResponseWriter, r *http.Request) {
	items := a.ctrl.Items()

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(time.Now())))
	if err := export.WriteCSV(w, items); err != nil {
		log.Error().Err(err).Msg("CSV export failed")
		return
	}
	log.Info().Int("rows", len(items)).Msg("CSV exported")
}

// POST /api/report
func (a *app) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := a.report(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, rating.ErrNothingToSummarize):
			httpError(w, http.StatusConflict, "rate some photos before generating a report")
		case errors.Is(err, errNoBackend):
			httpError(w, http.StatusServiceUnavailable, "no API key configured")
		default:
			log.Error().Err(err).Msg("Group report failed")
			httpError(w, http.StatusBadGateway, err.Error())
		}
		return
	}
	respondJSON(w, http.StatusOK, report)
}
