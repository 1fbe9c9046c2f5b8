package main

import (
	"errors"
	"net/http"
	"sort"

	"github.com/fpang/photo-rater/internal/batch"
	"github.com/fpang/photo-rater/internal/filehandler"
	"github.com/ncruces/zenity"
	"github.com/rs/zerolog/log"
)

// pickWithDialog opens the native multi-file picker.
func pickWithDialog() ([]string, error) {
	patterns := make([]string, 0, len(filehandler.SupportedImageExtensions))
	for ext := range filehandler.SupportedImageExtensions {
		patterns = append(patterns, "*"+ext)
	}
	sort.Strings(patterns)

	return zenity.SelectFileMultiple(
		zenity.Title("Select photos to rate"),
		zenity.FileFilters{
			{Name: "Photos", Patterns: patterns},
		},
	)
}

// POST /api/pick
func (a *app) handlePick(w http.ResponseWriter, r *http.Request) {
	paths, err := a.pick()
	if err != nil {
		if errors.Is(err, zenity.ErrCanceled) {
			respondJSON(w, http.StatusOK, map[string]interface{}{
				"items":    []batch.Item{},
				"canceled": true,
			})
			return
		}
		log.Error().Err(err).Msg("File picker failed")
		httpError(w, http.StatusInternalServerError, "file picker failed")
		return
	}

	added := make([]batch.Item, 0, len(paths))
	skipped := []string{}
	for _, p := range paths {
		img, err := filehandler.LoadImageFile(p)
		if err != nil {
			log.Warn().Err(err).Str("path", p).Msg("Skipping picked file")
			skipped = append(skipped, p)
			continue
		}
		data, err := img.ReadData()
		if err != nil {
			log.Warn().Err(err).Str("path", p).Msg("Skipping unreadable file")
			skipped = append(skipped, p)
			continue
		}
		added = append(added, a.addPayload(img.Name(), data, img.Metadata))
	}

	log.Info().Int("added", len(added)).Int("skipped", len(skipped)).Msg("Photos picked")
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"items":   added,
		"skipped": skipped,
	})
}
