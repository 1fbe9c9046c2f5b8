package main

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/fpang/photo-rater/internal/auth"
	"github.com/fpang/photo-rater/internal/cli"
	"github.com/fpang/photo-rater/internal/store"
	"github.com/rs/zerolog/log"
)

type credentialStatus struct {
	Provider   string      `json:"provider"`
	Model      string      `json:"model"`
	Configured bool        `json:"configured"`
	Source     auth.Source `json:"source"`
	Valid      bool        `json:"valid"`
	Warning    string      `json:"warning,omitempty"`
}

func (a *app) credentialStatus() credentialStatus {
	st := credentialStatus{
		Provider: a.cfg.Provider,
		Model:    a.cfg.Model,
		Source:   auth.SourceNone,
	}
	conn := a.connection()
	if conn == nil {
		st.Warning = cli.DescribeValidationError(errNoBackend)
		return st
	}
	st.Configured = true
	st.Source = conn.Source
	st.Valid = conn.Validation == nil
	if conn.Validation != nil {
		st.Warning = cli.DescribeValidationError(conn.Validation)
	}
	return st
}

// GET /api/credential
func (a *app) handleCredentialGet(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, a.credentialStatus())
}

// PUT /api/credential {"apiKey": "..."}
// The key is stored even when validation fails; the warning is returned.
func (a *app) handleCredentialPut(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APIKey string `json:"apiKey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	key := strings.TrimSpace(req.APIKey)
	if key == "" {
		httpError(w, http.StatusBadRequest, "apiKey is required")
		return
	}

	if err := a.kv.Put(r.Context(), store.CredentialKey(a.cfg.Provider), key); err != nil {
		log.Error().Err(err).Msg("Failed to store credential")
		httpError(w, http.StatusInternalServerError, "failed to store credential")
		return
	}
	log.Info().Str("provider", a.cfg.Provider).Str("key", auth.MaskKey(key)).Msg("Credential stored")

	if _, err := a.connect(r.Context()); err != nil {
		log.Error().Err(err).Msg("Failed to connect with stored credential")
		httpError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, a.credentialStatus())
}

// DELETE /api/credential
func (a *app) handleCredentialDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.kv.Delete(r.Context(), store.CredentialKey(a.cfg.Provider)); err != nil {
		log.Error().Err(err).Msg("Failed to delete credential")
		httpError(w, http.StatusInternalServerError, "failed to delete credential")
		return
	}
	log.Info().Str("provider", a.cfg.Provider).Msg("Credential deleted")

	// An environment or GPG key may still apply.
	if _, err := a.connect(r.Context()); err != nil {
		log.Debug().Err(err).Msg("No credential left after delete")
	}
	respondJSON(w, http.StatusOK, a.credentialStatus())
}
