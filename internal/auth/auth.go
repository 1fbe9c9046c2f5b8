package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/fpang/photo-rater/internal/store"
	"github.com/rs/zerolog/log"
)

const credentialDir = ".photo-rater"

// Source identifies where a credential was found.
type Source string

const (
	SourceEnv   Source = "env"
	SourceStore Source = "store"
	SourceGPG   Source = "gpg"
	SourceNone  Source = "none"
)

// envVars maps a provider to the environment variables checked, in order.
var envVars = map[string][]string{
	"gemini":    {"PHOTO_RATER_API_KEY", "GEMINI_API_KEY"},
	"anthropic": {"PHOTO_RATER_API_KEY", "ANTHROPIC_API_KEY"},
}

// GetAPIKey retrieves the credential for provider from available sources.
// Priority order:
//  1. Environment (PHOTO_RATER_API_KEY, then the provider's own variable)
//  2. The local settings store (kv may be nil)
//  3. GPG-encrypted file at ~/.photo-rater/credentials-<provider>.gpg
func GetAPIKey(ctx context.Context, provider string, kv store.KVStore) (string, Source, error) {
	for _, name := range envVars[provider] {
		if key := strings.TrimSpace(os.Getenv(name)); key != "" {
			log.Debug().Str("provider", provider).Str("env", name).Msg("Using API key from environment variable")
			return key, SourceEnv, nil
		}
	}

	if kv != nil {
		key, err := kv.Get(ctx, store.CredentialKey(provider))
		switch {
		case err == nil && key != "":
			log.Debug().Str("provider", provider).Msg("Using API key from settings store")
			return key, SourceStore, nil
		case err != nil && !errors.Is(err, store.ErrNotFound):
			log.Warn().Err(err).Str("provider", provider).Msg("Failed to read stored credential")
		}
	}

	key, err := getFromGPG(provider)
	if err == nil && key != "" {
		log.Debug().Str("provider", provider).Msg("Using API key from GPG encrypted file")
		return key, SourceGPG, nil
	}

	log.Debug().Err(err).Str("provider", provider).Msg("No API key found")
	return "", SourceNone, &ValidationError{
		Type:    ErrTypeNoKey,
		Message: fmt.Sprintf("no %s API key found; set %s or run 'photo-rater key set'", provider, strings.Join(envVars[provider], " or ")),
	}
}

// MaskKey returns a display-safe form of a credential.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

// getFromGPG decrypts the API key from the provider's GPG-encrypted credentials file.
func getFromGPG(provider string) (string, error) {
	credPath, err := getCredentialPath(provider)
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(credPath); os.IsNotExist(err) {
		return "", fmt.Errorf("GPG credentials file not found at %s", credPath)
	}

	log.Debug().Str("file", credPath).Msg("Decrypting GPG credentials")

	cmd := exec.Command("gpg", "--decrypt", "--quiet", credPath)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("GPG decryption failed: %s", string(exitErr.Stderr))
		}
		return "", fmt.Errorf("GPG decryption failed: %w", err)
	}

	return strings.TrimSpace(string(output)), nil
}

// getCredentialPath returns the full path to the provider's credentials file.
func getCredentialPath(provider string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, credentialDir, "credentials-"+provider+".gpg"), nil
}
