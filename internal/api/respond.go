// Copyright 2025 Certen Protocol
//
// Package api wires the scoring service's HTTP surface: one
// http.NewServeMux() with method+pattern routes exactly as the teacher's
// main.go route-registration block does, plus a small writeJSONError
// helper lifted from the teacher's pkg/server convention (centralized here
// instead of once per handler file, spec.md §6/§7).
package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/passportxyz/scorer/internal/apierr"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

func writeJSONError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeAPIError renders err as spec.md §7's `{error: "<kind>", message:
// "<human>"}` envelope, mapping Kind to status code and falling back to
// Internal for errors the handler didn't wrap.
func writeAPIError(w http.ResponseWriter, logger *log.Logger, err error) {
	apiErr := apierr.As(err)
	if apiErr.Kind == apierr.Internal || apiErr.Kind == apierr.Database {
		logger.Printf("request failed: %v", apiErr)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Kind.StatusCode())
	json.NewEncoder(w).Encode(map[string]string{
		"error":   string(apiErr.Kind),
		"message": apiErr.Message,
	})
}
