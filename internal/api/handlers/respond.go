package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/roeimichael/VarProject/internal/contracts"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// ErrorResponse is the body of a rejected evaluation
type ErrorResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	Source string `json:"source,omitempty"`
	Row    int    `json:"row,omitempty"`
	Field  string `json:"field,omitempty"`
}

// respondDomainError maps the error taxonomy to HTTP statuses
func respondDomainError(w http.ResponseWriter, err error) {
	var schemaErr *contracts.SchemaError
	var corruptErr *contracts.CacheCorruptError

	switch {
	case errors.As(err, &schemaErr):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: err.Error(), Kind: "schema",
			Source: schemaErr.Source, Row: schemaErr.Row, Field: schemaErr.Field,
		})
	case errors.Is(err, contracts.ErrInvalidInput):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: "invalid_input"})
	case errors.As(err, &corruptErr):
		respondJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(), Kind: "cache_corrupt",
			Source: corruptErr.Source, Row: corruptErr.Row, Field: corruptErr.Field,
		})
	case errors.Is(err, contracts.ErrProvider):
		respondJSON(w, http.StatusBadGateway, ErrorResponse{Error: err.Error(), Kind: "provider"})
	default:
		respondJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Kind: "internal"})
	}
}
