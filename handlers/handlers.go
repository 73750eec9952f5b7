// Package handlers implements the HTTP API: menu and price management, order intake and status,
// staff accounts, and the token endpoints. Handlers are methods on API, which holds the store,
// the token issuer and the session registry.
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"go_trial/ordertaking/auth"
	"go_trial/ordertaking/logger"
	"go_trial/ordertaking/models"
	"go_trial/ordertaking/session"
	"go_trial/ordertaking/store"
)

const maxBodyBytes = 1 << 20

type API struct {
	Store    store.Store
	Issuer   *auth.Issuer
	Sessions session.Sessions
	Log      *logger.Logger

	// RequireSeating makes seating mandatory on new orders.
	RequireSeating bool
	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
}

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeJSON reads exactly one JSON object into dst. Keys must match dst's json tags exactly;
// encoding/json alone would accept "Seating" for "seating".
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return &models.ValidationError{Message: "Request body too large"}
		}
		return &models.ValidationError{Message: "Invalid request payload"}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return &models.ValidationError{Message: "Request body is empty"}
	}

	var keys map[string]json.RawMessage
	if json.Unmarshal(body, &keys) == nil {
		allowed := jsonFields(dst)
		for key := range keys {
			if allowed != nil && !allowed[key] {
				return &models.ValidationError{Field: key, Message: fmt.Sprintf("Unknown field %q", key)}
			}
		}
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	err = dec.Decode(dst)
	if err == nil {
		if dec.More() {
			return &models.ValidationError{Message: "Request body must contain a single JSON object"}
		}
		return nil
	}

	var (
		typeErr   *json.UnmarshalTypeError
		syntaxErr *json.SyntaxError
	)
	switch {
	case errors.As(err, &typeErr) && typeErr.Field == "":
		// the body itself is the wrong type, e.g. an array
		return &models.ValidationError{Message: "Invalid request payload"}
	case errors.As(err, &typeErr):
		return &models.ValidationError{Field: typeErr.Field, Message: fmt.Sprintf("Invalid value for %s", typeErr.Field)}
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return &models.ValidationError{Message: "Malformed JSON body"}
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		field := strings.TrimPrefix(err.Error(), "json: unknown field ")
		return &models.ValidationError{Field: strings.Trim(field, `"`), Message: "Unknown field " + field}
	default:
		return &models.ValidationError{Message: "Invalid request payload"}
	}
}

// jsonFields returns the exact key set of a struct's json tags, or nil when dst is not a struct.
func jsonFields(dst interface{}) map[string]bool {
	t := reflect.TypeOf(dst)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	fields := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			continue
		case "":
			name = f.Name
		}
		fields[name] = true
	}
	return fields
}

// fail maps an error to its status code. Anything that is not a validation, lookup or
// uniqueness error is logged and answered with fallback.
func (api *API) fail(w http.ResponseWriter, component string, err error, fallback string) int {
	var vErr *models.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, vErr.Message)
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicate):
		writeError(w, http.StatusConflict, "Already exists")
		return http.StatusConflict
	default:
		api.Log.Error(component, fmt.Sprintf("%s: %v", fallback, err))
		writeError(w, http.StatusInternalServerError, fallback)
		return http.StatusInternalServerError
	}
}
