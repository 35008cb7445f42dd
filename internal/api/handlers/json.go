package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/Togather-Foundation/checkin/internal/domain/errs"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeJSON reads exactly one JSON object into dst. Malformed input becomes
// a validation error; an oversized body keeps its *http.MaxBytesError.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &maxErr), errs.Kind(err) != nil:
			return err
		case errors.Is(err, io.EOF):
			return errs.Validation("request body is required")
		case errors.As(err, &typeErr):
			return errs.Validation(fmt.Sprintf("%s has the wrong type", typeErr.Field))
		default:
			return errs.Validation("malformed JSON body")
		}
	}
	if dec.More() {
		return errs.Validation("request body must contain a single JSON object")
	}
	return nil
}

// pathID parses a positive integer path parameter.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.Validation(fmt.Sprintf("invalid %s", name))
	}
	return id, nil
}
