package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"elclasico/apperr"

	"github.com/gorilla/mux"
)

const maxBodySize = 1 << 20

var (
	errInvalidBody = apperr.New(apperr.Validation, "invalid request body")
	errInvalidID   = apperr.New(apperr.Validation, "invalid id")

	errInsufficientRole = apperr.New(apperr.Forbidden, "you do not have permission to do this")
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.Validation:
		return http.StatusBadRequest
	case apperr.Unauthenticated:
		return http.StatusUnauthorized
	case apperr.Forbidden:
		return http.StatusForbidden
	case apperr.NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a status code. Unclassified errors are logged and
// hidden behind a generic message.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		h.log.Errorw("msg", "request failed", "method", r.Method, "path", r.URL.Path,
			"request_id", RequestIDFromContext(r.Context()), "err", err)
	}
	writeJSON(w, status, errorBody{Error: apperr.Message(err, "internal server error")})
}

// decodeJSON reads a single JSON object into v.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Wrap(apperr.Validation, "request body is required", err)
		}
		return apperr.Wrap(apperr.Validation, errInvalidBody.Message, err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}
