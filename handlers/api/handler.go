package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-kb/errors"
	"github.com/nijaru/yt-kb/middleware"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Detail string `json:"detail"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		middleware.GetLogger(r.Context()).WithError(err).Error("Failed to encode response")
	}
}

// respondError writes {"detail": ...}. Only the AppError message is exposed.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.StatusCode(err)
	msg := "Internal server error"

	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}

	entry := middleware.GetLogger(r.Context()).WithFields(logrus.Fields{
		"error":  err,
		"status": code,
	})
	if code >= http.StatusInternalServerError {
		entry.Error("Request error")
	} else {
		entry.Debug("Request rejected")
	}

	respondJSON(w, r, code, errorResponse{Detail: msg})
}

// readJSON decodes the request body into v. An empty body leaves v untouched
// when allowEmpty is set.
func readJSON(w http.ResponseWriter, r *http.Request, v interface{}, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if err == io.EOF && allowEmpty {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errors.InvalidInput("readJSON", err, "Request body too large")
		}
		return errors.InvalidInput("readJSON", err, "Invalid JSON format")
	}
	return nil
}
