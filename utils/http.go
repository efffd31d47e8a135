package utils

import (
	"encoding/json"
	"net/http"
	"time"
)

// Response is the uniform envelope every non-streaming endpoint returns
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return nil
	}

	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes an envelope with success=true and the given status code
func WriteSuccess(w http.ResponseWriter, status int, data interface{}, message string) error {
	return WriteJSON(w, status, Response{
		Success:   true,
		Data:      data,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// WriteOK writes a 200 OK envelope with optional data
func WriteOK(w http.ResponseWriter, data interface{}) error {
	return WriteSuccess(w, http.StatusOK, data, "")
}

// WriteCreated writes a 201 Created envelope with optional data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteSuccess(w, http.StatusCreated, data, "")
}

// WriteFailure writes an envelope with success=false and the given status code
func WriteFailure(w http.ResponseWriter, status int, message string) error {
	return WriteJSON(w, status, Response{
		Success:   false,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// WriteBadRequest writes a 400 Bad Request envelope
func WriteBadRequest(w http.ResponseWriter, message string) error {
	if message == "" {
		message = "Invalid request"
	}
	return WriteFailure(w, http.StatusBadRequest, message)
}

// WriteUnauthorized writes a 401 Unauthorized envelope
func WriteUnauthorized(w http.ResponseWriter, message string) error {
	if message == "" {
		message = "Authentication required"
	}
	return WriteFailure(w, http.StatusUnauthorized, message)
}

// WriteForbidden writes a 403 Forbidden envelope
func WriteForbidden(w http.ResponseWriter, message string) error {
	if message == "" {
		message = "Access forbidden"
	}
	return WriteFailure(w, http.StatusForbidden, message)
}

// WriteNotFound writes a 404 Not Found envelope
func WriteNotFound(w http.ResponseWriter, message string) error {
	if message == "" {
		message = "Resource not found"
	}
	return WriteFailure(w, http.StatusNotFound, message)
}

// WriteConflict writes a 409 Conflict envelope
func WriteConflict(w http.ResponseWriter, message string) error {
	return WriteFailure(w, http.StatusConflict, message)
}

// WriteBadGateway writes a 502 Bad Gateway envelope for upstream provider failures
func WriteBadGateway(w http.ResponseWriter, message string) error {
	if message == "" {
		message = "Upstream provider unavailable"
	}
	return WriteFailure(w, http.StatusBadGateway, message)
}

// WriteInternalServerError writes a 500 Internal Server Error envelope
func WriteInternalServerError(w http.ResponseWriter, message string) error {
	if message == "" {
		message = "Internal server error"
	}
	return WriteFailure(w, http.StatusInternalServerError, message)
}
