// Package api provides the HTTP surface for CareVoice report sessions.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Response is the standard JSON envelope for API replies.
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Envelope helpers for the two response statuses.
func successResponse(result interface{}) Response {
	return Response{Status: "ok", Result: result}
}

func errorResponse(message string) Response {
	return Response{Status: "error", Message: message}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, response Response) {
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("api.writeJSON: failed to marshal response", "error", err)
		jsonData = []byte(`{"status":"error","message":"internal server error"}`)
		statusCode = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(jsonData); err != nil {
		slog.Error("api.writeJSON: failed to write response", "error", err)
	}
}
