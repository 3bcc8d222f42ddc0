package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// chatResponse is the fixed shape of every /chat reply, success or
// error: the echoed identifier (best effort, possibly empty) and the
// bot's message.
type chatResponse struct {
	UserPhone  string `json:"user_phone"`
	BotMessage string `json:"bot_message"`
}

// writeJSON writes a JSON response with the given status code.
// Buffer-first: headers are only sent after successful encoding, so an
// encoding failure can still produce a proper 500.
func writeJSON(w http.ResponseWriter, status int, data any) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		// Client disconnects are common and expected.
		slog.Debug("failed to write response body", "error", err)
	}
}

// writeChat writes the fixed-shape chat body with the given status.
func writeChat(w http.ResponseWriter, status int, phone, message string) {
	writeJSON(w, status, chatResponse{UserPhone: phone, BotMessage: message})
}
