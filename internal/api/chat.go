package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/crtvai/chatbot/internal/conversation"
	"github.com/crtvai/chatbot/internal/session"
)

// maxChatBodyBytes bounds the /chat request body.
const maxChatBodyBytes = 1 << 20 // 1MB

// Fixed user-visible messages. Clients see these and nothing else;
// internal error detail stays in the logs.
const (
	msgBadContentType = "Content-Type must be application/json"
	msgBadFormat      = "Invalid request format"
	msgMissingFields  = "Request must contain user_phone and user_message"
	msgEmptyFields    = "Phone number and message cannot be empty"
	msgStoreError     = "Database error occurred"
	msgSaveFailed     = "Failed to save your progress"
	msgCorruptState   = "Invalid conversation state"
	msgNotFound       = "Resource not found"
	msgUnexpected     = "An unexpected error occurred"
)

// SessionStore is what the chat handler needs from the persistence
// layer. Consumer-defined so tests can substitute an in-memory fake.
type SessionStore interface {
	GetOrCreate(ctx context.Context, phone string) (*session.Session, error)
	Update(ctx context.Context, phone string, next session.State, upd session.FieldUpdate) error
}

type chatHandler struct {
	logger *slog.Logger
	store  SessionStore
}

// chat handles POST /chat. Validation runs strictly before any store
// access: a malformed request must never touch the database.
func (h *chatHandler) chat(w http.ResponseWriter, r *http.Request) {
	if !isJSONContentType(r.Header.Get("Content-Type")) {
		h.logger.Warn("invalid content type", "content_type", r.Header.Get("Content-Type"))
		writeChat(w, http.StatusBadRequest, "", msgBadContentType)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)

	var raw any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		h.logger.Warn("undecodable request body", "error", err)
		writeChat(w, http.StatusBadRequest, "", msgBadFormat)
		return
	}

	body, ok := raw.(map[string]any)
	if !ok {
		h.logger.Warn("request body is not a JSON object")
		writeChat(w, http.StatusBadRequest, "", msgBadFormat)
		return
	}

	phoneRaw, hasPhone := body["user_phone"]
	messageRaw, hasMessage := body["user_message"]
	if !hasPhone || !hasMessage {
		h.logger.Warn("missing required fields")
		writeChat(w, http.StatusBadRequest, "", msgMissingFields)
		return
	}

	phone := strings.TrimSpace(coerceString(phoneRaw))
	message := strings.TrimSpace(coerceString(messageRaw))
	if phone == "" || message == "" {
		h.logger.Warn("empty phone number or message")
		writeChat(w, http.StatusBadRequest, phone, msgEmptyFields)
		return
	}

	ctx := r.Context()

	sess, err := h.store.GetOrCreate(ctx, phone)
	if err != nil {
		h.logger.Error("loading session", "phone", phone, "error", err)
		writeChat(w, http.StatusInternalServerError, phone, msgStoreError)
		return
	}

	state, err := session.ParseState(sess.ConversationState)
	if err != nil {
		h.logger.Error("parsing stored state",
			"phone", phone,
			"stored_state", sess.ConversationState,
			"error", err,
		)
		writeChat(w, http.StatusInternalServerError, phone, msgCorruptState)
		return
	}

	result, err := conversation.Advance(state, message, sess)
	if err != nil {
		// Unreachable after ParseState, kept as the hard-fault path the
		// state machine contract requires.
		h.logger.Error("advancing conversation", "phone", phone, "error", err)
		writeChat(w, http.StatusInternalServerError, phone, msgCorruptState)
		return
	}

	if result.Next != state || result.Update.Kind != session.FieldNone {
		if err := h.store.Update(ctx, phone, result.Next, result.Update); err != nil {
			// The reply was computed but must not be returned: the client
			// would see state the store never recorded.
			h.logger.Error("persisting session", "phone", phone, "error", err)
			writeChat(w, http.StatusInternalServerError, phone, msgSaveFailed)
			return
		}
	}

	h.logger.Info("processed message", "phone", phone, "state", result.Next)
	writeChat(w, http.StatusOK, phone, result.Reply)
}

// isJSONContentType reports whether ct denotes a JSON body, ignoring
// parameters such as charset. Suffixed media types (application/*+json)
// count as JSON per RFC 6839.
func isJSONContentType(ct string) bool {
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// coerceString renders a decoded JSON value as a string, mirroring the
// permissive coercion of the wire contract: numbers and booleans are
// accepted and stringified, null coerces to empty (and fails the
// empty-field check).
func coerceString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		// Arrays and objects have no sensible string form; re-encode as
		// compact JSON, best effort.
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// notFound is the fallback for unmatched routes and methods, keeping
// 404s in the fixed response shape.
func notFound(w http.ResponseWriter, _ *http.Request) {
	writeChat(w, http.StatusNotFound, "", msgNotFound)
}
