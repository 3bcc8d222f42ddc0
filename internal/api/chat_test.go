package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/crtvai/chatbot/internal/log"
	"github.com/crtvai/chatbot/internal/session"
)

// fakeStore is an in-memory SessionStore for handler tests.
type fakeStore struct {
	mu       sync.Mutex
	sessions map[string]*session.Session

	getOrCreateErr error
	updateErr      error

	getCalls    int
	updateCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[string]*session.Session)}
}

func (f *fakeStore) GetOrCreate(_ context.Context, phone string) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getOrCreateErr != nil {
		return nil, f.getOrCreateErr
	}
	sess, ok := f.sessions[phone]
	if !ok {
		sess = &session.Session{
			PhoneNumber:       phone,
			ConversationState: string(session.StateInitial),
		}
		f.sessions[phone] = sess
	}
	copied := *sess
	return &copied, nil
}

func (f *fakeStore) Update(_ context.Context, phone string, next session.State, upd session.FieldUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if f.updateErr != nil {
		return f.updateErr
	}
	sess, ok := f.sessions[phone]
	if !ok {
		return session.ErrSessionVanished
	}
	sess.ConversationState = string(next)
	switch upd.Kind {
	case session.FieldUserName:
		v := upd.Value
		sess.UserName = &v
	case session.FieldFavoriteSong:
		v := upd.Value
		sess.FavoriteSong = &v
	}
	return nil
}

func newTestChatHandler(store SessionStore) *chatHandler {
	return &chatHandler{
		logger: log.NewNop(),
		store:  store,
	}
}

func postChat(t *testing.T, h *chatHandler, body, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	h.chat(w, r)
	return w
}

func decodeChat(t *testing.T, w *httptest.ResponseRecorder) chatResponse {
	t.Helper()
	var resp chatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v\nbody: %s", err, w.Body.String())
	}
	return resp
}

func sendMessage(t *testing.T, h *chatHandler, phone, message string) (int, chatResponse) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{
		"user_phone":   phone,
		"user_message": message,
	})
	w := postChat(t, h, string(body), "application/json")
	return w.Code, decodeChat(t, w)
}

func TestChat_FullConversation(t *testing.T) {
	store := newFakeStore()
	h := newTestChatHandler(store)

	steps := []struct {
		message   string
		wantReply string
		wantState session.State
	}{
		{"hello", "What is your name?", session.StateWaitingForName},
		{"Alice", "Hello Alice, what is your favorite song?", session.StateWaitingForSong},
		{"Imagine", "Playing Imagine", session.StateCompleted},
		{"anything", "Hello Alice! Your favorite song is Imagine", session.StateCompleted},
	}

	for _, step := range steps {
		code, resp := sendMessage(t, h, "1234", step.message)
		if code != http.StatusOK {
			t.Fatalf("chat(%q) status = %d, want 200", step.message, code)
		}
		if resp.UserPhone != "1234" {
			t.Errorf("chat(%q) user_phone = %q, want 1234", step.message, resp.UserPhone)
		}
		if resp.BotMessage != step.wantReply {
			t.Errorf("chat(%q) bot_message = %q, want %q", step.message, resp.BotMessage, step.wantReply)
		}
		if got := store.sessions["1234"].ConversationState; got != string(step.wantState) {
			t.Errorf("chat(%q) stored state = %q, want %q", step.message, got, step.wantState)
		}
	}

	sess := store.sessions["1234"]
	if sess.UserName == nil || *sess.UserName != "Alice" {
		t.Errorf("stored user_name = %v, want Alice", sess.UserName)
	}
	if sess.FavoriteSong == nil || *sess.FavoriteSong != "Imagine" {
		t.Errorf("stored favorite_song = %v, want Imagine", sess.FavoriteSong)
	}
}

func TestChat_InvalidInitialInput(t *testing.T) {
	store := newFakeStore()
	h := newTestChatHandler(store)

	code, resp := sendMessage(t, h, "5678", "hi")
	if code != http.StatusOK {
		t.Fatalf("chat() status = %d, want 200", code)
	}
	if resp.BotMessage != "Invalid initial input, please say hello." {
		t.Errorf("chat() bot_message = %q", resp.BotMessage)
	}
	if got := store.sessions["5678"].ConversationState; got != string(session.StateInitial) {
		t.Errorf("stored state = %q, want initial", got)
	}
	// No state change and no field: persistence must not run.
	if store.updateCalls != 0 {
		t.Errorf("updateCalls = %d, want 0", store.updateCalls)
	}
}

func TestChat_CompletedIsNoOp(t *testing.T) {
	store := newFakeStore()
	name, song := "Alice", "Imagine"
	store.sessions["1234"] = &session.Session{
		PhoneNumber:       "1234",
		UserName:          &name,
		FavoriteSong:      &song,
		ConversationState: string(session.StateCompleted),
	}
	h := newTestChatHandler(store)

	code, resp := sendMessage(t, h, "1234", "anything at all")
	if code != http.StatusOK {
		t.Fatalf("chat() status = %d, want 200", code)
	}
	if resp.BotMessage != "Hello Alice! Your favorite song is Imagine" {
		t.Errorf("chat() bot_message = %q", resp.BotMessage)
	}
	if store.updateCalls != 0 {
		t.Errorf("updateCalls = %d, want 0 for completed no-op", store.updateCalls)
	}
}

func TestChat_TrimsInput(t *testing.T) {
	store := newFakeStore()
	h := newTestChatHandler(store)

	code, resp := sendMessage(t, h, "  1234  ", "  HELLO  ")
	if code != http.StatusOK {
		t.Fatalf("chat() status = %d, want 200", code)
	}
	if resp.UserPhone != "1234" {
		t.Errorf("chat() user_phone = %q, want trimmed", resp.UserPhone)
	}
	if resp.BotMessage != "What is your name?" {
		t.Errorf("chat() bot_message = %q", resp.BotMessage)
	}
	if _, ok := store.sessions["1234"]; !ok {
		t.Error("session must be keyed by the trimmed identifier")
	}
}

func TestChat_WrongContentType(t *testing.T) {
	store := newFakeStore()
	h := newTestChatHandler(store)

	w := postChat(t, h, `{"user_phone":"1","user_message":"hello"}`, "text/plain")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("chat() status = %d, want 400", w.Code)
	}
	if resp := decodeChat(t, w); resp.BotMessage != msgBadContentType {
		t.Errorf("chat() bot_message = %q", resp.BotMessage)
	}
	if store.getCalls != 0 {
		t.Error("a rejected request must not touch the store")
	}
}

func TestChat_ContentTypeVariants(t *testing.T) {
	accepted := []string{
		"application/json",
		"application/json; charset=utf-8",
		"application/vnd.api+json",
	}
	for _, ct := range accepted {
		h := newTestChatHandler(newFakeStore())

		w := postChat(t, h, `{"user_phone":"1","user_message":"hello"}`, ct)
		if w.Code != http.StatusOK {
			t.Errorf("chat() with %q status = %d, want 200", ct, w.Code)
		}
	}

	rejected := []string{"", "text/plain", "application/jsonx", "text/json+xml"}
	for _, ct := range rejected {
		h := newTestChatHandler(newFakeStore())

		w := postChat(t, h, `{"user_phone":"1","user_message":"hello"}`, ct)
		if w.Code != http.StatusBadRequest {
			t.Errorf("chat() with %q status = %d, want 400", ct, w.Code)
		}
	}
}

func TestChat_NonObjectBodies(t *testing.T) {
	for _, body := range []string{`[]`, `"hello"`, `42`, `null`, `{not json`} {
		store := newFakeStore()
		h := newTestChatHandler(store)

		w := postChat(t, h, body, "application/json")
		if w.Code != http.StatusBadRequest {
			t.Errorf("chat(%s) status = %d, want 400", body, w.Code)
		}
		if resp := decodeChat(t, w); resp.BotMessage != msgBadFormat {
			t.Errorf("chat(%s) bot_message = %q", body, resp.BotMessage)
		}
		if store.getCalls != 0 {
			t.Errorf("chat(%s) touched the store", body)
		}
	}
}

func TestChat_MissingFields(t *testing.T) {
	for _, body := range []string{`{}`, `{"user_phone":"1"}`, `{"user_message":"hello"}`} {
		store := newFakeStore()
		h := newTestChatHandler(store)

		w := postChat(t, h, body, "application/json")
		if w.Code != http.StatusBadRequest {
			t.Errorf("chat(%s) status = %d, want 400", body, w.Code)
		}
		if resp := decodeChat(t, w); resp.BotMessage != msgMissingFields {
			t.Errorf("chat(%s) bot_message = %q", body, resp.BotMessage)
		}
		if store.getCalls != 0 {
			t.Errorf("chat(%s) touched the store", body)
		}
	}
}

func TestChat_EmptyFields(t *testing.T) {
	for _, body := range []string{
		`{"user_phone":"","user_message":"hello"}`,
		`{"user_phone":"1","user_message":"   "}`,
		`{"user_phone":null,"user_message":"hello"}`,
	} {
		store := newFakeStore()
		h := newTestChatHandler(store)

		w := postChat(t, h, body, "application/json")
		if w.Code != http.StatusBadRequest {
			t.Errorf("chat(%s) status = %d, want 400", body, w.Code)
		}
		if resp := decodeChat(t, w); resp.BotMessage != msgEmptyFields {
			t.Errorf("chat(%s) bot_message = %q", body, resp.BotMessage)
		}
		if store.getCalls != 0 {
			t.Errorf("chat(%s) touched the store", body)
		}
	}
}

func TestChat_OversizedBody(t *testing.T) {
	store := newFakeStore()
	h := newTestChatHandler(store)

	body := `{"user_phone":"1234","user_message":"` +
		strings.Repeat("x", maxChatBodyBytes) + `"}`
	w := postChat(t, h, body, "application/json")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("chat() status = %d, want 400", w.Code)
	}
	if resp := decodeChat(t, w); resp.BotMessage != msgBadFormat {
		t.Errorf("chat() bot_message = %q, want %q", resp.BotMessage, msgBadFormat)
	}
	if store.getCalls != 0 {
		t.Error("an oversized request must not touch the store")
	}
}

func TestChat_NumericPhoneCoerced(t *testing.T) {
	store := newFakeStore()
	h := newTestChatHandler(store)

	w := postChat(t, h, `{"user_phone":1234,"user_message":"hello"}`, "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("chat() status = %d, want 200\nbody: %s", w.Code, w.Body.String())
	}
	if resp := decodeChat(t, w); resp.UserPhone != "1234" {
		t.Errorf("chat() user_phone = %q, want coerced 1234", resp.UserPhone)
	}
}

func TestChat_StoreUnavailable(t *testing.T) {
	store := newFakeStore()
	store.getOrCreateErr = errors.New("connection refused")
	h := newTestChatHandler(store)

	code, resp := sendMessage(t, h, "1234", "hello")
	if code != http.StatusInternalServerError {
		t.Fatalf("chat() status = %d, want 500", code)
	}
	if resp.BotMessage != msgStoreError {
		t.Errorf("chat() bot_message = %q", resp.BotMessage)
	}
	if resp.UserPhone != "1234" {
		t.Errorf("chat() user_phone = %q, want best-effort echo", resp.UserPhone)
	}
}

func TestChat_CorruptStoredState(t *testing.T) {
	store := newFakeStore()
	store.sessions["1234"] = &session.Session{
		PhoneNumber:       "1234",
		ConversationState: "limbo",
	}
	h := newTestChatHandler(store)

	code, resp := sendMessage(t, h, "1234", "hello")
	if code != http.StatusInternalServerError {
		t.Fatalf("chat() status = %d, want 500", code)
	}
	if resp.BotMessage != msgCorruptState {
		t.Errorf("chat() bot_message = %q", resp.BotMessage)
	}
	if store.updateCalls != 0 {
		t.Error("a corrupt state must not be written back")
	}
}

func TestChat_PersistFailureHidesReply(t *testing.T) {
	store := newFakeStore()
	store.updateErr = errors.New("write timeout")
	h := newTestChatHandler(store)

	code, resp := sendMessage(t, h, "1234", "hello")
	if code != http.StatusInternalServerError {
		t.Fatalf("chat() status = %d, want 500", code)
	}
	if resp.BotMessage != msgSaveFailed {
		t.Errorf("chat() bot_message = %q", resp.BotMessage)
	}
	// The computed reply must not leak when the state was never saved.
	if strings.Contains(resp.BotMessage, "What is your name?") {
		t.Error("chat() leaked the reply despite a failed persist")
	}
}
