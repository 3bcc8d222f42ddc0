// Package conversation implements the scripted dialogue as a pure
// transition function. It proposes replies and persistence instructions;
// it never touches the store itself, which keeps the transition table
// independently testable.
package conversation

import (
	"fmt"
	"strings"

	"github.com/crtvai/chatbot/internal/session"
)

// Fixed reply texts for the non-templated transitions.
const (
	ReplyAskName        = "What is your name?"
	ReplyInvalidInitial = "Invalid initial input, please say hello."
)

// Result is the outcome of one transition: the reply to send, the state
// to move to, and the single field-persistence instruction.
type Result struct {
	Reply  string
	Next   session.State
	Update session.FieldUpdate
}

// Advance maps (current state, incoming message, session) to a Result.
// The message must already be trimmed of surrounding whitespace; the
// "hello" comparison is case-insensitive.
//
// Advance is total over the four-state enumeration: every valid
// (state, message) pair has exactly one defined outcome. A state outside
// the enumeration returns session.ErrCorruptState so corruption is a
// hard fault rather than a silent fall-through.
func Advance(state session.State, message string, sess *session.Session) (Result, error) {
	switch state {
	case session.StateInitial:
		if strings.EqualFold(message, "hello") {
			return Result{
				Reply:  ReplyAskName,
				Next:   session.StateWaitingForName,
				Update: session.NoFieldUpdate(),
			}, nil
		}
		return Result{
			Reply:  ReplyInvalidInitial,
			Next:   session.StateInitial,
			Update: session.NoFieldUpdate(),
		}, nil

	case session.StateWaitingForName:
		return Result{
			Reply:  fmt.Sprintf("Hello %s, what is your favorite song?", message),
			Next:   session.StateWaitingForSong,
			Update: session.SetUserName(message),
		}, nil

	case session.StateWaitingForSong:
		return Result{
			Reply:  fmt.Sprintf("Playing %s", message),
			Next:   session.StateCompleted,
			Update: session.SetFavoriteSong(message),
		}, nil

	case session.StateCompleted:
		return Result{
			Reply: fmt.Sprintf("Hello %s! Your favorite song is %s",
				deref(sess.UserName), deref(sess.FavoriteSong)),
			Next:   session.StateCompleted,
			Update: session.NoFieldUpdate(),
		}, nil

	default:
		return Result{}, fmt.Errorf("%w: %q", session.ErrCorruptState, state)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
