package session

import "fmt"

// State is the enumerated phase of the scripted conversation.
type State string

// Conversation states. The string values are the on-disk representation
// in the conversation_state column.
const (
	StateInitial        State = "initial"
	StateWaitingForName State = "waiting_for_name"
	StateWaitingForSong State = "waiting_for_song"
	StateCompleted      State = "completed"
)

// States lists every valid conversation state.
// Useful for exhaustive tests over the enumeration.
func States() []State {
	return []State{StateInitial, StateWaitingForName, StateWaitingForSong, StateCompleted}
}

// ParseState converts a stored conversation_state value into a State.
// A value outside the enumeration returns ErrCorruptState: it is a
// data-integrity fault, never treated as a new state.
func ParseState(raw string) (State, error) {
	switch State(raw) {
	case StateInitial, StateWaitingForName, StateWaitingForSong, StateCompleted:
		return State(raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrCorruptState, raw)
	}
}
