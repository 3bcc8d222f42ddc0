package session

import "errors"

// Sentinel errors for session operations. Check with errors.Is().
var (
	// ErrCorruptState indicates a stored conversation_state value outside
	// the known enumeration. The affected request fails; other sessions
	// are unaffected.
	ErrCorruptState = errors.New("corrupt conversation state")

	// ErrSessionVanished indicates an update matched no row: the session
	// existed moments ago but the write affected zero rows. This is a
	// consistency fault, not a silent success.
	ErrSessionVanished = errors.New("session vanished during update")
)
