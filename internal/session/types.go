package session

import "time"

// Session is the persisted record tracking one user's conversation
// progress, keyed by phone number.
type Session struct {
	PhoneNumber  string
	UserName     *string
	FavoriteSong *string

	// ConversationState holds the raw stored value. Parse it with
	// ParseState before acting on it.
	ConversationState string

	LastInteraction time.Time
}

// FieldKind selects which optional column an Update call sets.
type FieldKind int

const (
	// FieldNone sets neither optional column.
	FieldNone FieldKind = iota
	// FieldUserName sets the user_name column.
	FieldUserName
	// FieldFavoriteSong sets the favorite_song column.
	FieldFavoriteSong
)

// FieldUpdate is a tagged update instruction: at most one optional
// column is set per Update call. The state machine emits exactly one
// instruction per transition, so there is no precedence rule between
// name and song anywhere in the system.
type FieldUpdate struct {
	Kind  FieldKind
	Value string
}

// NoFieldUpdate sets state only.
func NoFieldUpdate() FieldUpdate {
	return FieldUpdate{Kind: FieldNone}
}

// SetUserName sets the user_name column to v.
func SetUserName(v string) FieldUpdate {
	return FieldUpdate{Kind: FieldUserName, Value: v}
}

// SetFavoriteSong sets the favorite_song column to v.
func SetFavoriteSong(v string) FieldUpdate {
	return FieldUpdate{Kind: FieldFavoriteSong, Value: v}
}
