package lifecycle

import "errors"

// Error kinds surfaced by lifecycle operations. Callers match them with
// errors.Is; details travel in the wrapping message.
var (
	// ErrValidation - malformed input: missing link and note, non-positive
	// amount, invalid URL, or a duplicate active basket for the shop.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound - the referenced basket/pool/chatroom/user does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden - the caller lacks authority: not the basket owner, or
	// not the current chatroom admin.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidState - the action is not legal in the current lifecycle
	// state, e.g. editing a basket that already migrated to a chatroom, or
	// extending a deadline twice in the same phase.
	ErrInvalidState = errors.New("invalid state")
	// ErrConflict - a concurrent mutation won the race. Spawn races are
	// absorbed internally (the loser joins the winner's chatroom); anything
	// still carrying this kind reached the caller unresolved.
	ErrConflict = errors.New("conflict")
)
