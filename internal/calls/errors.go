package calls

import "errors"

var (
	ErrNotFound          = errors.New("call not found")
	ErrTargetNotFound    = errors.New("target user not found")
	ErrUnauthorized      = errors.New("not authorized")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidArgument   = errors.New("invalid argument")

	// ErrLocked is returned by Invite on a locked call. It matches ErrInvalidTransition with errors.Is.
	ErrLocked = lockedError{}

	// ErrConflict means the call changed between load and write. Callers may re-read and retry.
	ErrConflict = errors.New("call modified concurrently")
	// ErrCallEnded is surfaced when a conflicting write lost against a terminal transition.
	ErrCallEnded = errors.New("call already ended")

	// ErrLiveCallExists is returned by Repository.Create when the conversation already has a live call.
	ErrLiveCallExists = errors.New("conversation already has a live call")
	ErrUnavailable    = errors.New("collaborator unavailable")
)

type lockedError struct{}

func (lockedError) Error() string        { return "call is locked" }
func (lockedError) Is(target error) bool { return target == ErrInvalidTransition }

// errNoop aborts a mutation without writing. The manager returns the loaded call unchanged.
var errNoop = errors.New("no change")
