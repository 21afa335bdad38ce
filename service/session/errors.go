package session

import "errors"

var (
	// ErrSessionStart indicates the shell process or its pseudo-terminal
	// could not be created. Callers may retry session creation once before
	// treating it as fatal.
	ErrSessionStart = errors.New("session start failed")

	// ErrSessionDead indicates the shell process behind the session is no
	// longer usable. The session must be recreated before further commands.
	ErrSessionDead = errors.New("session is dead")
)
