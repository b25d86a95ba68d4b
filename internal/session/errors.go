package session

import "errors"

// device-session errors
var (
	ErrDoesNotExist = errors.New("device-session does not exist")
)
