package services

import "errors"

var (
	// ErrLoginFailed is the single error shown for any failed login, whatever
	// the cause. The cause is wrapped for logging.
	ErrLoginFailed      = errors.New("login failed")
	ErrDuplicateAccount = errors.New("an account with this email already exists")
	ErrNotSignedIn      = errors.New("not signed in")
	ErrRecordNotFound   = errors.New("record not found")
)
