package auth

import "errors"

var (
	ErrNotFound = errors.New("auth: not found")

	ErrMissingToken           = errors.New("auth: missing token")
	ErrInvalidToken           = errors.New("auth: invalid token")
	ErrWrongForce             = errors.New("auth: token not valid for this force")
	ErrAccountSuspended       = errors.New("auth: account suspended")
	ErrInsufficientPermission = errors.New("auth: insufficient permission")
	ErrInvalidCredentials     = errors.New("auth: invalid credentials")
	ErrPasswordMismatch       = errors.New("auth: password confirmation mismatch")
	ErrWrongOldPassword       = errors.New("auth: wrong old password")

	ErrBackendTimeout     = errors.New("auth: backend timeout")
	ErrBackendUnavailable = errors.New("auth: backend unavailable")
)
