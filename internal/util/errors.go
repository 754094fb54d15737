package util

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrChallengeNotFound  = errors.New("challenge not found")
	ErrChallengeNotSaved  = errors.New("challenge has not been saved yet")
	ErrChallengeInvalid   = errors.New("challenge is missing required fields")
	ErrUsernameRegistered = errors.New("该用户名已被注册")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrConfirmExpired     = errors.New("confirmation expired or already used")
	ErrMessageNotEditable = errors.New("published message is not editable")
)
