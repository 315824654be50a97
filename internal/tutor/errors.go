package tutor

import "errors"

var (
	ErrEmptyAnswer          = errors.New("answer is required")
	ErrEmptyText            = errors.New("message text is required")
	ErrMissingCredential    = errors.New("API key is required")
	ErrNotConnected         = errors.New("tutor session is not connected")
	ErrAlreadyConnected     = errors.New("tutor session is already connecting or connected")
	ErrUnsupportedOperation = errors.New("realtime transport does not support this operation")
	ErrAnswerLocked         = errors.New("question is not accepting answers right now")
	ErrConnectAborted       = errors.New("connect attempt was superseded")
	ErrSessionClosed        = errors.New("tutor session has been closed")
)
