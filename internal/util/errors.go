package util

import "errors"

var (
	ErrTestNotFound       = errors.New("Mock test not found.")
	ErrNoQuestions        = errors.New("No questions found for this test.")
	ErrTestIDRequired     = errors.New("Test ID is required.")
	ErrNoFile             = errors.New("No file uploaded.")
	ErrInvalidJSONBatch   = errors.New("Invalid JSON format. Expected an array of questions.")
	ErrInvalidQuestion    = errors.New("invalid question")
	ErrSessionNotFound    = errors.New("session not found")
	ErrAttemptNotFound    = errors.New("attempt not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrStoreUnavailable   = errors.New("question store unavailable")
	ErrUserExists         = errors.New("user already exists")
)
