package services

import "errors"

var (
	// ErrPasswordMismatch is returned by Register before any request is made.
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrEmptyMessage     = errors.New("message is empty")

	ErrFileTooLarge    = errors.New("fileTooLarge")
	ErrInvalidFileType = errors.New("invalidFileType")
)
