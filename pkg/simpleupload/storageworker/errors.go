package storageworker

import "errors"

var (
	// ErrObjectNotFound indicates the blob store has no object for the key
	ErrObjectNotFound = errors.New("object not found")

	// ErrFileNotFound indicates the repository has no record for the key
	ErrFileNotFound = errors.New("file not found")

	// ErrFileExists indicates a record already exists for the key
	ErrFileExists = errors.New("file already exists")

	// ErrInvalidKey indicates a key that is not in clean slash-separated form
	ErrInvalidKey = errors.New("invalid key")
)
