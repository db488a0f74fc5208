package apperr

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrNoManifest       = errors.New("no import manifest")
	ErrImportInProgress = errors.New("import already in progress")
	ErrArchiveTooLarge  = errors.New("archive too large")
)
