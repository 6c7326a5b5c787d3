package importer

import "errors"

var (
	ErrInvalidUpload    = errors.New("invalid upload")
	ErrInvalidDocument  = errors.New("invalid MS Project XML document")
	ErrDuplicateImport  = errors.New("file has already been imported")
	ErrImportInProgress = errors.New("an import of this file is already in progress")
)
