package access

import "errors"

var (
	ErrWrongSourceType   = errors.New("wrong data source type")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrMissingRequired   = errors.New("required field missing")
	ErrBadValue          = errors.New("value does not match field type")
	// ErrBackend оборачивает отказ MySQL/Postgres/REST/хранилища.
	ErrBackend = errors.New("backend error")
)
