package common

import "errors"

var (
	ErrNotFound   = errors.New("requested item not found")
	ErrConflict   = errors.New("item already exists or conflict")
	ErrForbidden  = errors.New("action forbidden")
	ErrBadRequest = errors.New("bad request")

	// Import validation failures. All of them are raised before anything is
	// written, so a rejected import leaves no trace in the store.
	ErrUnsupportedFileType = errors.New("unsupported statement file type")
	ErrEmptyStatement      = errors.New("statement contains no transactions")
	ErrColumnsNotFound     = errors.New("could not locate date or amount column")
	ErrBankAccountNotFound = errors.New("bank account not found for tenant")
)
