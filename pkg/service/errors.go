package service

import "errors"

var (
	// ErrInvalidName is returned for names that are empty after trimming.
	ErrInvalidName = errors.New("invalid name")
	// ErrNothingSelected is returned by operations that default to the
	// current selection when nothing is selected.
	ErrNothingSelected = errors.New("nothing selected")
)
