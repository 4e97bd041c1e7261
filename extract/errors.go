package extract

import "errors"

var (
	ErrInvalidOffset = errors.New("invalid offset")
	ErrIsADirectory  = errors.New("is a directory")
)
