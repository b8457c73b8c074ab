package merge

import "errors"

var (
	// ErrInvalidInputShape reports parallel inputs of different lengths.
	ErrInvalidInputShape = errors.New("invalid input shape")
	// ErrInvalidOptions reports a malformed options argument or an unknown key.
	ErrInvalidOptions = errors.New("invalid merge options")
	// ErrInvalidOutputFormat reports a format outside array, merged and struct.
	ErrInvalidOutputFormat = errors.New("invalid output format")
)
