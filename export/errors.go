package export

import "errors"

var (
	ErrInvalidOptions = errors.New("export: invalid options")
	ErrCorrupt        = errors.New("export: corrupt input")
	ErrTooLarge       = errors.New("export: output too large")
	ErrUnsafePath     = errors.New("export: unsafe component path")
)
