package config

import "errors"

// ErrInvalidFile is returned when the configuration file cannot be decoded.
var ErrInvalidFile = errors.New("invalid configuration file")
