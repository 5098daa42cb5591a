package feeders

import "errors"

// File feeder errors
var (
	ErrFileNotFound         = errors.New("configuration file not found")
	ErrUnsupportedFormat    = errors.New("unsupported configuration file format")
	ErrInvalidLineFormat    = errors.New("invalid property line format")
	ErrDotEnvInvalidLineFmt = errors.New("invalid .env line format")
)

// Value errors
var (
	ErrNestedList       = errors.New("nested structures inside lists are not supported")
	ErrUnsupportedValue = errors.New("unsupported configuration value")
)

// Argument errors
var (
	ErrInvalidArgument = errors.New("invalid command line argument")
)
