package launcher

import (
	"errors"
)

// Application errors
var (
	// Preparation errors
	ErrEmptyApplicationName = errors.New("application name cannot be empty")
	ErrInvalidOption        = errors.New("invalid application option")
	ErrInvalidUpdateURL     = errors.New("invalid update URL")
	ErrNilEntryPoint        = errors.New("entry point cannot be nil")

	// Configuration errors
	ErrConfigurationLoad = errors.New("failed to load configuration")
	ErrPropertyNotFound  = errors.New("configuration property not found")
	ErrPropertyInvalid   = errors.New("configuration property has an invalid value")

	// Startup errors
	ErrLoggingSetup  = errors.New("failed to configure logging")
	ErrStarterFailed = errors.New("application starter failed")

	// Observer errors
	ErrNilObserver = errors.New("observer cannot be nil")
)
