package updater

import "errors"

// Update errors
var (
	// Manifest errors
	ErrManifestFetch    = errors.New("failed to fetch update manifest")
	ErrManifestInvalid  = errors.New("invalid update manifest")
	ErrManifestFilePath = errors.New("manifest file entry path escapes the install directory")

	// Transfer errors
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
	ErrDownloadFailed   = errors.New("failed to download update file")
	ErrSizeMismatch     = errors.New("downloaded size does not match manifest")
	ErrArchiveFailed    = errors.New("failed to write update archive")

	// Install errors
	ErrInstallFailed   = errors.New("failed to install update archive")
	ErrInstallConflict = errors.New("archive entry conflicts with an existing file")

	// Scheduler errors
	ErrInvalidSchedule = errors.New("invalid update schedule")
)
