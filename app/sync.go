package app

import (
	"errors"
	"syscall"
)

// Syncing stderr fails on terminals and pipes; that is not worth reporting.
func ignoreSyncError(err error) error {
	if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EBADF) {
		return nil
	}
	return err
}
