//go:build !linux && !darwin

package crypto

// LockMemory is a no-op on this platform.
func LockMemory(b []byte) error { return nil }

// UnlockMemory is a no-op on this platform.
func UnlockMemory(b []byte) error { return nil }

// DisableCoreDumps is a no-op on this platform.
func DisableCoreDumps() error { return nil }
