// Package keyfile manages the vault keyfile: 32 random bytes kept on disk
// outside the record store and acting as the second authentication factor.
//
// The file has no header or encoding; it is the raw key material.
package keyfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mg2305/Secure-Password-Manager/pkg/crypto"
)

const (
	// Size is the keyfile length in bytes.
	Size = 32

	FileMode = 0600 // Owner read/write only
	DirMode  = 0700 // Owner read/write/execute only
)

var (
	// ErrIO wraps every filesystem failure in this package.
	ErrIO = errors.New("keyfile: i/o error")

	// ErrNotFound indicates no keyfile exists at the path.
	ErrNotFound = fmt.Errorf("%w: keyfile not found", ErrIO)
)

// Generate writes a new keyfile at path.
//
// An existing file is removed first, which invalidates every key previously
// derived from it. Parent directories are created as needed.
func Generate(path string) error {
	if err := Destroy(path); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), DirMode); err != nil {
		return fmt.Errorf("%w: failed to create directory: %v", ErrIO, err)
	}

	key, err := crypto.GenerateRandom(Size)
	if err != nil {
		return fmt.Errorf("%w: failed to generate key: %v", ErrIO, err)
	}
	defer crypto.SecureWipe(key)

	// O_EXCL: a file appearing between Destroy and here is not ours to clobber
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, FileMode)
	if err != nil {
		return fmt.Errorf("%w: failed to create keyfile: %v", ErrIO, err)
	}
	if _, err := f.Write(key); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("%w: failed to write keyfile: %v", ErrIO, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("%w: failed to sync keyfile: %v", ErrIO, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("%w: failed to close keyfile: %v", ErrIO, err)
	}

	return nil
}

// Destroy removes the keyfile. A keyfile that is already absent is not an
// error, so Destroy is safe to call repeatedly.
func Destroy(path string) error {
	err := os.Remove(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("%w: failed to remove keyfile: %v", ErrIO, err)
}

// Read returns the keyfile contents. The caller owns the slice and should
// wipe it when done. The length is not validated here; the integrity check
// decides what a usable keyfile is.
func Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: failed to read keyfile: %v", ErrIO, err)
	}
	return data, nil
}

// Exists reports whether a regular file is present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
