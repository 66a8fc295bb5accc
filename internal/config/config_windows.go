//go:build windows

package config

import (
	"fmt"
	"os"
)

// Windows has no O_NOFOLLOW; creating symlinks there needs privileges.
func openConfigFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errNotFound
		}
		return nil, fmt.Errorf("config: failed to open %s: %w", path, err)
	}
	return f, nil
}

// Mode bits and ownership are governed by ACLs on Windows.
func checkFileSecurity(_ os.FileInfo) error {
	return nil
}
