package vault

import (
	"errors"
	"fmt"
)

// Disk capacity thresholds
const (
	MinDiskSpaceBytes  = 10 * 1024 * 1024 // 10 MB minimum free space
	DiskWarningPercent = 90               // Warn when disk is 90% full
)

// ErrInsufficientDisk is returned when a write would risk filling the disk.
var ErrInsufficientDisk = errors.New("vault: insufficient disk space")

// DiskSpaceInfo contains disk usage information
type DiskSpaceInfo struct {
	Total     uint64 // Total disk space in bytes
	Free      uint64 // Free disk space in bytes
	Available uint64 // Available to non-root users
	UsedPct   int    // Percentage of disk used
}

// checkDiskSpaceForWrite refuses a write that would leave less than
// MinDiskSpaceBytes (or twice the payload) free. Without a data directory,
// or when the filesystem cannot be queried, the write proceeds.
func (v *Vault) checkDiskSpaceForWrite(dataSize int) error {
	if v.dataDir == "" {
		return nil
	}
	info, err := diskSpace(v.dataDir)
	if err != nil {
		v.log.Warn("failed to check disk space", "err", err)
		return nil
	}

	required := uint64(MinDiskSpaceBytes)
	if uint64(dataSize*2) > required {
		required = uint64(dataSize * 2)
	}
	if info.Available < required {
		return fmt.Errorf("%w: only %d MB available, need at least %d MB",
			ErrInsufficientDisk, info.Available/(1024*1024), required/(1024*1024))
	}

	if info.UsedPct >= DiskWarningPercent {
		v.log.Warn("disk almost full", "used_pct", info.UsedPct)
	}
	return nil
}
