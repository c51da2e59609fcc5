//go:build !linux

package relayout

import (
	"os"
	"syscall"
	"time"
)

// accessTime falls back to the modification time where the Stat_t layout
// differs from Linux.
func accessTime(_ *syscall.Stat_t, info os.FileInfo) time.Time {
	return info.ModTime()
}
