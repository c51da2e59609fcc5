//go:build linux

package relayout

import (
	"os"
	"syscall"
	"time"
)

func accessTime(st *syscall.Stat_t, _ os.FileInfo) time.Time {
	return time.Unix(int64(st.Atim.Sec), int64(st.Atim.Nsec))
}
