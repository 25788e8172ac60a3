package fswatch

import (
	"os"
	"syscall"
)

// unixMode returns the raw st_mode bits, which the collector expects rather
// than Go's portable FileMode.
func unixMode(info os.FileInfo) uint32 {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return st.Mode
	}
	return uint32(info.Mode().Perm())
}
