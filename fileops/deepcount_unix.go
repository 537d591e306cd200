//go:build !windows

package fileops

import (
	"os"

	"golang.org/x/sys/unix"
)

func statInodeKey(fi os.FileInfo) (inodeKey, bool) {
	st, ok := fi.Sys().(*unix.Stat_t)
	if !ok {
		return inodeKey{}, false
	}
	return inodeKey{fsID: uint64(st.Dev), inode: st.Ino}, true
}
