//go:build !windows

package localfs

import (
	"os"
	"syscall"
	"time"

	"github.com/filedesk/filecore/corefs"
)

// fillPlatformStat fills the uid/gid/mode/timestamp/device/inode fields
// corefs.Info carries that os.FileInfo alone cannot answer, following
// metadata_linux.go's readTime/readMetadataFromFile pattern of pulling a
// *syscall.Stat_t out of fi.Sys().
func fillPlatformStat(fi os.FileInfo, info *corefs.Info) {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return
	}
	info.UID = int(st.Uid)
	info.GID = int(st.Gid)
	info.Device = uint64(st.Dev)
	info.Inode = st.Ino
	info.AccessTime = time.Unix(st.Atim.Sec, st.Atim.Nsec)
	info.ChangeTime = time.Unix(st.Ctim.Sec, st.Ctim.Nsec)
}
