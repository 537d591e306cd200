//go:build windows

package localfs

import (
	"os"

	"github.com/filedesk/filecore/corefs"
)

// fillPlatformStat is a no-op on Windows: UID/GID/inode have no equivalent,
// and os.FileInfo's ModTime already covers what we can portably report.
// backend/local/local.go takes the same approach in metadata_windows.go,
// leaving ownership fields at their zero value on this platform.
func fillPlatformStat(fi os.FileInfo, info *corefs.Info) {}
