//go:build windows

package fileops

import "os"

// Windows has no stable (device, inode) pair via os.FileInfo.Sys(); loop
// detection is skipped there rather than faked with a weaker key, matching
// FreeSpace's Windows stub of declining to guess at unsupported metadata.
func statInodeKey(fi os.FileInfo) (inodeKey, bool) {
	return inodeKey{}, false
}
