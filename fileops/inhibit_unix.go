//go:build !windows

package fileops

import "golang.org/x/sys/unix"

func unixClose(fd int) error {
	return unix.Close(fd)
}
