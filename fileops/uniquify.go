package fileops

import (
	"fmt"
	"strings"

	"github.com/filedesk/filecore/corefs"
)

// Existence is the narrow capability Uniquify needs: "does something
// already live here". Satisfied by *localfs.Client.Exists.
type Existence interface {
	Exists(loc corefs.Location) bool
}

// Uniquify returns a Location under dir not currently occupied, starting
// from baseName and retrying with " (2)", " (3)", ... suffixes before the
// extension, re-probing the filesystem on every attempt rather than
// precomputing a free name from a directory listing snapshot — the
// locale-agnostic, recursive approach SPEC_FULL.md §10 item 1 recovers
// from the original's retry loop. Each candidate is checked when it is
// tried, but nothing reserves it: a concurrent writer can still take the
// returned name before the caller creates it.
func Uniquify(existence Existence, dir corefs.Location, baseName string) corefs.Location {
	candidate := dir.Child(baseName)
	if !existence.Exists(candidate) {
		return candidate
	}

	stem, ext := splitExt(baseName)
	for n := 2; n < maxUniquifyAttempts; n++ {
		name := fmt.Sprintf("%s (%d)%s", stem, n, ext)
		candidate = dir.Child(name)
		if !existence.Exists(candidate) {
			return candidate
		}
	}
	// Exhausted the bound: return the last candidate anyway, matching the
	// original's behavior of eventually giving up and letting the actual
	// filesystem operation fail with "already exists" rather than looping
	// forever.
	return candidate
}

// maxUniquifyAttempts bounds the retry loop so a pathological directory
// (thousands of "foo (N).txt" siblings) can't hang an operation.
const maxUniquifyAttempts = 10000

// LinkName builds the "Link to <basename>" name spec.md §4.G item 2
// specifies for a new symlink, before uniquification.
func LinkName(target corefs.Location) string {
	return "Link to " + target.Base()
}

func splitExt(name string) (stem, ext string) {
	// A leading dot (dotfile) is not an extension boundary: ".bashrc"
	// uniquifies to ".bashrc (2)", not " (2).bashrc".
	trimmed := strings.TrimPrefix(name, ".")
	if i := strings.LastIndexByte(trimmed, '.'); i > 0 {
		offset := len(name) - len(trimmed)
		return name[:i+offset], name[i+offset:]
	}
	return name, ""
}
