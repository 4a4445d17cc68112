//go:build !linux

package file

import "io/fs"

// sysAttributes is a no-op where the syscall stat surface is
// unavailable; the portable fields already cover name, size, mtime,
// mode, and type.
func sysAttributes(fs.FileInfo, map[string]any) {}
