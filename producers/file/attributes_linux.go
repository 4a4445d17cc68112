//go:build linux

package file

import (
	"io/fs"
	"syscall"
)

// sysAttributes fills in the stat fields the portable FileInfo surface
// does not expose.
func sysAttributes(info fs.FileInfo, attrs map[string]any) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return
	}
	attrs["atime"] = st.Atim.Sec
	attrs["ctime"] = st.Ctim.Sec
	attrs["links"] = int64(st.Nlink)
	attrs["uid"] = st.Uid
	attrs["gid"] = st.Gid
	attrs["device"] = uint64(st.Dev)
	attrs["inode"] = uint64(st.Ino)
}
