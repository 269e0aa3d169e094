//go:build linux

package web

import "golang.org/x/sys/unix"

func snapshotDisk(path string) *DiskStatus {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return &DiskStatus{Path: path, LastError: err.Error()}
	}

	bsize := uint64(st.Bsize)
	return &DiskStatus{
		Path:       path,
		TotalBytes: st.Blocks * bsize,
		FreeBytes:  st.Bfree * bsize,
		AvailBytes: st.Bavail * bsize,
	}
}
