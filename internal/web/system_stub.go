//go:build !linux

package web

func snapshotDisk(path string) *DiskStatus {
	return nil
}
