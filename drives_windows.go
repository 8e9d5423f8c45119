//go:build windows

package main

import (
	"golang.org/x/sys/windows"
)

// listRemovableDrives enumerates attached removable volumes (SD card readers
// show up as DRIVE_REMOVABLE). Roots come back as "E:\"-style paths.
func listRemovableDrives() []string {
	mask, err := windows.GetLogicalDrives()
	if err != nil {
		appendLaunchLogf("drive enumeration err=%v", err)
		return nil
	}

	var drives []string
	for i := 0; i < 26; i++ {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		root := string(rune('A'+i)) + ":\\"
		ptr, err := windows.UTF16PtrFromString(root)
		if err != nil {
			continue
		}
		if windows.GetDriveType(ptr) == windows.DRIVE_REMOVABLE {
			drives = append(drives, root)
		}
	}
	return drives
}
