//go:build !windows

package main

// Removable-drive enumeration is Windows only; other platforms type the mount
// point by hand.
func listRemovableDrives() []string {
	return nil
}
