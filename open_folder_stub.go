//go:build !windows

package main

import (
	"os/exec"
	"runtime"
	"strings"
)

func openFolderInOS(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if runtime.GOOS == "darwin" {
		return exec.Command("open", path).Start()
	}
	return exec.Command("xdg-open", path).Start()
}
