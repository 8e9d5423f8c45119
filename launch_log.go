package main

import (
	"fmt"
	"os"
	"strings"
	"time"
)

func appendLaunchLogf(format string, args ...any) {
	appendLaunchLog(fmt.Sprintf(format, args...))
}

func appendLaunchLog(line string) {
	// Diagnostics only ("the update button did nothing", "the drive was not
	// detected"). Written to the temp dir; never affects normal behavior.
	path := filepathJoinSafe(os.TempDir(), "3dse-launch.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.WriteString(time.Now().Format(time.RFC3339) + " " + line + "\n")
}

func filepathJoinSafe(dir, name string) string {
	if strings.HasSuffix(dir, "\\") || strings.HasSuffix(dir, "/") {
		return dir + name
	}
	return dir + string(os.PathSeparator) + name
}
