package main

import (
	"fmt"
	"os"
	"path/filepath"
)

// dumpOptions is the fixed set of console-specific files 3DSE can copy off
// the card. Keys are stable identifiers the frontend sends back.
var dumpOptions = []DumpOption{
	{Key: "firm0_enc.bak", Path: "boot9strap/firm0_enc.bak", Name: "firm0_enc.bak (Boot9Strap)"},
	{Key: "firm1_enc.bak", Path: "boot9strap/firm1_enc.bak", Name: "firm1_enc.bak (Boot9Strap)"},
	{Key: "bios7i_part1.bin", Path: "_nds/bios7i_part1.bin", Name: "bios7i_part1.bin (_nds)"},
	{Key: "bios9i_part1.bin", Path: "_nds/bios9i_part1.bin", Name: "bios9i_part1.bin (_nds)"},
	{Key: "boot9.bin", Path: "3ds/boot9.bin", Name: "boot9.bin (3ds)"},
	{Key: "boot11.bin", Path: "3ds/boot11.bin", Name: "boot11.bin (3ds)"},
}

func dumpOptionByKey(key string) (DumpOption, bool) {
	for _, opt := range dumpOptions {
		if opt.Key == key {
			return opt, true
		}
	}
	return DumpOption{}, false
}

// defaultDumpFolder is where dumped files land unless the user picks another
// destination.
func defaultDumpFolder() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "3DSE_Dumps"
	}
	return filepath.Join(home, "3DSE_Dumps")
}

// dumpFile copies one file from the card to destFolder, preserving metadata.
// The destination folder is created if missing. A missing source is reported
// through the returned flag/message so a batch can continue with its other
// files.
func dumpFile(root, sourceRel, destFolder string, report progressFunc) (bool, string) {
	pr := &progressTracker{report: report}

	fullSource := filepath.Join(root, filepath.FromSlash(sourceRel))
	fileName := filepath.Base(fullSource)

	if err := os.MkdirAll(destFolder, 0o755); err != nil {
		pr.fail(fmt.Sprintf("Error creating destination folder: %v", err))
		return false, fmt.Sprintf("error creating destination folder '%s': %v", destFolder, err)
	}

	pr.emit(fmt.Sprintf("Starting dump of %s...", fileName), 0, statusInfo)

	if _, err := os.Stat(fullSource); err != nil {
		pr.fail(fmt.Sprintf("Error: Source file '%s' not found on SD card.", fileName))
		return false, fmt.Sprintf("source file '%s' not found", fullSource)
	}

	fullDest := filepath.Join(destFolder, fileName)
	if err := copyFile(fullSource, fullDest); err != nil {
		pr.fail(fmt.Sprintf("Error dumping '%s': %v", fileName, err))
		return false, fmt.Sprintf("error dumping '%s': %v", fileName, err)
	}

	pr.emit(fmt.Sprintf("File '%s' successfully dumped.", fileName), 100, statusSuccess)
	return true, fmt.Sprintf("file '%s' successfully dumped to '%s'", fileName, fullDest)
}
