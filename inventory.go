package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
)

// GodMode9 has no version readable from the firm file, so the local check is
// presence-only.
const (
	gm9Installed = "Installed"
	gm9NotFound  = "Not found"
)

var lumaVersionRe = regexp.MustCompile(`v(\d+\.\d+\.\d+)`)

// normalizeDeviceRoot turns user input like "e" or "E:" into a usable volume
// root. Windows volume roots are special: a bare "E:" means "current directory
// on E", so a separator must be appended before any stat/join.
func normalizeDeviceRoot(drive string) string {
	drive = strings.TrimSpace(drive)
	drive = strings.Trim(drive, "\"")
	if drive == "" {
		return ""
	}
	if runtime.GOOS == "windows" {
		if len(drive) == 1 && isDriveLetter(drive[0]) {
			drive += ":"
		}
		if len(drive) == 2 && isDriveLetter(drive[0]) && drive[1] == ':' {
			return strings.ToUpper(drive[:1]) + ":" + string(os.PathSeparator)
		}
		vol := filepath.VolumeName(drive)
		if vol != "" && strings.EqualFold(filepath.Clean(drive), vol) {
			return vol + string(os.PathSeparator)
		}
	}
	return filepath.Clean(drive)
}

func isDriveLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// localLumaVersion reads the Luma3DS version from the first line of
// luma/config.ini on the card. The checks run root -> directory -> file so the
// error names the first missing element.
func localLumaVersion(root string) (string, error) {
	if _, err := os.Stat(root); err != nil {
		return "", fmt.Errorf("drive '%s' not found", root)
	}
	lumaDir := filepath.Join(root, "luma")
	if st, err := os.Stat(lumaDir); err != nil || !st.IsDir() {
		return "", fmt.Errorf("the 'luma' directory was not found on '%s'", root)
	}
	configPath := filepath.Join(lumaDir, "config.ini")
	if _, err := os.Stat(configPath); err != nil {
		return "", fmt.Errorf("the file '%s' (config.ini) was not found", configPath)
	}

	f, err := os.Open(configPath)
	if err != nil {
		return "", fmt.Errorf("error reading config.ini: %v", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	firstLine := ""
	if sc.Scan() {
		firstLine = strings.TrimSpace(sc.Text())
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("error reading config.ini: %v", err)
	}

	m := lumaVersionRe.FindStringSubmatch(firstLine)
	if m == nil {
		return "", fmt.Errorf("the first line of config.ini does not contain the expected Luma3DS version format")
	}
	return m[1], nil
}

// godMode9Status checks whether GodMode9.firm is present in luma/payloads.
// A missing payload file is a soft result (gm9NotFound plus a message), not a
// hard failure, so the status check stays non-fatal; a missing drive or
// payloads directory returns an empty status with the error.
func godMode9Status(root string) (string, error) {
	if _, err := os.Stat(root); err != nil {
		return "", fmt.Errorf("drive '%s' not found", root)
	}
	payloadsDir := filepath.Join(root, "luma", "payloads")
	if st, err := os.Stat(payloadsDir); err != nil || !st.IsDir() {
		return "", fmt.Errorf("the 'luma/payloads' directory was not found on '%s'", root)
	}
	firmPath := filepath.Join(payloadsDir, "GodMode9.firm")
	if _, err := os.Stat(firmPath); err != nil {
		return gm9NotFound, fmt.Errorf("the file '%s' (GodMode9.firm) was not found", firmPath)
	}
	return gm9Installed, nil
}
