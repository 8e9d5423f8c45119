package main

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// progressFunc receives progress events during a long operation. Events are
// delivered in order and percentages never go backwards within one operation.
type progressFunc func(message string, percent int, status string)

const (
	statusInfo    = "info"
	statusWarning = "warning"
	statusError   = "error"
	statusSuccess = "success"
)

// progressTracker enforces the monotonic-percentage contract: a caller may
// pass any percent, but an emitted value never drops below the last one. Error
// events therefore carry the percent reached at the failure point.
type progressTracker struct {
	report progressFunc
	last   int
}

func (p *progressTracker) emit(message string, percent int, status string) {
	if percent < p.last {
		percent = p.last
	}
	p.last = percent
	if p.report != nil {
		p.report(message, percent, status)
	}
}

func (p *progressTracker) fail(message string) {
	p.emit(message, p.last, statusError)
}

// updateLuma downloads the Luma3DS release zip and copies its files onto the
// card: boot.firm and boot.3dsx to the root (both optional, a missing one is a
// warning), and the files of luma/config into <root>/luma/config.
func updateLuma(root, downloadURL string, report progressFunc) (bool, string) {
	pr := &progressTracker{report: report}
	pr.emit("Starting Luma3DS update process...", 0, statusInfo)

	tempDir, err := os.MkdirTemp("", "3dse-luma-*")
	if err != nil {
		pr.fail(fmt.Sprintf("Could not create a temporary directory: %v", err))
		return false, fmt.Sprintf("could not create a temporary directory: %v", err)
	}
	defer os.RemoveAll(tempDir)

	zipPath := filepath.Join(tempDir, "Luma3DS_update.zip")
	pr.emit("Downloading Luma3DS...", 10, statusInfo)
	if err := downloadArchive(downloadURL, zipPath, pr); err != nil {
		pr.fail(fmt.Sprintf("Network error: %v", err))
		return false, fmt.Sprintf("network error downloading Luma3DS: %v", err)
	}
	pr.emit("Luma3DS archive downloaded.", 60, statusInfo)

	extractDir := filepath.Join(tempDir, "extracted_luma")
	if err := extractZipArchive(zipPath, extractDir); err != nil {
		if errors.Is(err, zip.ErrFormat) {
			pr.fail("Error: Downloaded Luma3DS ZIP is corrupted.")
			return false, "the downloaded Luma3DS ZIP file is corrupted"
		}
		pr.fail(fmt.Sprintf("Error extracting Luma3DS archive: %v", err))
		return false, fmt.Sprintf("error extracting Luma3DS archive: %v", err)
	}
	pr.emit("Luma3DS archive extracted.", 70, statusInfo)

	// boot.firm and boot.3dsx sit at the top of the archive. Either may be
	// absent from a given release; that only warrants a warning.
	copyOptionalRootFile := func(name string, percent int) error {
		src := filepath.Join(extractDir, name)
		if _, err := os.Stat(src); err != nil {
			pr.emit(fmt.Sprintf("Warning: '%s' not found in extracted Luma archive.", name), percent, statusWarning)
			return nil
		}
		pr.emit(fmt.Sprintf("Copying %s...", name), percent, statusInfo)
		return copyFile(src, filepath.Join(root, name))
	}
	if err := copyOptionalRootFile("boot.firm", 75); err != nil {
		pr.fail(fmt.Sprintf("Error copying boot.firm: %v", err))
		return false, fmt.Sprintf("error copying boot.firm: %v", err)
	}
	if err := copyOptionalRootFile("boot.3dsx", 80); err != nil {
		pr.fail(fmt.Sprintf("Error copying boot.3dsx: %v", err))
		return false, fmt.Sprintf("error copying boot.3dsx: %v", err)
	}

	srcConfigDir := filepath.Join(extractDir, "luma", "config")
	if st, err := os.Stat(srcConfigDir); err == nil && st.IsDir() {
		pr.emit("Updating luma/config folder...", 85, statusInfo)
		destConfigDir := filepath.Join(root, "luma", "config")
		if err := os.MkdirAll(destConfigDir, 0o755); err != nil {
			pr.fail(fmt.Sprintf("Error creating luma/config: %v", err))
			return false, fmt.Sprintf("error creating luma/config: %v", err)
		}
		// Files only, non-recursive.
		entries, err := os.ReadDir(srcConfigDir)
		if err != nil {
			pr.fail(fmt.Sprintf("Error reading extracted luma/config: %v", err))
			return false, fmt.Sprintf("error reading extracted luma/config: %v", err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if err := copyFile(filepath.Join(srcConfigDir, e.Name()), filepath.Join(destConfigDir, e.Name())); err != nil {
				pr.fail(fmt.Sprintf("Error copying %s: %v", e.Name(), err))
				return false, fmt.Sprintf("error copying luma/config/%s: %v", e.Name(), err)
			}
		}
	} else {
		pr.emit("Warning: luma/config folder not found in release.", 85, statusWarning)
	}

	pr.emit("Luma3DS files successfully copied.", 100, statusSuccess)
	return true, "Luma3DS update successful."
}

// updateGodMode9 downloads the GodMode9 release zip, copies GodMode9.firm
// (searched anywhere in the extracted tree, required) into luma/payloads, and
// merges the gm9 folder into <root>/gm9. The user's gm9/scripts directory is
// never touched; every other child directory is fully replaced and files are
// overwritten.
func updateGodMode9(root, downloadURL string, report progressFunc) (bool, string) {
	pr := &progressTracker{report: report}
	pr.emit("Starting GodMode9 update process...", 0, statusInfo)

	tempDir, err := os.MkdirTemp("", "3dse-gm9-*")
	if err != nil {
		pr.fail(fmt.Sprintf("Could not create a temporary directory: %v", err))
		return false, fmt.Sprintf("could not create a temporary directory: %v", err)
	}
	defer os.RemoveAll(tempDir)

	zipPath := filepath.Join(tempDir, "GodMode9_update.zip")
	pr.emit("Downloading GodMode9...", 10, statusInfo)
	if err := downloadArchive(downloadURL, zipPath, pr); err != nil {
		pr.fail(fmt.Sprintf("Network error: %v", err))
		return false, fmt.Sprintf("network error downloading GodMode9: %v", err)
	}
	pr.emit("GodMode9 archive downloaded.", 60, statusInfo)

	extractDir := filepath.Join(tempDir, "extracted_gm9")
	if err := extractZipArchive(zipPath, extractDir); err != nil {
		if errors.Is(err, zip.ErrFormat) {
			pr.fail("Error: Downloaded GodMode9 ZIP is corrupted.")
			return false, "the downloaded GodMode9 ZIP file is corrupted"
		}
		pr.fail(fmt.Sprintf("Error extracting GodMode9 archive: %v", err))
		return false, fmt.Sprintf("error extracting GodMode9 archive: %v", err)
	}
	pr.emit("GodMode9 archive extracted.", 70, statusInfo)

	payloadsDir := filepath.Join(root, "luma", "payloads")
	if err := os.MkdirAll(payloadsDir, 0o755); err != nil {
		pr.fail(fmt.Sprintf("Error creating luma/payloads: %v", err))
		return false, fmt.Sprintf("error creating luma/payloads: %v", err)
	}

	// The firm's location inside the archive is not fixed across releases, so
	// search the whole extracted tree. Unlike the Luma files it is required.
	srcFirm := findFileNamed(extractDir, "GodMode9.firm")
	if srcFirm == "" {
		pr.fail("Error: 'GodMode9.firm' not found in the extracted GodMode9 archive.")
		return false, "'GodMode9.firm' not found in the extracted GodMode9 archive"
	}
	pr.emit("Copying GodMode9.firm...", 75, statusInfo)
	if err := copyFile(srcFirm, filepath.Join(payloadsDir, "GodMode9.firm")); err != nil {
		pr.fail(fmt.Sprintf("Error copying GodMode9.firm: %v", err))
		return false, fmt.Sprintf("error copying GodMode9.firm: %v", err)
	}

	srcGM9Dir := filepath.Join(extractDir, "gm9")
	if st, err := os.Stat(srcGM9Dir); err == nil && st.IsDir() {
		pr.emit("Updating gm9/ folder...", 80, statusInfo)
		if err := mergeGM9Folder(srcGM9Dir, filepath.Join(root, "gm9"), pr); err != nil {
			pr.fail(fmt.Sprintf("Error updating gm9 folder: %v", err))
			return false, fmt.Sprintf("error updating gm9 folder: %v", err)
		}
	}

	pr.emit("GodMode9 files successfully copied.", 100, statusSuccess)
	return true, "GodMode9 update successful."
}

// mergeGM9Folder merges src into dest with the gm9 special case: the user's
// "scripts" directory is skipped entirely, other directories are replaced
// wholesale (no stale files survive), plain files are overwritten.
func mergeGM9Folder(src, dest string, pr *progressTracker) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		srcPath := filepath.Join(src, e.Name())
		destPath := filepath.Join(dest, e.Name())

		if e.Name() == "scripts" {
			pr.emit("Skipping gm9/scripts folder...", 85, statusInfo)
			continue
		}
		if e.IsDir() {
			if err := os.RemoveAll(destPath); err != nil {
				return err
			}
			if err := copyTree(srcPath, destPath); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(srcPath, destPath); err != nil {
			return err
		}
	}
	return nil
}

// downloadArchive streams url into destPath. While the content length is
// known, progress is mapped into the 10-60% band of the overall operation;
// otherwise only textual progress is emitted.
func downloadArchive(url, destPath string, pr *progressTracker) error {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "3DSE/"+Version)

	resp, err := doWithProxyFallback(req, 10*time.Minute)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return fmt.Errorf("download status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	f, err := os.Create(destPath)
	if err != nil {
		return err
	}

	total := resp.ContentLength
	var downloaded int64
	var lastPercent int
	var lastUnsized int64
	buf := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				_ = f.Close()
				return werr
			}
			downloaded += int64(n)
			if total > 0 {
				percent := 10 + int(float64(downloaded)/float64(total)*50)
				if percent > lastPercent {
					lastPercent = percent
					pr.emit(fmt.Sprintf("Downloaded: %.2f MB of %.2f MB",
						float64(downloaded)/(1024*1024), float64(total)/(1024*1024)), percent, statusInfo)
				}
			} else if downloaded-lastUnsized >= 1<<20 {
				lastUnsized = downloaded
				pr.emit(fmt.Sprintf("Downloaded: %.2f MB", float64(downloaded)/(1024*1024)), pr.last, statusInfo)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			_ = f.Close()
			return readErr
		}
	}
	return f.Close()
}

// extractZipArchive extracts the whole zip into destDir, refusing entries that
// would escape it.
func extractZipArchive(zipPath, destDir string) error {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return err
	}
	defer zr.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	cleanDest := filepath.Clean(destDir)
	for _, zf := range zr.File {
		target := filepath.Clean(filepath.Join(cleanDest, filepath.FromSlash(zf.Name)))
		if target != cleanDest && !strings.HasPrefix(target, cleanDest+string(os.PathSeparator)) {
			return fmt.Errorf("illegal zip entry path %q", zf.Name)
		}
		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		rc, err := zf.Open()
		if err != nil {
			return err
		}
		out, err := os.Create(target)
		if err != nil {
			rc.Close()
			return err
		}
		_, copyErr := io.Copy(out, rc)
		rc.Close()
		closeErr := out.Close()
		if copyErr != nil {
			return copyErr
		}
		if closeErr != nil {
			return closeErr
		}
	}
	return nil
}

// findFileNamed walks root and returns the full path of the first file with
// the given base name, or "" when none exists.
func findFileNamed(root, name string) string {
	found := ""
	_ = filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && d.Name() == name {
			found = p
			return filepath.SkipAll
		}
		return nil
	})
	return found
}

// copyFile copies src to dst, preserving the mode and modification time.
func copyFile(src, dst string) error {
	st, err := os.Stat(src)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, st.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, time.Now(), st.ModTime())
}

// copyTree copies the directory src to dst recursively. dst must not exist.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(p, target)
	})
}
