package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// App struct
type App struct {
	ctx          context.Context
	settings     *SettingsStore
	initialDrive string

	ipcOnce     sync.Once
	ipcListener net.Listener

	watchMu   sync.Mutex
	watcher   *driveWatcher
	watchRoot string
}

// NewApp creates a new App application struct
func NewApp(initialDrive string) *App {
	return &App{settings: NewSettingsStore(), initialDrive: initialDrive}
}

func (a *App) setIPCListener(ln net.Listener) {
	a.ipcListener = ln
}

// startup is called when the app starts. The context is saved
// so we can call the runtime methods
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	a.startIPCListener()

	drive := strings.TrimSpace(a.initialDrive)
	if drive == "" {
		return
	}
	// A drive passed on the command line (second-instance forwarding) becomes
	// the preselected drive in the UI.
	appendLaunchLogf("startup --drive=%q", drive)
	if a.settings != nil {
		_ = a.settings.SetString(settingKeyLastDrive, drive)
	}
	a.emitDriveChanged(drive)
}

func (a *App) emitDriveChanged(drive string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, "driveChanged", drive)
}

func (a *App) emitProgress(target, message string, percent int, status string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, "updateProgress", ProgressEvent{
		Target:  target,
		Message: message,
		Percent: percent,
		Status:  status,
	})
}

func (a *App) startIPCListener() {
	if a.ipcListener == nil {
		return
	}
	a.ipcOnce.Do(func() {
		go func() {
			for {
				conn, err := a.ipcListener.Accept()
				if err != nil {
					return
				}
				go a.handleIPCConn(conn)
			}
		}()
	})
}

func (a *App) handleIPCConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	if a.ctx == nil {
		return
	}

	data, _ := io.ReadAll(io.LimitReader(conn, 16*1024))
	drive := strings.TrimSpace(string(data))
	drive = strings.Trim(drive, "\"")

	// Pull the window to the front; briefly pinning on top makes the wake-up
	// succeed more reliably.
	runtime.WindowShow(a.ctx)
	runtime.WindowUnminimise(a.ctx)
	runtime.WindowSetAlwaysOnTop(a.ctx, true)
	runtime.WindowSetAlwaysOnTop(a.ctx, false)

	if drive == "" {
		return
	}
	appendLaunchLogf("ipc --drive=%q", drive)
	if a.settings != nil {
		_ = a.settings.SetString(settingKeyLastDrive, drive)
	}
	a.emitDriveChanged(drive)
}

func (a *App) GetVersion() string {
	return Version
}

// ListRemovableDrives returns the volume roots of currently attached
// removable drives for the drive picker (Windows only; empty elsewhere).
func (a *App) ListRemovableDrives() []string {
	return listRemovableDrives()
}

func (a *App) LastDrive() string {
	if a.settings == nil {
		return ""
	}
	return a.settings.GetString(settingKeyLastDrive)
}

func (a *App) GetDumpOptions() []DumpOption {
	return dumpOptions
}

// DumpFolder returns the persisted dump destination, or the default
// <home>/3DSE_Dumps.
func (a *App) DumpFolder() string {
	if a.settings != nil {
		if p := a.settings.GetString(settingKeyDumpFolder); p != "" {
			return p
		}
	}
	return defaultDumpFolder()
}

func (a *App) PickDumpFolder() (string, error) {
	if a.ctx == nil {
		return "", nil
	}
	dir, err := runtime.OpenDirectoryDialog(a.ctx, runtime.OpenDialogOptions{
		Title:            "Select dump destination folder",
		DefaultDirectory: a.DumpFolder(),
	})
	if err != nil || dir == "" {
		return "", err
	}
	if a.settings != nil {
		_ = a.settings.SetString(settingKeyDumpFolder, dir)
	}
	return dir, nil
}

// OpenDumpFolder opens the given path in the OS file explorer.
func (a *App) OpenDumpFolder(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	return openFolderInOS(path)
}

func (a *App) GuideQRCode() (string, error) {
	return guideQRCodeDataURL()
}

// CheckStatus inspects the card and queries GitHub for both components. The
// two release lookups run concurrently; local inventory errors are carried in
// the report rather than failing the whole check.
func (a *App) CheckStatus(drive string) (*StatusReport, error) {
	root := normalizeDeviceRoot(drive)
	if root == "" {
		return nil, fmt.Errorf("no drive given")
	}
	appendLaunchLogf("status check start drive=%q", root)

	report := &StatusReport{Drive: root}

	if v, err := localLumaVersion(root); err != nil {
		report.Luma.LocalError = err.Error()
	} else {
		report.Luma.LocalVersion = v
	}
	if st, err := godMode9Status(root); err != nil {
		report.GM9.LocalVersion = st
		report.GM9.LocalError = err.Error()
	} else {
		report.GM9.LocalVersion = st
	}

	var wg sync.WaitGroup
	var lumaRel, gm9Rel *ReleaseInfo
	var lumaErr, gm9Err error
	wg.Add(2)
	go func() {
		defer wg.Done()
		lumaRel, lumaErr = fetchLatestReleaseInfo(lumaTarget)
	}()
	go func() {
		defer wg.Done()
		gm9Rel, gm9Err = fetchLatestReleaseInfo(gm9Target)
	}()
	wg.Wait()

	if lumaErr != nil {
		report.Luma.RemoteError = lumaErr.Error()
	} else {
		report.Luma.LatestVersion = lumaRel.Version
		report.Luma.DownloadURL = lumaRel.DownloadURL
	}
	if gm9Err != nil {
		report.GM9.RemoteError = gm9Err.Error()
	} else {
		report.GM9.LatestVersion = gm9Rel.Version
		report.GM9.DownloadURL = gm9Rel.DownloadURL
	}

	// Luma is offered only when both versions are known and local is older.
	if report.Luma.LocalError == "" && report.Luma.RemoteError == "" {
		report.Luma.UpdateOffered = compareVersions(report.Luma.LocalVersion, report.Luma.LatestVersion) == -1
	}
	// GodMode9 has no readable local version, so any known release is offered
	// as an install/refresh as long as the card itself is reachable.
	if report.GM9.RemoteError == "" && (report.GM9.LocalVersion == gm9Installed || report.GM9.LocalVersion == gm9NotFound) {
		report.GM9.UpdateOffered = true
	}

	if a.settings != nil {
		_ = a.settings.SetString(settingKeyLastDrive, drive)
	}
	a.resetWatcher(root)

	appendLaunchLogf("status check done luma=%q/%q gm9=%q/%q",
		report.Luma.LocalVersion, report.Luma.LatestVersion, report.GM9.LocalVersion, report.GM9.LatestVersion)
	return report, nil
}

// UpdateLuma runs the Luma3DS update, streaming progress through the
// "updateProgress" event. Failures come back in the result, never as a
// rejected promise.
func (a *App) UpdateLuma(drive, downloadURL string) OperationResult {
	root := normalizeDeviceRoot(drive)
	appendLaunchLogf("luma update start drive=%q url=%q", root, downloadURL)
	ok, msg := updateLuma(root, downloadURL, func(message string, percent int, status string) {
		a.emitProgress("luma", message, percent, status)
	})
	appendLaunchLogf("luma update done ok=%v msg=%q", ok, msg)
	return OperationResult{Success: ok, Message: msg}
}

// UpdateGodMode9 runs the GodMode9 update, streaming progress through the
// "updateProgress" event.
func (a *App) UpdateGodMode9(drive, downloadURL string) OperationResult {
	root := normalizeDeviceRoot(drive)
	appendLaunchLogf("gm9 update start drive=%q url=%q", root, downloadURL)
	ok, msg := updateGodMode9(root, downloadURL, func(message string, percent int, status string) {
		a.emitProgress("gm9", message, percent, status)
	})
	appendLaunchLogf("gm9 update done ok=%v msg=%q", ok, msg)
	return OperationResult{Success: ok, Message: msg}
}

// DumpSelected copies each selected file off the card. A failure on one file
// does not stop the rest of the batch.
func (a *App) DumpSelected(drive string, keys []string, destFolder string) DumpBatchResult {
	root := normalizeDeviceRoot(drive)
	if strings.TrimSpace(destFolder) == "" {
		destFolder = a.DumpFolder()
	}
	appendLaunchLogf("dump start drive=%q folder=%q files=%d", root, destFolder, len(keys))

	result := DumpBatchResult{Folder: destFolder}
	for _, key := range keys {
		opt, ok := dumpOptionByKey(key)
		if !ok {
			continue
		}
		result.Total++
		success, msg := dumpFile(root, opt.Path, destFolder, func(message string, percent int, status string) {
			a.emitProgress("dump", fmt.Sprintf("%s: %s", opt.Name, message), percent, status)
		})
		if success {
			result.Succeeded++
		}
		result.Files = append(result.Files, DumpFileResult{
			Key: key, Name: opt.Name, Success: success, Message: msg,
		})
	}

	finalStatus := statusSuccess
	if result.Succeeded < result.Total {
		finalStatus = statusWarning
	}
	a.emitProgress("dump", fmt.Sprintf("Dump process completed: %d of %d files successfully dumped.",
		result.Succeeded, result.Total), 100, finalStatus)
	appendLaunchLogf("dump done ok=%d/%d", result.Succeeded, result.Total)
	return result
}

func (a *App) resetWatcher(root string) {
	a.watchMu.Lock()
	prev := a.watchRoot
	a.watchMu.Unlock()
	if prev == root {
		return
	}
	a.stopWatcher()

	dw, err := newDriveWatcher(root, func() {
		a.emitDriveChanged(root)
	})
	if err != nil {
		return
	}
	if err := dw.Start(); err != nil {
		return
	}

	a.watchMu.Lock()
	a.watcher = dw
	a.watchRoot = root
	a.watchMu.Unlock()
}

func (a *App) stopWatcher() {
	a.watchMu.Lock()
	dw := a.watcher
	a.watcher = nil
	a.watchRoot = ""
	a.watchMu.Unlock()

	if dw != nil {
		dw.Stop()
	}
}
