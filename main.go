package main

import (
	"embed"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	initialDrive := ""
	exe, _ := os.Executable()
	// In dev mode Wails runs a transient wailsbindings.exe to generate the JS
	// bindings. That process must not take part in the single-instance logic,
	// or it can briefly grab the mutex and make the real app think it is a
	// secondary instance and exit.
	baseExe := strings.ToLower(filepath.Base(exe))
	skipSingleInstance := strings.Contains(baseExe, "wailsbindings")
	for _, arg := range os.Args[1:] {
		if strings.HasPrefix(arg, "--drive=") {
			initialDrive = strings.TrimPrefix(arg, "--drive=")
			initialDrive = strings.Trim(initialDrive, "\"")
			break
		}
	}
	appendLaunchLogf("main exe=%q args=%q initialDrive=%q", exe, strings.Join(os.Args[1:], " "), initialDrive)
	if skipSingleInstance {
		appendLaunchLogf("single-instance skipped exe=%q", exe)
	}

	const appID = "3DSE"
	primary, releaseMutex, err := true, func() {}, error(nil)
	if !skipSingleInstance {
		primary, releaseMutex, err = tryAcquireSingleInstance(appID)
	}
	if err != nil {
		appendLaunchLogf("single-instance acquire err=%v", err)
	} else if !primary {
		appendLaunchLogf("single-instance secondary: notifying existing instance")
		// An instance is already running: forward the launch intent (the
		// optional --drive) and exit.
		if err := notifyExistingInstance(appID, initialDrive); err != nil {
			appendLaunchLogf("single-instance notify err=%v", err)
		}
		return
	}
	defer releaseMutex()
	if primary {
		appendLaunchLog("single-instance primary")
	}

	var ipcLn net.Listener
	var ipcCleanup func()
	if primary {
		ln, cleanup, err := startInstanceIPC(appID)
		if err != nil {
			appendLaunchLogf("single-instance ipc start err=%v", err)
		} else {
			ipcLn = ln
			ipcCleanup = cleanup
		}
	}
	if ipcCleanup != nil {
		defer ipcCleanup()
	}

	// Create an instance of the app structure
	app := NewApp(initialDrive)
	if ipcLn != nil {
		app.setIPCListener(ipcLn)
	}

	// Create application with options
	err = wails.Run(&options.App{
		Title:  "3DSE - 3DS Everything Tool",
		Width:  560,
		Height: 720,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		BackgroundColour: &options.RGBA{R: 27, G: 38, B: 54, A: 1},
		OnStartup:        app.startup,
		Bind: []interface{}{
			app,
		},
	})

	if err != nil {
		println("Error:", err.Error())
	}
}
