package main

// ProgressEvent is the payload of the "updateProgress" event. Target tells the
// frontend which panel the event belongs to ("luma" | "gm9" | "dump").
type ProgressEvent struct {
	Target  string `json:"target"`
	Message string `json:"message"`
	Percent int    `json:"percent"`
	Status  string `json:"status"` // "info" | "warning" | "error" | "success"
}

// ReleaseInfo describes the newest published release of one component.
type ReleaseInfo struct {
	Version     string `json:"version"`
	DownloadURL string `json:"downloadUrl"`
}

// ComponentStatus is one row of the status check: what is on the card, what
// GitHub has, and whether an update makes sense. Error fields hold
// human-readable text; empty means the corresponding step succeeded.
type ComponentStatus struct {
	LocalVersion  string `json:"localVersion"`
	LocalError    string `json:"localError"`
	LatestVersion string `json:"latestVersion"`
	DownloadURL   string `json:"downloadUrl"`
	RemoteError   string `json:"remoteError"`
	UpdateOffered bool   `json:"updateOffered"`
}

// StatusReport matches the shape expected by the status panel in the frontend.
type StatusReport struct {
	Drive string          `json:"drive"`
	Luma  ComponentStatus `json:"luma"`
	GM9   ComponentStatus `json:"gm9"`
}

// OperationResult is the terminal outcome of an update operation. Failures are
// reported here rather than as a rejected promise so the frontend always gets
// a message to show next to the progress bar.
type OperationResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// DumpOption is one selectable dump source on the SD card.
type DumpOption struct {
	Key  string `json:"key"`
	Path string `json:"path"`
	Name string `json:"name"`
}

// DumpFileResult is the per-file outcome of a dump batch.
type DumpFileResult struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// DumpBatchResult aggregates a dump batch. One missing source file does not
// fail the batch; it only lowers Succeeded.
type DumpBatchResult struct {
	Succeeded int              `json:"succeeded"`
	Total     int              `json:"total"`
	Folder    string           `json:"folder"`
	Files     []DumpFileResult `json:"files"`
}
