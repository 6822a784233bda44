package model

import (
	"crypto/md5"
	"encoding/hex"
	"time"
)

// Request describes one download submission.
type Request struct {
	URL        string `json:"url"`
	OutputDir  string `json:"output_path"`
	Format     string `json:"format"`
	CookieFile string `json:"cookie_file,omitempty"`

	// CookieFileTemp marks CookieFile as created solely for this request,
	// to be removed by the worker when the task finishes.
	CookieFileTemp bool `json:"-"`
}

// Key returns the deduplication key for the request. Two requests with the
// same URL, output directory and format map to the same task while the
// first one has not failed.
func (r Request) Key() string {
	sum := md5.Sum([]byte(r.URL + "|" + r.OutputDir + "|" + r.Format))
	return hex.EncodeToString(sum[:])
}

// Progress is the latest known transfer snapshot for an in-flight task.
// Byte counters are pointers so that fields the engine never reported stay
// absent instead of reading as a misleading zero.
type Progress struct {
	DownloadedBytes *int64  `json:"downloaded_bytes,omitempty"`
	TotalBytes      *int64  `json:"total_bytes,omitempty"`
	SpeedBps        *int64  `json:"speed_bps,omitempty"`
	EtaSeconds      *int64  `json:"eta_seconds,omitempty"`
	Percent         float64 `json:"percent"`
	Stage           string  `json:"stage,omitempty"`
	Filename        string  `json:"filename,omitempty"`

	// Human-readable renderings of the counters above.
	DownloadedHuman string `json:"downloaded,omitempty"`
	TotalHuman      string `json:"total,omitempty"`
	SpeedHuman      string `json:"speed,omitempty"`
	EtaHuman        string `json:"eta,omitempty"`
}

// Result is the structured payload attached to a completed task.
type Result struct {
	Filepath string `json:"filepath"`
	Title    string `json:"title,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// ErrorRecord is the classified failure attached to a failed task.
type ErrorRecord struct {
	Category      string            `json:"category"`
	Message       string            `json:"message"`
	Timestamp     time.Time         `json:"timestamp"`
	Trace         string            `json:"trace,omitempty"`
	Context       map[string]string `json:"context,omitempty"`
	RetryPossible bool              `json:"retry_possible"`
	Suggestions   []string          `json:"suggestions,omitempty"`
}

// Task is one tracked download attempt.
type Task struct {
	ID        string       `json:"id"`
	Request   Request      `json:"request"`
	Status    Status       `json:"status"`
	Progress  *Progress    `json:"progress,omitempty"`
	Result    *Result      `json:"result,omitempty"`
	Error     *ErrorRecord `json:"error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Clone returns a copy of the task safe to hand out of the registry.
func (t *Task) Clone() *Task {
	cp := *t
	if t.Progress != nil {
		p := *t.Progress
		cp.Progress = &p
	}
	if t.Result != nil {
		r := *t.Result
		cp.Result = &r
	}
	if t.Error != nil {
		e := *t.Error
		if t.Error.Context != nil {
			e.Context = make(map[string]string, len(t.Error.Context))
			for k, v := range t.Error.Context {
				e.Context[k] = v
			}
		}
		if t.Error.Suggestions != nil {
			e.Suggestions = append([]string(nil), t.Error.Suggestions...)
		}
		cp.Error = &e
	}
	return &cp
}
