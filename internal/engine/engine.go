// Package engine wraps the external extraction/download tool behind a small
// interface so the orchestrator never sees engine-specific types.
package engine

import (
	"context"

	"github.com/vidgrab/vidgrab/internal/model"
)

// Stage identifies what a progress event describes.
type Stage string

const (
	StageDownloading Stage = "downloading"
	StageFinished    Stage = "finished"
	StageError       Stage = "error"
)

// ProgressEvent carries engine-native transfer counters. Counters the
// engine did not report are zero with the matching Known flag unset.
type ProgressEvent struct {
	Stage           Stage
	DownloadedBytes int64
	TotalBytes      int64
	TotalKnown      bool
	SpeedBps        int64
	SpeedKnown      bool
	EtaSeconds      int64
	EtaKnown        bool
	Filename        string
}

// Format is one downloadable format of a probed video.
type Format struct {
	ID         string  `json:"format_id"`
	Ext        string  `json:"ext,omitempty"`
	Resolution string  `json:"resolution,omitempty"`
	FPS        float64 `json:"fps,omitempty"`
	VCodec     string  `json:"vcodec,omitempty"`
	ACodec     string  `json:"acodec,omitempty"`
	Filesize   int64   `json:"filesize,omitempty"`
	Note       string  `json:"format_note,omitempty"`
}

// Info is the metadata returned by a probe without downloading.
type Info struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Uploader string   `json:"uploader,omitempty"`
	Duration float64  `json:"duration,omitempty"`
	Ext      string   `json:"ext,omitempty"`
	WebURL   string   `json:"webpage_url,omitempty"`
	Formats  []Format `json:"formats,omitempty"`
}

// Engine performs extraction and download for a single request. Progress
// events are delivered through onProgress zero or more times; the final
// outcome is the return value.
type Engine interface {
	Download(ctx context.Context, req model.Request, onProgress func(ProgressEvent)) (*model.Result, error)
	Probe(ctx context.Context, url string) (*Info, error)
}
