// Package progress normalizes engine progress events into task progress
// snapshots and forwards them to the registry.
package progress

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/vidgrab/vidgrab/internal/engine"
	"github.com/vidgrab/vidgrab/internal/model"
)

// Sink receives normalized snapshots. Satisfied by the task registry.
type Sink interface {
	UpdateProgress(id string, p *model.Progress)
}

// Reporter is the per-task event callback handed to the engine. The engine
// is the single producer for a task, so Handle needs no locking.
type Reporter struct {
	taskID     string
	sink       Sink
	maxPercent float64
}

func NewReporter(taskID string, sink Sink) *Reporter {
	return &Reporter{taskID: taskID, sink: sink}
}

// Handle normalizes one engine event and forwards it. Counters the engine
// omitted stay absent rather than defaulting to a misleading zero; the
// percentage defaults to 0 when the total is unknown and is forced to 100
// on the finished event. The reported percentage never regresses within a
// task.
func (r *Reporter) Handle(ev engine.ProgressEvent) {
	p := &model.Progress{
		Stage:    string(ev.Stage),
		Filename: ev.Filename,
	}

	if ev.Stage == engine.StageDownloading || ev.Stage == engine.StageFinished {
		downloaded := ev.DownloadedBytes
		p.DownloadedBytes = &downloaded
		p.DownloadedHuman = humanize.Bytes(uint64(downloaded))
	}
	if ev.TotalKnown {
		total := ev.TotalBytes
		p.TotalBytes = &total
		p.TotalHuman = humanize.Bytes(uint64(total))
	}
	if ev.SpeedKnown {
		speed := ev.SpeedBps
		p.SpeedBps = &speed
		p.SpeedHuman = humanize.Bytes(uint64(speed)) + "/s"
	}
	if ev.EtaKnown {
		eta := ev.EtaSeconds
		p.EtaSeconds = &eta
		p.EtaHuman = formatETA(time.Duration(eta) * time.Second)
	}

	switch {
	case ev.Stage == engine.StageFinished:
		p.Percent = 100
	case ev.TotalKnown && ev.TotalBytes > 0:
		p.Percent = float64(ev.DownloadedBytes) / float64(ev.TotalBytes) * 100
	}
	if p.Percent < r.maxPercent {
		p.Percent = r.maxPercent
	}
	r.maxPercent = p.Percent

	r.sink.UpdateProgress(r.taskID, p)
}

// formatETA renders a duration as mm:ss, or hh:mm:ss above an hour.
func formatETA(d time.Duration) string {
	total := int(d.Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
