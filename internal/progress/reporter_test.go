package progress

import (
	"testing"
	"time"

	"github.com/vidgrab/vidgrab/internal/engine"
	"github.com/vidgrab/vidgrab/internal/model"
)

type captureSink struct {
	id   string
	last *model.Progress
}

func (c *captureSink) UpdateProgress(id string, p *model.Progress) {
	c.id = id
	c.last = p
}

func TestReporter_Downloading(t *testing.T) {
	sink := &captureSink{}
	r := NewReporter("task-1", sink)

	r.Handle(engine.ProgressEvent{
		Stage:           engine.StageDownloading,
		DownloadedBytes: 512,
		TotalBytes:      2048,
		TotalKnown:      true,
		SpeedBps:        256,
		SpeedKnown:      true,
		EtaSeconds:      6,
		EtaKnown:        true,
		Filename:        "video.mp4",
	})

	if sink.id != "task-1" {
		t.Fatalf("forwarded to wrong task: %s", sink.id)
	}
	p := sink.last
	if p == nil {
		t.Fatal("no snapshot forwarded")
	}
	if p.Percent != 25 {
		t.Errorf("percent = %v, expected 25", p.Percent)
	}
	if p.DownloadedBytes == nil || *p.DownloadedBytes != 512 {
		t.Errorf("downloaded bytes = %v, expected 512", p.DownloadedBytes)
	}
	if p.TotalBytes == nil || *p.TotalBytes != 2048 {
		t.Errorf("total bytes = %v, expected 2048", p.TotalBytes)
	}
	if p.SpeedHuman == "" || p.EtaHuman == "" || p.DownloadedHuman == "" {
		t.Errorf("human fields not filled: %+v", p)
	}
	if p.EtaHuman != "00:06" {
		t.Errorf("eta = %q, expected 00:06", p.EtaHuman)
	}
	if p.Stage != "downloading" {
		t.Errorf("stage = %q", p.Stage)
	}
	if p.Filename != "video.mp4" {
		t.Errorf("filename = %q", p.Filename)
	}
}

func TestReporter_UnknownTotal(t *testing.T) {
	sink := &captureSink{}
	r := NewReporter("task-1", sink)

	r.Handle(engine.ProgressEvent{
		Stage:           engine.StageDownloading,
		DownloadedBytes: 1024,
	})

	p := sink.last
	if p.TotalBytes != nil {
		t.Errorf("total bytes should be absent, got %v", *p.TotalBytes)
	}
	if p.SpeedBps != nil || p.EtaSeconds != nil {
		t.Error("unreported counters should be absent")
	}
	if p.Percent != 0 {
		t.Errorf("percent with unknown total = %v, expected 0", p.Percent)
	}
}

func TestReporter_FinishedForces100(t *testing.T) {
	sink := &captureSink{}
	r := NewReporter("task-1", sink)

	r.Handle(engine.ProgressEvent{Stage: engine.StageFinished})

	if sink.last.Percent != 100 {
		t.Errorf("percent on finished = %v, expected 100", sink.last.Percent)
	}
}

func TestReporter_PercentNeverRegresses(t *testing.T) {
	sink := &captureSink{}
	r := NewReporter("task-1", sink)

	// Total known, 50%.
	r.Handle(engine.ProgressEvent{
		Stage:           engine.StageDownloading,
		DownloadedBytes: 50,
		TotalBytes:      100,
		TotalKnown:      true,
	})
	if sink.last.Percent != 50 {
		t.Fatalf("percent = %v, expected 50", sink.last.Percent)
	}

	// A later fragment loses the total; the reported percentage must hold.
	r.Handle(engine.ProgressEvent{
		Stage:           engine.StageDownloading,
		DownloadedBytes: 10,
	})
	if sink.last.Percent != 50 {
		t.Errorf("percent regressed to %v", sink.last.Percent)
	}

	r.Handle(engine.ProgressEvent{
		Stage:           engine.StageDownloading,
		DownloadedBytes: 80,
		TotalBytes:      100,
		TotalKnown:      true,
	})
	if sink.last.Percent != 80 {
		t.Errorf("percent = %v, expected 80", sink.last.Percent)
	}
}

func TestFormatETA(t *testing.T) {
	tests := []struct {
		seconds  int
		expected string
	}{
		{30, "00:30"},
		{90, "01:30"},
		{3661, "01:01:01"},
	}
	for _, test := range tests {
		got := formatETA(time.Duration(test.seconds) * time.Second)
		if got != test.expected {
			t.Errorf("formatETA(%ds) = %s, expected %s", test.seconds, got, test.expected)
		}
	}
}
