package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/vidgrab/vidgrab/internal/model"
)

// YtDlp runs downloads through the yt-dlp binary via go-ytdlp.
type YtDlp struct {
	progressInterval time.Duration
	log              *slog.Logger
}

func NewYtDlp(log *slog.Logger) *YtDlp {
	return &YtDlp{
		progressInterval: 500 * time.Millisecond,
		log:              log,
	}
}

// Install makes sure a yt-dlp binary is available, downloading one if the
// host has none.
func Install(ctx context.Context) error {
	_, err := ytdlp.Install(ctx, nil)
	return err
}

// Download runs yt-dlp for the request, forwarding progress updates to
// onProgress. The terminal finished event is emitted here once the run
// returns, since the engine only streams downloading-phase updates.
func (y *YtDlp) Download(ctx context.Context, req model.Request, onProgress func(ProgressEvent)) (*model.Result, error) {
	if err := os.MkdirAll(req.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	dl := ytdlp.New().
		RestrictFilenames().
		NoWarnings().
		Format(req.Format).
		Output(filepath.Join(req.OutputDir, "%(title).180s.%(ext)s"))

	if req.CookieFile != "" {
		dl = dl.Cookies(req.CookieFile)
	}

	dl.ProgressFunc(y.progressInterval, func(update ytdlp.ProgressUpdate) {
		if onProgress != nil {
			onProgress(normalize(update))
		}
	})

	y.log.Debug("running yt-dlp", "url", req.URL, "format", req.Format, "output_dir", req.OutputDir)
	res, err := dl.Run(ctx, req.URL)
	if err != nil {
		if onProgress != nil {
			onProgress(ProgressEvent{Stage: StageError})
		}
		return nil, err
	}

	result := extractResult(res, req)
	if onProgress != nil {
		onProgress(ProgressEvent{Stage: StageFinished, Filename: result.Filepath})
	}
	return result, nil
}

// Probe fetches metadata without downloading.
func (y *YtDlp) Probe(ctx context.Context, url string) (*Info, error) {
	dl := ytdlp.New().
		SkipDownload().
		NoWarnings().
		DumpSingleJSON()

	y.log.Debug("probing url", "url", url)
	res, err := dl.Run(ctx, url)
	if err != nil {
		return nil, err
	}

	var info Info
	if err := json.Unmarshal([]byte(res.Stdout), &info); err != nil {
		return nil, fmt.Errorf("decode video info: %w", err)
	}
	return &info, nil
}

// normalize maps a yt-dlp progress update onto the engine event shape,
// leaving counters the engine did not report unset.
func normalize(update ytdlp.ProgressUpdate) ProgressEvent {
	ev := ProgressEvent{
		Stage:           StageDownloading,
		DownloadedBytes: int64(update.DownloadedBytes),
	}
	if update.TotalBytes > 0 {
		ev.TotalBytes = int64(update.TotalBytes)
		ev.TotalKnown = true
	}
	if !update.Started.IsZero() {
		elapsed := time.Since(update.Started).Seconds()
		if elapsed > 0 && update.DownloadedBytes > 0 {
			ev.SpeedBps = int64(float64(update.DownloadedBytes) / elapsed)
			ev.SpeedKnown = true
		}
	}
	if eta := update.ETA(); eta > 0 {
		ev.EtaSeconds = int64(eta.Seconds())
		ev.EtaKnown = true
	}
	if update.Info != nil && update.Info.Filename != nil {
		ev.Filename = *update.Info.Filename
	}
	return ev
}

// extractResult pulls the resolved output path and title out of the run
// result.
func extractResult(res *ytdlp.Result, req model.Request) *model.Result {
	if res == nil {
		return &model.Result{}
	}

	info, err := res.GetExtractedInfo()
	if err != nil || len(info) == 0 {
		return &model.Result{}
	}

	result := resultFromInfo(info[0], req)
	if result.Filepath != "" {
		if st, err := os.Stat(result.Filepath); err == nil {
			result.Size = st.Size()
		}
	}
	return result
}

// resultFromInfo maps one extracted-info record onto a result, falling back
// to a title-derived path the way the original service guessed filenames.
func resultFromInfo(info *ytdlp.ExtractedInfo, req model.Request) *model.Result {
	result := &model.Result{}
	if info.Title != nil {
		result.Title = *info.Title
	}
	if info.Filename != nil {
		result.Filepath = *info.Filename
	}
	if result.Filepath == "" && result.Title != "" && info.Extension != "" {
		result.Filepath = filepath.Join(req.OutputDir, result.Title+"."+info.Extension)
	}
	return result
}
