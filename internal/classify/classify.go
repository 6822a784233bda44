// Package classify maps raw download failures into typed categories with
// remediation hints. Matching is ordered substring inspection of the error
// text; the first matching rule wins.
package classify

import (
	"strings"
	"time"

	"github.com/vidgrab/vidgrab/internal/model"
)

// Failure categories.
const (
	CategoryNetwork           = "network"
	CategoryAuthentication    = "authentication"
	CategoryCookieExpired     = "cookie_expired"
	CategoryFormatUnavailable = "format_unavailable"
	CategorySourceRestricted  = "source_restricted"
	CategoryFilesystem        = "filesystem"
	CategoryInterrupted       = "interrupted"
	CategoryUnknown           = "unknown"
)

type rule struct {
	category      string
	patterns      []string
	retryPossible bool
	suggestions   []string
}

// rules are checked in order. More specific categories sit above the
// general ones they could be shadowed by (cookie_expired before
// authentication, source_restricted before network).
var rules = []rule{
	{
		category: CategoryCookieExpired,
		patterns: []string{
			"cookies are no longer valid",
			"cookie has expired",
			"cookies have expired",
			"invalid cookie",
		},
		retryPossible: false,
		suggestions: []string{
			"Re-export cookies from a logged-in browser session",
			"Verify the cookie file is in Netscape format",
		},
	},
	{
		category: CategoryAuthentication,
		patterns: []string{
			"sign in to confirm",
			"confirm you're not a bot",
			"confirm you are not a bot",
			"login required",
			"authentication required",
			"use --cookies",
		},
		retryPossible: false,
		suggestions: []string{
			"Supply fresh credentials via a cookie file",
			"Sign in from a browser and retry with exported cookies",
		},
	},
	{
		category: CategoryFormatUnavailable,
		patterns: []string{
			"requested format not available",
			"requested format is not available",
			"no video formats found",
			"format is not available",
		},
		retryPossible: false,
		suggestions: []string{
			"List available formats first",
			"Fall back to the \"best\" format selector",
		},
	},
	{
		category: CategorySourceRestricted,
		patterns: []string{
			"video unavailable",
			"this video is private",
			"private video",
			"not available in your country",
			"content is not available",
			"has been removed",
			"members-only",
		},
		retryPossible: false,
		suggestions: []string{
			"Check that the video is still publicly available",
			"Use credentials for private or member-only content",
		},
	},
	{
		category: CategoryFilesystem,
		patterns: []string{
			"no space left on device",
			"permission denied",
			"read-only file system",
			"disk full",
			"is a directory",
		},
		retryPossible: false,
		suggestions: []string{
			"Check free disk space on the output volume",
			"Check write permissions on the output path",
		},
	},
	{
		category: CategoryNetwork,
		patterns: []string{
			"connection refused",
			"connection reset",
			"connection timed out",
			"timed out",
			"timeout",
			"temporary failure in name resolution",
			"no such host",
			"network is unreachable",
			"unable to download",
			"http error 5",
		},
		retryPossible: true,
		suggestions: []string{
			"Check network connectivity and retry",
			"Configure a proxy if the source is rate limiting",
		},
	},
}

// Classify turns a failure into an error record. Unmatched failures land in
// the unknown category with an optimistic retry flag.
func Classify(err error, reqCtx map[string]string) *model.ErrorRecord {
	msg := err.Error()
	lower := strings.ToLower(msg)

	for _, r := range rules {
		for _, p := range r.patterns {
			if strings.Contains(lower, p) {
				return record(r.category, msg, reqCtx, r.retryPossible, r.suggestions)
			}
		}
	}

	return record(CategoryUnknown, msg, reqCtx, true, []string{
		"Retry the download",
		"Inspect the raw error trace for details",
	})
}

// Interrupted builds the record attached to tasks found mid-flight at
// startup, whose worker died with the previous process.
func Interrupted(reqCtx map[string]string) *model.ErrorRecord {
	return record(CategoryInterrupted,
		"download interrupted by process restart", reqCtx, true,
		[]string{"Resubmit the download"})
}

// RequestContext captures the request parameters a failure occurred under.
func RequestContext(req model.Request) map[string]string {
	return map[string]string{
		"url":         req.URL,
		"output_path": req.OutputDir,
		"format":      req.Format,
	}
}

func record(category, msg string, reqCtx map[string]string, retry bool, suggestions []string) *model.ErrorRecord {
	return &model.ErrorRecord{
		Category:      category,
		Message:       msg,
		Timestamp:     time.Now(),
		Trace:         msg,
		Context:       reqCtx,
		RetryPossible: retry,
		Suggestions:   suggestions,
	}
}
