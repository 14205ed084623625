package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/dgallion1/docparse/internal/document"
)

// RetryLogStyle selects how failed attempts are surfaced while waiting for
// a retry.
type RetryLogStyle string

const (
	RetryLogNone   RetryLogStyle = "none"
	RetryLogMsg    RetryLogStyle = "log_msg"
	RetryLogInline RetryLogStyle = "inline_block"
)

// ValidRetryLogStyle reports whether s is a known style.
func ValidRetryLogStyle(s RetryLogStyle) bool {
	switch s {
	case RetryLogNone, RetryLogMsg, RetryLogInline:
		return true
	}
	return false
}

var yellowBlocks = color.New(color.FgYellow)

// retryReporter surfaces failed attempts according to the configured style.
// inline_block redraws a growing yellow block row on one terminal line, one
// block per attempt.
type retryReporter struct {
	style RetryLogStyle
	log   *slog.Logger
}

func (r retryReporter) attemptFailed(docName string, part document.Part, attempt int, err error) {
	switch r.style {
	case RetryLogMsg:
		r.log.Debug("part parse attempt failed",
			"doc", docName,
			"part", part.Index,
			"pages", fmt.Sprintf("%d-%d", part.StartPage, part.EndPage),
			"attempt", attempt,
			"error", err,
		)
	case RetryLogInline:
		yellowBlocks.Fprintf(os.Stderr, "\r%s", strings.Repeat("█", attempt))
	}
}
