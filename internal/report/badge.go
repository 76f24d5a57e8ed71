package report

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/codex-k8s/nightly/internal/nightly"
)

const badgeBase = "https://img.shields.io/badge"

// BadgeText returns the short text shown for an outcome.
func BadgeText(out nightly.Outcome, limit time.Duration) string {
	switch out.Status {
	case nightly.StatusOK:
		return fmt.Sprintf("%ds", int64(out.Elapsed/time.Second))
	case nightly.StatusFailed:
		return "failed"
	case nightly.StatusTimedOut:
		return fmt.Sprintf(">%ds", int64(limit/time.Second))
	case nightly.StatusNoEndpoint:
		return "no endpoint"
	default:
		return "unknown"
	}
}

// BadgeColor returns the shields.io colour for an outcome.
func BadgeColor(out nightly.Outcome) string {
	switch out.Status {
	case nightly.StatusOK:
		return "green"
	case nightly.StatusUnknown:
		return "yellow"
	default:
		return "red"
	}
}

// BadgeURL returns the shields.io image URL for an outcome.
func BadgeURL(out nightly.Outcome, limit time.Duration) string {
	text := url.PathEscape(shieldsEscape(BadgeText(out, limit)))
	return fmt.Sprintf("%s/status-%s-%s", badgeBase, text, BadgeColor(out))
}

// Badge returns the markdown image for an outcome.
func Badge(out nightly.Outcome, limit time.Duration) string {
	return fmt.Sprintf("![img](%s)", BadgeURL(out, limit))
}

// shieldsEscape doubles dashes and underscores, which shields.io treats as separators.
func shieldsEscape(s string) string {
	s = strings.ReplaceAll(s, "-", "--")
	return strings.ReplaceAll(s, "_", "__")
}
