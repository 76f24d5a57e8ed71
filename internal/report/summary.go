package report

import (
	"strconv"

	"github.com/codex-k8s/nightly/internal/nightly"
)

// Summary counts the outcomes of one day.
type Summary struct {
	Date     string
	Total    int
	OK       int
	Failed   int
	TimedOut int
	// NoEndpoint counts deployments that never received an endpoint.
	NoEndpoint int
	Unknown    int
}

// Summarize counts the outcomes recorded for date.
func Summarize(grid Grid, date string) Summary {
	s := Summary{Date: date}
	for _, label := range grid.Templates {
		s.Total++
		switch grid.Cases[label][date].Status {
		case nightly.StatusOK:
			s.OK++
		case nightly.StatusFailed:
			s.Failed++
		case nightly.StatusTimedOut:
			s.TimedOut++
		case nightly.StatusNoEndpoint:
			s.NoEndpoint++
		default:
			s.Unknown++
		}
	}
	return s
}

// Healthy reports whether every template passed.
func (s Summary) Healthy() bool {
	return s.Total > 0 && s.OK == s.Total
}

// Outputs returns the summary as GitHub Actions output values.
func (s Summary) Outputs() map[string]string {
	return map[string]string{
		"date":        s.Date,
		"total":       strconv.Itoa(s.Total),
		"ok":          strconv.Itoa(s.OK),
		"failed":      strconv.Itoa(s.Failed),
		"timed_out":   strconv.Itoa(s.TimedOut),
		"no_endpoint": strconv.Itoa(s.NoEndpoint),
		"unknown":     strconv.Itoa(s.Unknown),
		"healthy":     strconv.FormatBool(s.Healthy()),
	}
}
