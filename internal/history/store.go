package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/codex-k8s/nightly/internal/nightly"
)

// ErrNoHistory indicates that no snapshot has been persisted yet.
var ErrNoHistory = errors.New("no history")

// CorruptError indicates that a persisted snapshot failed to decode or validate.
type CorruptError struct {
	// Source names the snapshot location.
	Source string
	Err    error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("history %s is corrupt: %v", e.Source, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// IsCorruptError reports whether err is a CorruptError.
func IsCorruptError(err error) bool {
	var target *CorruptError
	return errors.As(err, &target)
}

// Snapshot is the persisted ledger document.
type Snapshot struct {
	Cases     map[string]DayRecord
	Templates []string
}

// Store loads and saves ledger snapshots.
type Store interface {
	// Load returns the last saved snapshot or ErrNoHistory.
	Load(ctx context.Context) (*Snapshot, error)
	// Save replaces the stored snapshot.
	Save(ctx context.Context, snap *Snapshot) error
}

type wireOutcome struct {
	Status *nightly.Status `json:"status"`
	// ElapsedMS is the time to readiness in milliseconds, present only for ok.
	ElapsedMS *int64 `json:"elapsed_ms,omitempty"`
	// Elapsed is the whole-second form written by earlier releases; read only.
	Elapsed *int64 `json:"elapsed,omitempty"`
}

type wireSnapshot struct {
	Cases     map[string]map[string]json.RawMessage `json:"cases"`
	Templates []string                              `json:"templates"`
}

// legacyBadgeKey is the single day key of the badge-only layout, where each
// template maps to a rendered shields.io markdown image.
const legacyBadgeKey = "badge"

// MarshalJSON encodes the snapshot with elapsed milliseconds on ok outcomes only.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	type outSnapshot struct {
		Cases     map[string]map[string]wireOutcome `json:"cases"`
		Templates []string                          `json:"templates"`
	}
	w := outSnapshot{
		Cases:     make(map[string]map[string]wireOutcome, len(s.Cases)),
		Templates: s.Templates,
	}
	if w.Templates == nil {
		w.Templates = []string{}
	}
	for d, rec := range s.Cases {
		day := make(map[string]wireOutcome, len(rec))
		for label, out := range rec {
			wo, err := encodeOutcome(out)
			if err != nil {
				return nil, fmt.Errorf("%s %s: %w", d, label, err)
			}
			day[label] = wo
		}
		w.Cases[d] = day
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes and validates a snapshot. Unknown fields, leaves without a
// status and elapsed values on outcomes other than ok are rejected. Days in the
// badge-only layout are converted from their badge text.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var w wireSnapshot
	if err := strictDecode(data, &w); err != nil {
		return err
	}
	if w.Cases == nil {
		return errors.New("missing cases")
	}
	cases := make(map[string]DayRecord, len(w.Cases))
	for d, day := range w.Cases {
		if err := validateDate(d); err != nil {
			return err
		}
		rec, err := decodeDay(day)
		if err != nil {
			return fmt.Errorf("%s: %w", d, err)
		}
		cases[d] = rec
	}
	s.Cases = cases
	s.Templates = w.Templates
	return nil
}

func decodeDay(day map[string]json.RawMessage) (DayRecord, error) {
	if raw, ok := day[legacyBadgeKey]; ok && len(day) == 1 {
		return decodeBadgeDay(raw)
	}
	rec := make(DayRecord, len(day))
	for label, raw := range day {
		var wo wireOutcome
		if err := strictDecode(raw, &wo); err != nil {
			return nil, fmt.Errorf("%s: %w", label, err)
		}
		if wo.Status == nil {
			return nil, fmt.Errorf("%s: missing status", label)
		}
		var elapsed *time.Duration
		switch {
		case wo.ElapsedMS != nil && wo.Elapsed != nil:
			return nil, fmt.Errorf("%s: both elapsed and elapsed_ms set", label)
		case wo.ElapsedMS != nil:
			v := time.Duration(*wo.ElapsedMS) * time.Millisecond
			elapsed = &v
		case wo.Elapsed != nil:
			v := time.Duration(*wo.Elapsed) * time.Second
			elapsed = &v
		}
		out, err := decodeOutcome(*wo.Status, elapsed)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", label, err)
		}
		rec[label] = out
	}
	return rec, nil
}

// decodeBadgeDay converts {"badge": {label: "![img](https://img.shields.io/badge/status-15s-green)"}}.
func decodeBadgeDay(raw json.RawMessage) (DayRecord, error) {
	var badges map[string]string
	if err := json.Unmarshal(raw, &badges); err != nil {
		return nil, fmt.Errorf("badge layout: %w", err)
	}
	rec := make(DayRecord, len(badges))
	for label, badge := range badges {
		out, err := parseBadge(badge)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", label, err)
		}
		rec[label] = out
	}
	return rec, nil
}

func parseBadge(badge string) (nightly.Outcome, error) {
	const prefix = "![img](https://img.shields.io/badge/status-"
	if !strings.HasPrefix(badge, prefix) || !strings.HasSuffix(badge, ")") {
		return nightly.Outcome{}, fmt.Errorf("unrecognised badge %q", badge)
	}
	body := strings.TrimSuffix(strings.TrimPrefix(badge, prefix), ")")
	cut := strings.LastIndex(body, "-")
	if cut <= 0 {
		return nightly.Outcome{}, fmt.Errorf("unrecognised badge %q", badge)
	}
	text := body[:cut]
	switch {
	case text == "failed":
		return nightly.Failed(), nil
	case text == "unknown":
		return nightly.Unknown(), nil
	case strings.HasPrefix(text, ">") && strings.HasSuffix(text, "s"):
		return nightly.TimedOut(), nil
	case strings.HasSuffix(text, "s"):
		secs, err := strconv.ParseInt(strings.TrimSuffix(text, "s"), 10, 64)
		if err != nil || secs < 0 {
			return nightly.Outcome{}, fmt.Errorf("unrecognised badge %q", badge)
		}
		return nightly.OK(time.Duration(secs) * time.Second), nil
	}
	return nightly.Outcome{}, fmt.Errorf("unrecognised badge %q", badge)
}

func strictDecode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after snapshot")
	}
	return nil
}

// encodeOutcome requires ok elapsed times to be whole milliseconds.
func encodeOutcome(out nightly.Outcome) (wireOutcome, error) {
	status := out.Status
	w := wireOutcome{Status: &status}
	if out.Status == nightly.StatusOK {
		if out.Elapsed%time.Millisecond != 0 {
			return wireOutcome{}, fmt.Errorf("elapsed time %s is not a whole number of milliseconds", out.Elapsed)
		}
		ms := out.Elapsed.Milliseconds()
		w.ElapsedMS = &ms
	}
	return w, nil
}

func decodeOutcome(status nightly.Status, elapsed *time.Duration) (nightly.Outcome, error) {
	if status != nightly.StatusOK {
		if elapsed != nil {
			return nightly.Outcome{}, fmt.Errorf("elapsed time on %s outcome", status)
		}
		return nightly.Outcome{Status: status}, nil
	}
	if elapsed == nil {
		return nightly.Outcome{}, errors.New("ok outcome without elapsed time")
	}
	if *elapsed < 0 {
		return nightly.Outcome{}, fmt.Errorf("negative elapsed time %s", *elapsed)
	}
	return nightly.OK(*elapsed), nil
}

func validateDate(d string) error {
	if _, err := time.Parse(DateLayout, d); err != nil {
		return fmt.Errorf("invalid date key %q", d)
	}
	return nil
}
