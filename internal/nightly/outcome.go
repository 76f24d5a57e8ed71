package nightly

import (
	"fmt"
	"time"
)

// Phase is the readiness state reported by the platform for a deployment.
type Phase string

const (
	// PhaseReady means the deployment serves traffic.
	PhaseReady Phase = "Ready"
	// PhaseNotReady means replicas exist but are still starting.
	PhaseNotReady Phase = "NotReady"
	// PhaseNoReplicas means the deployment is scaled to zero.
	PhaseNoReplicas Phase = "NoReplicas"
)

// Pending reports whether the phase still allows the deployment to become ready.
func (p Phase) Pending() bool {
	return p == PhaseNotReady || p == PhaseNoReplicas
}

// Status is the terminal classification of one validation attempt.
type Status int

const (
	// StatusUnknown is the placeholder used when no observation exists.
	StatusUnknown Status = iota
	// StatusOK means the deployment reached Ready.
	StatusOK
	// StatusFailed means the platform reported a failing phase or rejected the deployment.
	StatusFailed
	// StatusTimedOut means readiness polling exhausted its budget.
	StatusTimedOut
	// StatusNoEndpoint means no endpoint was assigned within the endpoint timeout.
	StatusNoEndpoint
)

var statusNames = map[Status]string{
	StatusUnknown:    "unknown",
	StatusOK:         "ok",
	StatusFailed:     "failed",
	StatusTimedOut:   "timed-out",
	StatusNoEndpoint: "no-endpoint",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	name, ok := statusNames[s]
	if !ok {
		return nil, fmt.Errorf("invalid status %d", int(s))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStatus converts the textual form of a status back into a Status.
func ParseStatus(value string) (Status, error) {
	for status, name := range statusNames {
		if name == value {
			return status, nil
		}
	}
	return StatusUnknown, fmt.Errorf("unrecognized status %q", value)
}

// Outcome is the result of one lifecycle for one template.
type Outcome struct {
	Status Status
	// Elapsed is the time to Ready; only meaningful for StatusOK.
	Elapsed time.Duration
}

// OK builds a successful outcome.
func OK(elapsed time.Duration) Outcome {
	return Outcome{Status: StatusOK, Elapsed: elapsed}
}

// Failed builds a failed outcome.
func Failed() Outcome { return Outcome{Status: StatusFailed} }

// TimedOut builds a timed-out outcome.
func TimedOut() Outcome { return Outcome{Status: StatusTimedOut} }

// NoEndpoint builds an endpoint-timeout outcome.
func NoEndpoint() Outcome { return Outcome{Status: StatusNoEndpoint} }

// Unknown builds the placeholder outcome.
func Unknown() Outcome { return Outcome{} }

func (o Outcome) String() string {
	if o.Status == StatusOK {
		return fmt.Sprintf("ok(%s)", o.Elapsed)
	}
	return o.Status.String()
}
