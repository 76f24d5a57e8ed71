package nightly

import "time"

// Step classifies the phase observed at poll iteration i.
// It returns false while the phase is still pending.
func Step(i int, phase Phase, interval time.Duration) (Outcome, bool) {
	switch {
	case phase == PhaseReady:
		return OK(time.Duration(i) * interval), true
	case phase.Pending():
		return Outcome{}, false
	default:
		return Failed(), true
	}
}

// Classify folds a complete sequence of observed phases into an outcome.
// A sequence that ends while still pending is a timeout.
func Classify(phases []Phase, interval time.Duration) Outcome {
	for i, phase := range phases {
		if out, done := Step(i, phase, interval); done {
			return out
		}
	}
	return TimedOut()
}

// Attempts returns the number of poll iterations that fit into limit at the given interval.
func Attempts(limit, interval time.Duration) int {
	if interval <= 0 || limit <= 0 {
		return 0
	}
	n := limit / interval
	if limit%interval != 0 {
		n++
	}
	return int(n)
}
