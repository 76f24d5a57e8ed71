package nightly

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repeat(phase Phase, n int) []Phase {
	out := make([]Phase, n)
	for i := range out {
		out[i] = phase
	}
	return out
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		phases []Phase
		want   Outcome
	}{
		{name: "ready immediately", phases: []Phase{PhaseReady}, want: OK(0)},
		{name: "ready after pending", phases: append(repeat(PhaseNotReady, 5), PhaseReady), want: OK(5 * time.Second)},
		{name: "no replicas then ready", phases: []Phase{PhaseNoReplicas, PhaseNotReady, PhaseReady}, want: OK(2 * time.Second)},
		{name: "error phase", phases: []Phase{PhaseNotReady, PhaseNotReady, Phase("Error"), PhaseReady}, want: Failed()},
		{name: "scaling is not pending", phases: []Phase{Phase("Scaling")}, want: Failed()},
		{name: "all pending", phases: repeat(PhaseNotReady, 600), want: TimedOut()},
		{name: "empty sequence", phases: nil, want: TimedOut()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.phases, time.Second))
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	phases := append(repeat(PhaseNoReplicas, 42), PhaseReady)
	first := Classify(phases, time.Second)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Classify(phases, time.Second))
	}
}

func TestStepReadyElapsed(t *testing.T) {
	for _, i := range []int{0, 1, 5, 200, 599} {
		out, done := Step(i, PhaseReady, time.Second)
		require.True(t, done)
		assert.Equal(t, OK(time.Duration(i)*time.Second), out)
	}

	_, done := Step(3, PhaseNotReady, time.Second)
	assert.False(t, done)
}

func TestAttempts(t *testing.T) {
	assert.Equal(t, 600, Attempts(600*time.Second, time.Second))
	assert.Equal(t, 4, Attempts(10*time.Second, 3*time.Second))
	assert.Equal(t, 0, Attempts(10*time.Second, 0))
	assert.Equal(t, 0, Attempts(0, time.Second))
}

func TestStatusText(t *testing.T) {
	for status, name := range statusNames {
		text, err := status.MarshalText()
		require.NoError(t, err)
		assert.Equal(t, name, string(text))

		var parsed Status
		require.NoError(t, parsed.UnmarshalText(text))
		assert.Equal(t, status, parsed)
	}

	var s Status
	assert.Error(t, s.UnmarshalText([]byte("tle")))
	_, err := Status(99).MarshalText()
	assert.Error(t, err)
}

func TestTemplateLabel(t *testing.T) {
	tpl := Template{Name: "Whisper", DocURL: "https://docs.modelz.ai/frameworks/mosec/whisper"}
	assert.Equal(t, "[Whisper](https://docs.modelz.ai/frameworks/mosec/whisper)", tpl.Label())
}
