package nightly

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lifecycleFunc adapts a function to Lifecycle.
type lifecycleFunc func(ctx context.Context, t Template) Outcome

func (f lifecycleFunc) Run(ctx context.Context, t Template) Outcome { return f(ctx, t) }

func TestSweeperRunsTemplatesConcurrently(t *testing.T) {
	templates := []Template{testTemplate("a"), testTemplate("b"), testTemplate("c")}

	var started sync.WaitGroup
	started.Add(len(templates))
	allStarted := make(chan struct{})
	go func() {
		started.Wait()
		close(allStarted)
	}()

	lc := lifecycleFunc(func(_ context.Context, tpl Template) Outcome {
		started.Done()
		select {
		case <-allStarted:
			return OK(time.Second)
		case <-time.After(5 * time.Second):
			return Failed()
		}
	})

	results := NewSweeper(lc, nil).Run(context.Background(), templates)

	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, templates[i].Name, r.Template.Name)
		assert.Equal(t, OK(time.Second), r.Outcome, "lifecycles were serialized")
	}
}

func TestSweeperResultsIndependentOfCompletionOrder(t *testing.T) {
	platform := newFakePlatform()
	platform.scripts["fast"] = &script{phases: append(repeat(PhaseNotReady, 5), PhaseReady)}
	platform.scripts["slow"] = &script{phases: append(repeat(PhaseNotReady, 200), PhaseReady)}
	sleeper := &noSleep{}
	controller := NewController(platform, nil, testPolicy(), WithSleep(sleeper.sleep))

	for _, order := range [][]string{{"fast", "slow"}, {"slow", "fast"}} {
		platform.scripts["fast"].endpointSeen, platform.scripts["fast"].pollCalls = false, 0
		platform.scripts["slow"].endpointSeen, platform.scripts["slow"].pollCalls = false, 0

		templates := []Template{testTemplate(order[0]), testTemplate(order[1])}
		results := NewSweeper(controller, nil).Run(context.Background(), templates)

		got := map[string]Outcome{}
		for _, r := range results {
			got[r.Template.Name] = r.Outcome
		}
		assert.Equal(t, OK(5*time.Second), got["fast"])
		assert.Equal(t, OK(200*time.Second), got["slow"])
	}
	assert.Equal(t, 0, platform.liveCount())
}

func TestSweeperContainsFailures(t *testing.T) {
	lc := lifecycleFunc(func(_ context.Context, tpl Template) Outcome {
		switch tpl.Name {
		case "panics":
			panic("boom")
		case "fails":
			return Failed()
		default:
			return OK(3 * time.Second)
		}
	})

	results := NewSweeper(lc, nil).Run(context.Background(), []Template{
		testTemplate("panics"), testTemplate("fails"), testTemplate("works"),
	})

	require.Len(t, results, 3)
	assert.Equal(t, Failed(), results[0].Outcome)
	assert.Equal(t, Failed(), results[1].Outcome)
	assert.Equal(t, OK(3*time.Second), results[2].Outcome)
}

func TestSweeperProvisionErrorDoesNotStopSiblings(t *testing.T) {
	platform := newFakePlatform()
	platform.createErr["broken"] = assert.AnError
	sleeper := &noSleep{}
	controller := NewController(platform, nil, testPolicy(), WithSleep(sleeper.sleep))

	results := NewSweeper(controller, nil).Run(context.Background(), []Template{
		testTemplate("broken"), testTemplate("healthy"),
	})

	assert.Equal(t, Failed(), results[0].Outcome)
	assert.Equal(t, OK(0), results[1].Outcome)
}

func TestSweeperNoTemplates(t *testing.T) {
	results := NewSweeper(lifecycleFunc(func(context.Context, Template) Outcome { return Unknown() }), nil).
		Run(context.Background(), nil)
	assert.Empty(t, results)
}
