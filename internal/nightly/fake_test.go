package nightly

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// script describes how a fake deployment reacts to status fetches.
type script struct {
	// endpointWait is the number of fetches that return no endpoint.
	endpointWait int
	// endpointErrs is the number of leading endpoint fetches that fail.
	endpointErrs int
	// phases is indexed by readiness poll iteration; the last entry repeats.
	phases []Phase
	// pollErrs marks readiness iterations whose fetch fails.
	pollErrs map[int]bool

	endpointCalls int
	pollCalls     int
	endpointSeen  bool
}

func (s *script) next(id string) (DeploymentStatus, error) {
	if !s.endpointSeen {
		s.endpointCalls++
		if s.endpointCalls <= s.endpointErrs {
			return DeploymentStatus{}, errors.New("status unavailable")
		}
		if s.endpointCalls <= s.endpointErrs+s.endpointWait {
			return DeploymentStatus{Phase: PhaseNoReplicas}, nil
		}
		s.endpointSeen = true
		return DeploymentStatus{Endpoint: "http://" + id + ".example", Phase: PhaseNoReplicas}, nil
	}
	k := s.pollCalls
	s.pollCalls++
	if s.pollErrs[k] {
		return DeploymentStatus{}, errors.New("status unavailable")
	}
	phase := PhaseNotReady
	if len(s.phases) > 0 {
		if k < len(s.phases) {
			phase = s.phases[k]
		} else {
			phase = s.phases[len(s.phases)-1]
		}
	}
	return DeploymentStatus{Endpoint: "http://" + id + ".example", Phase: phase}, nil
}

// fakePlatform serves scripted deployments keyed by the requested deployment name.
type fakePlatform struct {
	mu        sync.Mutex
	scripts   map[string]*script
	createErr map[string]error
	listErr   error
	deleteErr map[string]error

	seq     int
	byID    map[string]*script
	live    map[string]bool
	deleted []string
	specs   []DeploymentSpec
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		scripts:   map[string]*script{},
		createErr: map[string]error{},
		deleteErr: map[string]error{},
		byID:      map[string]*script{},
		live:      map[string]bool{},
	}
}

func (f *fakePlatform) CreateDeployment(_ context.Context, spec DeploymentSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.specs = append(f.specs, spec)
	if err := f.createErr[spec.Name]; err != nil {
		return "", err
	}
	f.seq++
	id := fmt.Sprintf("%s-%d", spec.Name, f.seq)
	sc := f.scripts[spec.Name]
	if sc == nil {
		sc = &script{phases: []Phase{PhaseReady}}
	}
	f.byID[id] = sc
	f.live[id] = true
	return id, nil
}

func (f *fakePlatform) GetDeployment(_ context.Context, id string) (DeploymentStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sc, ok := f.byID[id]
	if !ok {
		return DeploymentStatus{}, fmt.Errorf("deployment %s not found", id)
	}
	return sc.next(id)
}

func (f *fakePlatform) ListDeployments(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var ids []string
	for id := range f.live {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakePlatform) DeleteDeployment(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.deleteErr[id]; err != nil {
		return err
	}
	delete(f.live, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakePlatform) liveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

// fakeProber records probed endpoints.
type fakeProber struct {
	endpoints chan string
	err       error
}

func newFakeProber() *fakeProber {
	return &fakeProber{endpoints: make(chan string, 16)}
}

func (p *fakeProber) Probe(_ context.Context, endpoint string) error {
	p.endpoints <- endpoint
	return p.err
}

// noSleep returns immediately and counts how often it was called.
type noSleep struct {
	mu    sync.Mutex
	calls int
	total time.Duration
}

func (s *noSleep) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.calls++
	s.total += d
	s.mu.Unlock()
	return ctx.Err()
}

func testPolicy() Policy {
	p := DefaultPolicy()
	p.ProbeTimeout = time.Second
	return p
}

func testTemplate(name string) Template {
	return Template{
		Name:   name,
		DocURL: "https://docs.example/" + name,
		Spec: DeploymentSource{
			SuggestName:    name,
			Source:         map[string]any{"docker": map[string]any{"image": "example/" + name}},
			ServerResource: "nvidia-tesla-t4-4c-16g",
			Framework:      "mosec",
			Port:           8080,
			HTTPProbePath:  "/",
		},
	}
}
