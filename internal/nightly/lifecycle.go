package nightly

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Policy holds the timing parameters of a lifecycle.
type Policy struct {
	// TimeLimit bounds readiness polling.
	TimeLimit time.Duration
	// TryInterval is the sleep between consecutive status fetches.
	TryInterval time.Duration
	// SettleDelay is waited after the endpoint appears and before the warm-up probe.
	SettleDelay time.Duration
	// EndpointTimeout bounds the wait for an endpoint to be assigned.
	EndpointTimeout time.Duration
	// StatusRetries is the number of consecutive fetch failures tolerated.
	StatusRetries int
	// ProbeTimeout bounds the detached warm-up probe.
	ProbeTimeout time.Duration
}

// DefaultPolicy returns the production timing parameters.
func DefaultPolicy() Policy {
	return Policy{
		TimeLimit:       600 * time.Second,
		TryInterval:     time.Second,
		SettleDelay:     10 * time.Second,
		EndpointTimeout: 300 * time.Second,
		StatusRetries:   3,
		ProbeTimeout:    10 * time.Minute,
	}
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc backed by a timer.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Controller drives one template through create, await endpoint, warm-up and readiness polling.
type Controller struct {
	platform Platform
	prober   Prober
	policy   Policy
	logger   *slog.Logger
	sleep    SleepFunc
}

// ControllerOption customizes a Controller.
type ControllerOption func(*Controller)

// WithSleep replaces the timer-based sleep, mainly for tests.
func WithSleep(fn SleepFunc) ControllerOption {
	return func(c *Controller) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

// WithLogger sets the controller logger.
func WithLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewController constructs a Controller for the given collaborators.
func NewController(platform Platform, prober Prober, policy Policy, opts ...ControllerOption) *Controller {
	c := &Controller{
		platform: platform,
		prober:   prober,
		policy:   policy,
		logger:   slog.New(slog.DiscardHandler),
		sleep:    Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes the lifecycle for t and returns its outcome. It never returns an error:
// provisioning, fetch and timeout failures are classified into the outcome.
// A deployment created here is deleted before Run returns.
func (c *Controller) Run(ctx context.Context, t Template) Outcome {
	logger := c.logger.With("template", t.Name)
	out, err := c.run(ctx, logger, t)
	if err != nil {
		return c.classifyError(logger, err)
	}
	logger.Info("lifecycle finished", "outcome", out.String())
	return out
}

// run drives the lifecycle and reports the terminal cause when no phase-based outcome was reached.
func (c *Controller) run(ctx context.Context, logger *slog.Logger, t Template) (Outcome, error) {
	id, err := c.platform.CreateDeployment(ctx, NewDeploymentSpec(t))
	if err != nil {
		return Outcome{}, &ProvisionError{Template: t.Name, Err: err}
	}
	logger = logger.With("deployment", id)
	logger.Info("deployment created")
	defer c.release(context.WithoutCancel(ctx), logger, id)

	endpoint, err := c.awaitEndpoint(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	logger.Info("endpoint assigned", "endpoint", endpoint)

	if err := c.sleep(ctx, c.policy.SettleDelay); err != nil {
		return Outcome{}, err
	}
	c.warmUp(ctx, logger, endpoint)

	return c.pollReady(ctx, logger, id)
}

// awaitEndpoint polls until the platform assigns an endpoint or the endpoint timeout passes.
func (c *Controller) awaitEndpoint(ctx context.Context, id string) (string, error) {
	attempts := Attempts(c.policy.EndpointTimeout, c.policy.TryInterval)
	var fetch fetchTracker
	for i := 0; i < attempts; i++ {
		status, err := c.platform.GetDeployment(ctx, id)
		if err != nil {
			if ferr := fetch.fail(id, err, c.policy.StatusRetries); ferr != nil {
				return "", ferr
			}
		} else {
			fetch.reset()
			if status.Endpoint != "" {
				return status.Endpoint, nil
			}
		}
		if err := c.sleep(ctx, c.policy.TryInterval); err != nil {
			return "", err
		}
	}
	return "", &EndpointTimeoutError{Deployment: id, Timeout: c.policy.EndpointTimeout}
}

// pollReady fetches the phase up to the readiness budget and classifies it.
func (c *Controller) pollReady(ctx context.Context, logger *slog.Logger, id string) (Outcome, error) {
	attempts := Attempts(c.policy.TimeLimit, c.policy.TryInterval)
	var fetch fetchTracker
	for i := 0; i < attempts; i++ {
		status, err := c.platform.GetDeployment(ctx, id)
		if err != nil {
			if ferr := fetch.fail(id, err, c.policy.StatusRetries); ferr != nil {
				return Outcome{}, ferr
			}
		} else {
			fetch.reset()
			if out, done := Step(i, status.Phase, c.policy.TryInterval); done {
				if out.Status == StatusFailed {
					logger.Warn("deployment entered failing phase", "phase", string(status.Phase), "iteration", i)
				}
				return out, nil
			}
		}
		if err := c.sleep(ctx, c.policy.TryInterval); err != nil {
			return Outcome{}, err
		}
	}
	return TimedOut(), nil
}

// warmUp fires a single inference request to trigger scale-up. The request runs detached:
// its result is never awaited and its error only reaches the debug log.
func (c *Controller) warmUp(ctx context.Context, logger *slog.Logger, endpoint string) {
	if c.prober == nil {
		return
	}
	probeCtx := context.WithoutCancel(ctx)
	timeout := c.policy.ProbeTimeout
	go func() {
		if timeout > 0 {
			var cancel context.CancelFunc
			probeCtx, cancel = context.WithTimeout(probeCtx, timeout)
			defer cancel()
		}
		if err := c.prober.Probe(probeCtx, endpoint); err != nil {
			logger.Debug("warm-up probe finished with error", "error", err)
			return
		}
		logger.Debug("warm-up probe finished")
	}()
}

// release deletes the deployment owned by this lifecycle.
func (c *Controller) release(ctx context.Context, logger *slog.Logger, id string) {
	if err := c.platform.DeleteDeployment(ctx, id); err != nil {
		logger.Warn("delete deployment failed, leaving it to the purge pass", "error", err)
		return
	}
	logger.Debug("deployment deleted")
}

func (c *Controller) classifyError(logger *slog.Logger, err error) Outcome {
	switch {
	case IsProvisionError(err):
		logger.Error("deployment rejected", "error", err)
		return Failed()
	case IsEndpointTimeoutError(err):
		logger.Warn("endpoint not assigned", "error", err)
		return NoEndpoint()
	case IsStatusFetchError(err):
		logger.Error("deployment status unavailable", "error", err)
		return Unknown()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logger.Warn("lifecycle interrupted", "error", err)
		return Unknown()
	default:
		logger.Error("lifecycle aborted", "error", err)
		return Unknown()
	}
}

// fetchTracker counts consecutive status fetch failures.
type fetchTracker struct {
	failures int
}

func (f *fetchTracker) fail(id string, err error, retries int) error {
	f.failures++
	if f.failures > retries {
		return &StatusFetchError{Deployment: id, Attempts: f.failures, Err: err}
	}
	return nil
}

func (f *fetchTracker) reset() { f.failures = 0 }

// String describes the policy for logs.
func (p Policy) String() string {
	return fmt.Sprintf("limit=%s interval=%s settle=%s endpoint=%s retries=%d",
		p.TimeLimit, p.TryInterval, p.SettleDelay, p.EndpointTimeout, p.StatusRetries)
}
