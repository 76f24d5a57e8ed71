package nightly

import (
	"errors"
	"fmt"
	"time"
)

// ProvisionError indicates that the platform rejected a deployment request.
type ProvisionError struct {
	// Template is the template name that failed to provision.
	Template string
	Err      error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provision deployment for template %q: %v", e.Template, e.Err)
}

func (e *ProvisionError) Unwrap() error { return e.Err }

// IsProvisionError reports whether err is a ProvisionError.
func IsProvisionError(err error) bool {
	var target *ProvisionError
	return errors.As(err, &target)
}

// StatusFetchError indicates that deployment status could not be fetched
// after the allowed number of consecutive attempts.
type StatusFetchError struct {
	// Deployment is the deployment id being polled.
	Deployment string
	// Attempts is the number of consecutive failed fetches.
	Attempts int
	Err      error
}

func (e *StatusFetchError) Error() string {
	return fmt.Sprintf("fetch status of deployment %s failed %d times: %v", e.Deployment, e.Attempts, e.Err)
}

func (e *StatusFetchError) Unwrap() error { return e.Err }

// IsStatusFetchError reports whether err is a StatusFetchError.
func IsStatusFetchError(err error) bool {
	var target *StatusFetchError
	return errors.As(err, &target)
}

// EndpointTimeoutError indicates that no endpoint was assigned in time.
type EndpointTimeoutError struct {
	Deployment string
	Timeout    time.Duration
}

func (e *EndpointTimeoutError) Error() string {
	return fmt.Sprintf("deployment %s has no endpoint after %s", e.Deployment, e.Timeout)
}

// IsEndpointTimeoutError reports whether err is an EndpointTimeoutError.
func IsEndpointTimeoutError(err error) bool {
	var target *EndpointTimeoutError
	return errors.As(err, &target)
}
