package reconciler

import (
	"errors"
	"fmt"
)

var (
	// ErrSetup marks failures that happen before any work begins
	ErrSetup = errors.New("setup failed")
	// ErrQuery marks a failure to establish the candidate set
	ErrQuery = errors.New("asset query failed")
	// ErrCreate marks a failed application create
	ErrCreate = errors.New("application create failed")
	// ErrLink marks a failed asset link
	ErrLink = errors.New("asset link failed")
	// ErrMalformedResponse marks a 2xx response lacking an application identifier
	ErrMalformedResponse = errors.New("malformed response")
)

// SetupError is returned when credentials or configuration are unusable.
type SetupError struct {
	Message string
	Err     error
}

func (e *SetupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("setup: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("setup: %s", e.Message)
}

func (e *SetupError) Unwrap() error { return e.Err }

func (e *SetupError) Is(target error) bool { return target == ErrSetup }

// QueryError is returned when the catalog could not be queried.
// It aborts the whole run.
type QueryError struct {
	Page int
	// Messages holds the structured error list returned by the service, if any.
	Messages []string
	Err      error
}

func (e *QueryError) Error() string {
	if len(e.Messages) > 0 {
		return fmt.Sprintf("query page %d: %v", e.Page, e.Messages)
	}
	return fmt.Sprintf("query page %d: %v", e.Page, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

func (e *QueryError) Is(target error) bool { return target == ErrQuery }

// CreateError is a per-candidate failure to create an application.
type CreateError struct {
	Name string
	Err  error
}

func (e *CreateError) Error() string {
	return fmt.Sprintf("create application %q: %v", e.Name, e.Err)
}

func (e *CreateError) Unwrap() error { return e.Err }

func (e *CreateError) Is(target error) bool { return target == ErrCreate }

// MalformedResponseError is wrapped by a CreateError when the registry
// answered successfully without a recognizable identifier.
type MalformedResponseError struct {
	Body []byte
	Err  error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed response: %v", e.Err)
	}
	return fmt.Sprintf("malformed response: no application id in %s", truncate(e.Body, 256))
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

func (e *MalformedResponseError) Is(target error) bool { return target == ErrMalformedResponse }

// LinkError is a per-candidate failure to link an asset to an application.
type LinkError struct {
	AssetKey      string
	ApplicationID string
	Err           error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("link asset %q to application %q: %v", e.AssetKey, e.ApplicationID, e.Err)
}

func (e *LinkError) Unwrap() error { return e.Err }

func (e *LinkError) Is(target error) bool { return target == ErrLink }

// IsFatal reports whether err stops a run rather than a single candidate.
func IsFatal(err error) bool {
	return errors.Is(err, ErrSetup) || errors.Is(err, ErrQuery)
}

func truncate(bs []byte, n int) string {
	if len(bs) <= n {
		return string(bs)
	}
	return string(bs[:n]) + "..."
}
