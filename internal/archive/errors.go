package archive

import "fmt"

// ConfigError indicates a backend is missing, disabled, or misconfigured.
// It fails the single operation that needed the backend, not a whole job.
type ConfigError struct {
	Backend string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("backend %s: %s", e.Backend, e.Reason)
}

// ConnectionError indicates a backend could not be reached or refused
// credentials. Hint carries backend-specific remediation where derivable.
type ConnectionError struct {
	Backend string
	Hint    string
	Err     error
}

func (e *ConnectionError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("connecting to backend %s: %v (%s)", e.Backend, e.Err, e.Hint)
	}
	return fmt.Sprintf("connecting to backend %s: %v", e.Backend, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// OpError wraps a failed backend call with the backend and operation name.
// Every mutating or byte-moving provider call that fails for a
// backend-specific reason surfaces as an OpError, never as a silent no-op.
type OpError struct {
	Backend string
	Op      string
	Err     error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s on backend %s: %v", e.Op, e.Backend, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// PathError indicates a caller-supplied path resolves outside the configured
// base directory. It is raised before any I/O happens.
type PathError struct {
	Path string
	Base string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("path %s is outside base directory %s", e.Path, e.Base)
}
