package backend

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrForbidden means the caller lacks permission; route it to a
	// permission challenge instead of retrying.
	ErrForbidden = errors.New("forbidden")
	ErrNotFound  = errors.New("not found")
	// ErrUnavailable wraps network-level failures (connection refused,
	// timeouts, truncated bodies).
	ErrUnavailable = errors.New("backend unavailable")
)

// StatusError is a non-2xx response not covered by a sentinel.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.Code)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Code, e.Message)
}

// SubmissionError is a submission rejected before or by the backend.
type SubmissionError struct {
	FileName string
	Reason   string
	Fields   map[string]string
	Err      error
}

func (e *SubmissionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "submission of %q rejected", e.FileName)
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+" "+e.Fields[k])
		}
		fmt.Fprintf(&b, " (%s)", strings.Join(parts, "; "))
	}
	return b.String()
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// IsTransient reports whether err is worth retrying on a later poll.
func IsTransient(err error) bool {
	if errors.Is(err, ErrUnavailable) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == 429
	}
	return false
}
