package stock

import "errors"

// Failure kinds. Errors returned inside a run wrap exactly one of these.
var (
	ErrFetch           = errors.New("fetch failed")
	ErrParse           = errors.New("parse failed")
	ErrElementNotFound = errors.New("element not found")
	ErrPublish         = errors.New("publish failed")
)

// ErrorKind returns a short label for the failure kind wrapped by err.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFetch):
		return "fetch"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrElementNotFound):
		return "element_not_found"
	case errors.Is(err, ErrPublish):
		return "publish"
	default:
		return "internal"
	}
}
