package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNetwork              = errors.New("network error")
	ErrFilesystem           = errors.New("filesystem error")
	ErrCorruptContainer     = errors.New("corrupt container")
	ErrCorruptFrame         = errors.New("corrupt frame")
	ErrEncoding             = errors.New("encoding error")
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
	ErrConfiguration        = errors.New("configuration error")
	ErrTimeout              = errors.New("timeout")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrFilesystem
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// WrapTimeout tags err with both the component marker and ErrTimeout.
func WrapTimeout(marker error, component, operation string, err error) error {
	if marker == nil {
		marker = ErrTimeout
	}
	detail := buildDetail(component, operation, "timed out")
	if err != nil {
		return fmt.Errorf("%w: %w: %s: %w", marker, ErrTimeout, detail, err)
	}
	return fmt.Errorf("%w: %w: %s", marker, ErrTimeout, detail)
}

// Category maps an error to a short label used in logs and the change history.
func Category(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrCorruptContainer):
		return "corrupt_container"
	case errors.Is(err, ErrCorruptFrame):
		return "corrupt_frame"
	case errors.Is(err, ErrEncoding):
		return "encoding"
	case errors.Is(err, ErrUnsupportedAlgorithm):
		return "unsupported_algorithm"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrFilesystem):
		return "filesystem"
	default:
		return "unknown"
	}
}

// IsConversionFailure reports whether err came from the best-effort texture
// conversion chain rather than from fetch or archival.
func IsConversionFailure(err error) bool {
	return errors.Is(err, ErrCorruptContainer) || errors.Is(err, ErrCorruptFrame) || errors.Is(err, ErrEncoding)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
