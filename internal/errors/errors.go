package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for rejected configuration and input
var (
	ErrInvalidRange    = errors.New("invalid note range")
	ErrInvalidTempo    = errors.New("tempo must be positive")
	ErrUnknownRoot     = errors.New("unknown root note")
	ErrUnknownScale    = errors.New("unknown scale type")
	ErrUnknownSnapMode = errors.New("unknown snap mode")
	ErrUnknownBendMode = errors.New("unknown pitch bend mode")
	ErrInvalidGrid     = errors.New("invalid quantization grid")
	ErrInvalidBend     = errors.New("invalid pitch bend range")
	ErrInvalidNote     = errors.New("invalid note event")
)

// ConfigError reports a configuration value rejected before the pipeline starts
type ConfigError struct {
	Field string // "key.range", "tempo", "bend_mode", ...
	Value any
	Cause error
}

func (e *ConfigError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("config %s: %v", e.Field, e.Cause)
	}
	return fmt.Sprintf("config %s=%v: %v", e.Field, e.Value, e.Cause)
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a ConfigError
func NewConfigError(field string, value any, cause error) *ConfigError {
	return &ConfigError{
		Field: field,
		Value: value,
		Cause: cause,
	}
}

// NoteError identifies the input note that failed structural validation
type NoteError struct {
	Index  int
	Reason string
}

func (e *NoteError) Error() string {
	return fmt.Sprintf("note %d: %s", e.Index, e.Reason)
}

func (e *NoteError) Unwrap() error {
	return ErrInvalidNote
}

// IsConfig reports whether err was caused by rejected configuration
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
