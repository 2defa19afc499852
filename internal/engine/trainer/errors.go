package trainer

import "fmt"

// ConfigurationError reports training arguments or data that cannot produce
// a training run.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func configErr(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// DivergenceError reports a training run whose loss or parameters stopped
// being finite numbers.
type DivergenceError struct {
	Step int
	Loss float64
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("loss diverged at step %d (loss %v)", e.Step, e.Loss)
}
