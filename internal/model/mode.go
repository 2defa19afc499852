package model

import (
	"fmt"
	"strings"
)

// Mode selects how a scorer is trained and how its raw output is mapped to a
// confidence value.
type Mode string

const (
	// Regression trains a single output against a [0,1] target with MSE and
	// maps it through a sigmoid at inference.
	Regression Mode = "regression"
	// Classification trains one output per class with cross-entropy and
	// reports the softmax probability of the predicted class.
	Classification Mode = "classification"
)

// ParseMode converts "regression" or "classification" (case-insensitive) to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case Regression:
		return Regression, nil
	case Classification:
		return Classification, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want regression or classification)", s)
	}
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == Regression || m == Classification
}

// DefaultMaxLength is the tokenized input length used when none is configured.
func (m Mode) DefaultMaxLength() int {
	if m == Classification {
		return 128
	}
	return 512
}

// DefaultNumLabels is the number of head outputs used when none is configured.
func (m Mode) DefaultNumLabels() int {
	if m == Classification {
		return 2
	}
	return 1
}
