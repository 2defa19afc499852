package output

import (
	"context"

	"github.com/crimson-sun/factcheck/internal/model"
)

// Output defines the interface for training record destinations.
type Output interface {
	Write(ctx context.Context, rec model.Record) error
	Close() error
}
