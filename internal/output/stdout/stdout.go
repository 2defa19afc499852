package stdout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/crimson-sun/factcheck/internal/model"
	"github.com/crimson-sun/factcheck/internal/output"
)

// Formats accepted by New.
const (
	FormatJSON   = "json"
	FormatPretty = "pretty"
	FormatText   = "text"
)

// Output writes training records to stdout.
type Output struct {
	mu   sync.Mutex
	w    io.Writer
	enc  *json.Encoder
	text bool
}

// New creates a stdout Output. format is "json" (NDJSON), "pretty"
// (indented JSON) or "text" (one FormatText line per record).
func New(format string) (*Output, error) {
	o := &Output{w: os.Stdout}
	switch format {
	case FormatJSON, "":
		o.enc = json.NewEncoder(o.w)
	case FormatPretty:
		o.enc = json.NewEncoder(o.w)
		o.enc.SetIndent("", "  ")
	case FormatText:
		o.text = true
	default:
		return nil, fmt.Errorf("stdout output: unknown format %q", format)
	}
	return o, nil
}

func (o *Output) Write(_ context.Context, rec model.Record) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.text {
		if _, err := fmt.Fprintln(o.w, output.FormatText(rec)); err != nil {
			return fmt.Errorf("stdout output: %w", err)
		}
		return nil
	}
	if err := o.enc.Encode(rec); err != nil {
		return fmt.Errorf("stdout output: %w", err)
	}
	return nil
}

func (o *Output) Close() error {
	return nil
}
