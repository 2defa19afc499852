package output

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/crimson-sun/factcheck/internal/model"
)

// FormatText renders a record as one human-readable line with metrics in
// key order, e.g.
//
//	2026-03-01T12:00:00Z eval run=3f2a epoch=1.00 step=2 eval_loss=0.0412
func FormatText(r model.Record) string {
	var b strings.Builder
	b.WriteString(r.Timestamp.UTC().Format(time.RFC3339))
	b.WriteByte(' ')
	b.WriteString(string(r.Kind))
	b.WriteString(" run=")
	b.WriteString(r.RunID)
	b.WriteString(" epoch=")
	b.WriteString(strconv.FormatFloat(r.Epoch, 'f', 2, 64))
	b.WriteString(" step=")
	b.WriteString(strconv.Itoa(r.Step))

	keys := make([]string, 0, len(r.Metrics))
	for k := range r.Metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(r.Metrics[k], 'g', 6, 64))
	}

	if r.Checkpoint != "" {
		b.WriteString(" checkpoint=")
		b.WriteString(r.Checkpoint)
	}
	return b.String()
}
