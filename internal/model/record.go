package model

import "time"

// RecordKind distinguishes training log records.
type RecordKind string

const (
	KindTrain      RecordKind = "train"      // periodic training loss
	KindEval       RecordKind = "eval"       // end-of-epoch evaluation
	KindCheckpoint RecordKind = "checkpoint" // checkpoint written
	KindSummary    RecordKind = "summary"    // end of run
)

// Record is one structured training event, written to the logging directory.
type Record struct {
	RunID      string             `json:"run_id"`
	Kind       RecordKind         `json:"kind"`
	Timestamp  time.Time          `json:"timestamp"`
	Epoch      float64            `json:"epoch"`
	Step       int                `json:"step"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
	Checkpoint string             `json:"checkpoint,omitempty"`
}
