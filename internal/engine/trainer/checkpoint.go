package trainer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/crimson-sun/factcheck/internal/engine/head"
	"github.com/crimson-sun/factcheck/internal/model"
)

const (
	checkpointPrefix = "checkpoint-"
	stateFile        = "trainer_state.json"
	weightsFile      = "model.safetensors"
)

// State is written next to every checkpoint.
type State struct {
	RunID               string         `json:"run_id"`
	Epoch               float64        `json:"epoch"`
	GlobalStep          int            `json:"global_step"`
	MaxSteps            int            `json:"max_steps"`
	NumTrainEpochs      int            `json:"num_train_epochs"`
	BestMetric          *float64       `json:"best_metric"`
	BestModelCheckpoint string         `json:"best_model_checkpoint,omitempty"`
	LogHistory          []model.Record `json:"log_history"`
}

// saveCheckpoint writes the head and trainer state to
// <outputDir>/checkpoint-<step> and returns that directory.
func saveCheckpoint(outputDir string, h *head.Head, state State) (string, error) {
	dir := checkpointDir(outputDir, state.GlobalStep)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("checkpoint: %w", err)
	}
	if err := h.Save(filepath.Join(dir, weightsFile)); err != nil {
		return "", fmt.Errorf("checkpoint: %w", err)
	}
	if err := writeState(dir, state); err != nil {
		return "", err
	}
	return dir, nil
}

func writeState(dir string, state State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("checkpoint: marshal state: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, stateFile), data, 0o644); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	return nil
}

// ReadState loads the trainer state stored in a checkpoint directory.
func ReadState(dir string) (*State, error) {
	data, err := os.ReadFile(filepath.Join(dir, stateFile))
	if err != nil {
		return nil, fmt.Errorf("checkpoint: %w", err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("checkpoint: parse %s: %w", stateFile, err)
	}
	return &s, nil
}

// LoadCheckpoint reads the head stored in a checkpoint directory.
func LoadCheckpoint(dir string) (*head.Head, error) {
	return head.Load(filepath.Join(dir, weightsFile))
}

// listCheckpoints returns checkpoint directories under outputDir ordered by
// step, oldest first.
func listCheckpoints(outputDir string) ([]string, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("checkpoint: %w", err)
	}

	type ckpt struct {
		path string
		step int
	}
	var found []ckpt
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), checkpointPrefix) {
			continue
		}
		step, err := strconv.Atoi(strings.TrimPrefix(e.Name(), checkpointPrefix))
		if err != nil {
			continue
		}
		found = append(found, ckpt{path: filepath.Join(outputDir, e.Name()), step: step})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].step < found[j].step })

	paths := make([]string, len(found))
	for i, c := range found {
		paths[i] = c.path
	}
	return paths, nil
}

// rotateCheckpoints deletes the oldest of written, the checkpoints this run
// saved in order, so at most limit remain. It returns the survivors and the
// removed paths. The best checkpoint and the newest one are never deleted, so
// with limit 1 and a best that is not the newest, two survive. limit 0 keeps
// everything. Checkpoints left in the output directory by other runs are not
// touched.
func rotateCheckpoints(written []string, limit int, best string) (kept, removed []string, err error) {
	if limit <= 0 || len(written) == 0 {
		return written, nil, nil
	}
	newest := written[len(written)-1]
	var others []string
	keep := limit
	for _, p := range written {
		if best != "" && p == best {
			keep--
			continue
		}
		others = append(others, p)
	}
	if keep < 1 && best != newest {
		keep = 1
	}
	if len(others) <= keep {
		return written, nil, nil
	}
	removed = others[:len(others)-keep]
	for _, p := range removed {
		if err := os.RemoveAll(p); err != nil {
			return nil, nil, fmt.Errorf("checkpoint: remove %s: %w", p, err)
		}
	}
	gone := make(map[string]bool, len(removed))
	for _, p := range removed {
		gone[p] = true
	}
	for _, p := range written {
		if !gone[p] {
			kept = append(kept, p)
		}
	}
	return kept, removed, nil
}
