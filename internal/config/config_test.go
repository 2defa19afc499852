package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable ApplyEnv reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, "FACTCHECK_") {
			t.Setenv(key, "")
		}
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "factcheck.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Model.Dir != "./model_output" {
		t.Fatalf("expected default model dir './model_output', got %q", cfg.Model.Dir)
	}
	if cfg.Model.Mode != "regression" {
		t.Fatalf("expected default mode 'regression', got %q", cfg.Model.Mode)
	}
	if cfg.Encoder.Backend != "hashed" || cfg.Encoder.Dim != 128 {
		t.Fatalf("unexpected encoder defaults: %+v", cfg.Encoder)
	}
	if cfg.Train.Epochs != 3 || cfg.Train.TrainBatchSize != 2 || cfg.Train.SaveTotalLimit != 3 {
		t.Fatalf("unexpected train defaults: %+v", cfg.Train)
	}
	if cfg.Train.LearningRate != 5e-5 {
		t.Fatalf("expected learning rate 5e-5, got %v", cfg.Train.LearningRate)
	}
	if cfg.Service.Addr != ":8000" {
		t.Fatalf("expected service addr ':8000', got %q", cfg.Service.Addr)
	}
	if cfg.Gateway.ScoringURL != "http://ai-model:8000" {
		t.Fatalf("expected scoring URL 'http://ai-model:8000', got %q", cfg.Gateway.ScoringURL)
	}
	if cfg.Gateway.Timeout != 30*time.Second || cfg.Gateway.MaxRetries != 2 {
		t.Fatalf("unexpected gateway client defaults: timeout=%v retries=%d", cfg.Gateway.Timeout, cfg.Gateway.MaxRetries)
	}
	if cfg.Gateway.FixedStatement != DefaultFixedStatement {
		t.Fatal("expected the default fixed statement")
	}
	if cfg.Gateway.UseSubmittedStatement || cfg.Gateway.LegacyErrorSentinel {
		t.Fatal("expected submitted statement and legacy sentinel off by default")
	}
	if !cfg.Gateway.EnforceCSRF || cfg.Gateway.CSRFCookie != "csrftoken" {
		t.Fatalf("unexpected CSRF defaults: enforce=%v cookie=%q", cfg.Gateway.EnforceCSRF, cfg.Gateway.CSRFCookie)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("FACTCHECK_MODE", "classification")
	t.Setenv("FACTCHECK_EPOCHS", "7")
	t.Setenv("FACTCHECK_LEARNING_RATE", "0.001")
	t.Setenv("FACTCHECK_SCORING_TIMEOUT", "5s")
	t.Setenv("FACTCHECK_ENFORCE_CSRF", "false")
	t.Setenv("FACTCHECK_ENCODER_SEED", "9")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Model.Mode != "classification" {
		t.Errorf("Mode = %q, want classification", cfg.Model.Mode)
	}
	if cfg.Train.Epochs != 7 {
		t.Errorf("Epochs = %d, want 7", cfg.Train.Epochs)
	}
	if cfg.Train.LearningRate != 0.001 {
		t.Errorf("LearningRate = %v, want 0.001", cfg.Train.LearningRate)
	}
	if cfg.Gateway.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Gateway.Timeout)
	}
	if cfg.Gateway.EnforceCSRF {
		t.Error("EnforceCSRF should be false")
	}
	if cfg.Encoder.Seed != 9 {
		t.Errorf("Encoder.Seed = %d, want 9", cfg.Encoder.Seed)
	}
}

func TestLoad_InvalidEnvKeepsFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("FACTCHECK_EPOCHS", "three")
	t.Setenv("FACTCHECK_SCORING_TIMEOUT", "soon")
	t.Setenv("FACTCHECK_ENFORCE_CSRF", "maybe")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Train.Epochs != 3 {
		t.Errorf("Epochs = %d, want fallback 3", cfg.Train.Epochs)
	}
	if cfg.Gateway.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want fallback 30s", cfg.Gateway.Timeout)
	}
	if !cfg.Gateway.EnforceCSRF {
		t.Error("EnforceCSRF should keep its fallback")
	}
}

func TestLoad_FileOverlay(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
model:
  mode: classification
train:
  epochs: 5
  learning_rate: 0.01
gateway:
  timeout: 2s
  use_submitted_statement: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model.Mode != "classification" {
		t.Errorf("Mode = %q, want classification", cfg.Model.Mode)
	}
	if cfg.Model.Dir != "./model_output" {
		t.Errorf("Dir = %q, absent key should keep default", cfg.Model.Dir)
	}
	if cfg.Train.Epochs != 5 || cfg.Train.LearningRate != 0.01 {
		t.Errorf("train overlay not applied: %+v", cfg.Train)
	}
	if cfg.Train.TrainBatchSize != 2 {
		t.Errorf("TrainBatchSize = %d, absent key should keep default", cfg.Train.TrainBatchSize)
	}
	if cfg.Gateway.Timeout != 2*time.Second {
		t.Errorf("Timeout = %v, want 2s", cfg.Gateway.Timeout)
	}
	if !cfg.Gateway.UseSubmittedStatement {
		t.Error("UseSubmittedStatement should be true")
	}
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "train:\n  epochs: 5\n")
	t.Setenv("FACTCHECK_EPOCHS", "9")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Train.Epochs != 9 {
		t.Fatalf("Epochs = %d, environment should win over file", cfg.Train.Epochs)
	}
}

func TestLoad_FileErrors(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name string
		path string
	}{
		{"missing", filepath.Join(t.TempDir(), "absent.yaml")},
		{"unknown key", writeFile(t, "trian:\n  epochs: 5\n")},
		{"bad type", writeFile(t, "train:\n  epochs: lots\n")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(tt.path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestTrainConfigArguments(t *testing.T) {
	cfg := Default()
	args := cfg.Train.Arguments()
	if err := args.Validate(3, 3); err != nil {
		t.Fatalf("default arguments should validate: %v", err)
	}
	if args.NumTrainEpochs != cfg.Train.Epochs || args.OutputDir != "./results" {
		t.Fatalf("unexpected arguments: %+v", args)
	}
}
