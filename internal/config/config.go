package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/crimson-sun/factcheck/internal/engine/encoder"
	"github.com/crimson-sun/factcheck/internal/engine/trainer"
)

// DefaultFixedStatement is the statement the gateway scores in place of the
// uploaded one while FixedStatement is left at its default.
const DefaultFixedStatement = `With chronic illness at its highest ever level, many people are turning to
            treatments and activities such as reiki, healing touch, yoga and massage in
            search of answers to long term medical issues and pain.`

// Config holds all factcheck configuration.
type Config struct {
	Log     LogConfig      `yaml:"log"`
	Model   ModelConfig    `yaml:"model"`
	Encoder encoder.Config `yaml:"encoder"`
	Train   TrainConfig    `yaml:"train"`
	Service ServiceConfig  `yaml:"service"`
	Gateway GatewayConfig  `yaml:"gateway"`
}

// LogConfig holds diagnostic logging settings.
type LogConfig struct {
	Format string `yaml:"format"` // "text" or "json"
	Level  string `yaml:"level"`
}

// ModelConfig locates the trained model and picks the scoring mode.
type ModelConfig struct {
	Dir  string `yaml:"dir"`
	Mode string `yaml:"mode"` // "regression" or "classification"
}

// TrainConfig holds the training hyperparameters and where records go.
type TrainConfig struct {
	OutputDir          string  `yaml:"output_dir"`
	LoggingDir         string  `yaml:"logging_dir"`
	Epochs             int     `yaml:"epochs"`
	TrainBatchSize     int     `yaml:"train_batch_size"`
	EvalBatchSize      int     `yaml:"eval_batch_size"`
	LearningRate       float64 `yaml:"learning_rate"`
	WarmupSteps        int     `yaml:"warmup_steps"`
	WeightDecay        float64 `yaml:"weight_decay"`
	Optimizer          string  `yaml:"optimizer"`
	Schedule           string  `yaml:"schedule"`
	LoggingSteps       int     `yaml:"logging_steps"`
	EvalStrategy       string  `yaml:"eval_strategy"`
	SaveStrategy       string  `yaml:"save_strategy"`
	SaveTotalLimit     int     `yaml:"save_total_limit"`
	LoadBestModelAtEnd bool    `yaml:"load_best_model_at_end"`
	DropLast           bool    `yaml:"drop_last"`
	Seed               uint64  `yaml:"seed"`

	Corpus       string `yaml:"corpus"`     // empty uses the embedded corpus
	VocabPath    string `yaml:"vocab_path"` // empty builds one from the corpus
	EvalMinWords int    `yaml:"eval_min_words"`
	LogMaxBytes  int64  `yaml:"log_max_bytes"`
}

// ServiceConfig holds the scoring service listener settings.
type ServiceConfig struct {
	Addr string `yaml:"addr"`
}

// GatewayConfig holds the statement gateway settings.
type GatewayConfig struct {
	Addr       string        `yaml:"addr"`
	ScoringURL string        `yaml:"scoring_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	Backoff    time.Duration `yaml:"backoff"`

	FixedStatement        string `yaml:"fixed_statement"`
	UseSubmittedStatement bool   `yaml:"use_submitted_statement"`
	LegacyErrorSentinel   bool   `yaml:"legacy_error_sentinel"`

	EnforceCSRF   bool   `yaml:"enforce_csrf"`
	CSRFCookie    string `yaml:"csrf_cookie"`
	AllowedOrigin string `yaml:"allowed_origin"`
}

// Arguments converts the training section into trainer arguments.
func (t TrainConfig) Arguments() trainer.Arguments {
	return trainer.Arguments{
		OutputDir:          t.OutputDir,
		LoggingDir:         t.LoggingDir,
		NumTrainEpochs:     t.Epochs,
		TrainBatchSize:     t.TrainBatchSize,
		EvalBatchSize:      t.EvalBatchSize,
		LearningRate:       t.LearningRate,
		WarmupSteps:        t.WarmupSteps,
		WeightDecay:        t.WeightDecay,
		Optimizer:          t.Optimizer,
		Schedule:           t.Schedule,
		LoggingSteps:       t.LoggingSteps,
		EvalStrategy:       t.EvalStrategy,
		SaveStrategy:       t.SaveStrategy,
		SaveTotalLimit:     t.SaveTotalLimit,
		LoadBestModelAtEnd: t.LoadBestModelAtEnd,
		DropLast:           t.DropLast,
		Seed:               t.Seed,
	}
}

// Default returns the built-in configuration.
func Default() Config {
	args := trainer.DefaultArguments()
	return Config{
		Log: LogConfig{Format: "text", Level: "info"},
		Model: ModelConfig{
			Dir:  "./model_output",
			Mode: "regression",
		},
		Encoder: encoder.Config{
			Backend: encoder.BackendHashed,
			Dim:     128,
			Seed:    42,
		},
		Train: TrainConfig{
			OutputDir:          args.OutputDir,
			LoggingDir:         args.LoggingDir,
			Epochs:             args.NumTrainEpochs,
			TrainBatchSize:     args.TrainBatchSize,
			EvalBatchSize:      args.EvalBatchSize,
			LearningRate:       args.LearningRate,
			WarmupSteps:        args.WarmupSteps,
			WeightDecay:        args.WeightDecay,
			Optimizer:          args.Optimizer,
			Schedule:           args.Schedule,
			LoggingSteps:       args.LoggingSteps,
			EvalStrategy:       args.EvalStrategy,
			SaveStrategy:       args.SaveStrategy,
			SaveTotalLimit:     args.SaveTotalLimit,
			LoadBestModelAtEnd: args.LoadBestModelAtEnd,
			DropLast:           args.DropLast,
			Seed:               args.Seed,
			EvalMinWords:       8,
			LogMaxBytes:        10 << 20,
		},
		Service: ServiceConfig{Addr: ":8000"},
		Gateway: GatewayConfig{
			Addr:           ":8080",
			ScoringURL:     "http://ai-model:8000",
			Timeout:        30 * time.Second,
			MaxRetries:     2,
			Backoff:        500 * time.Millisecond,
			FixedStatement: DefaultFixedStatement,
			EnforceCSRF:    true,
			CSRFCookie:     "csrftoken",
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty), then FACTCHECK_* environment variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto c. Keys absent from the file
// keep their current values.
func (c *Config) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("config: decode %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays FACTCHECK_* environment variables onto c.
func (c *Config) ApplyEnv() {
	c.Log.Format = getenv("FACTCHECK_LOG_FORMAT", c.Log.Format)
	c.Log.Level = getenv("FACTCHECK_LOG_LEVEL", c.Log.Level)

	c.Model.Dir = getenv("FACTCHECK_MODEL_DIR", c.Model.Dir)
	c.Model.Mode = getenv("FACTCHECK_MODE", c.Model.Mode)

	c.Encoder.Backend = getenv("FACTCHECK_ENCODER", c.Encoder.Backend)
	c.Encoder.Dim = getenvInt("FACTCHECK_ENCODER_DIM", c.Encoder.Dim)
	c.Encoder.Seed = getenvUint("FACTCHECK_ENCODER_SEED", c.Encoder.Seed)
	c.Encoder.MaxLength = getenvInt("FACTCHECK_MAX_LENGTH", c.Encoder.MaxLength)
	c.Encoder.ModelPath = getenv("FACTCHECK_ONNX_MODEL_PATH", c.Encoder.ModelPath)
	c.Encoder.ProjectionPath = getenv("FACTCHECK_PROJECTION_PATH", c.Encoder.ProjectionPath)
	c.Encoder.LibraryPath = getenv("FACTCHECK_ONNX_LIBRARY_PATH", c.Encoder.LibraryPath)

	t := &c.Train
	t.OutputDir = getenv("FACTCHECK_OUTPUT_DIR", t.OutputDir)
	t.LoggingDir = getenv("FACTCHECK_LOGGING_DIR", t.LoggingDir)
	t.Epochs = getenvInt("FACTCHECK_EPOCHS", t.Epochs)
	t.TrainBatchSize = getenvInt("FACTCHECK_TRAIN_BATCH_SIZE", t.TrainBatchSize)
	t.EvalBatchSize = getenvInt("FACTCHECK_EVAL_BATCH_SIZE", t.EvalBatchSize)
	t.LearningRate = getenvFloat("FACTCHECK_LEARNING_RATE", t.LearningRate)
	t.WarmupSteps = getenvInt("FACTCHECK_WARMUP_STEPS", t.WarmupSteps)
	t.WeightDecay = getenvFloat("FACTCHECK_WEIGHT_DECAY", t.WeightDecay)
	t.Optimizer = getenv("FACTCHECK_OPTIMIZER", t.Optimizer)
	t.Schedule = getenv("FACTCHECK_SCHEDULE", t.Schedule)
	t.LoggingSteps = getenvInt("FACTCHECK_LOGGING_STEPS", t.LoggingSteps)
	t.SaveTotalLimit = getenvInt("FACTCHECK_SAVE_TOTAL_LIMIT", t.SaveTotalLimit)
	t.Seed = getenvUint("FACTCHECK_SEED", t.Seed)
	t.Corpus = getenv("FACTCHECK_CORPUS", t.Corpus)
	t.VocabPath = getenv("FACTCHECK_VOCAB_PATH", t.VocabPath)

	c.Service.Addr = getenv("FACTCHECK_SERVICE_ADDR", c.Service.Addr)

	g := &c.Gateway
	g.Addr = getenv("FACTCHECK_GATEWAY_ADDR", g.Addr)
	g.ScoringURL = getenv("FACTCHECK_SCORING_URL", g.ScoringURL)
	g.Timeout = getenvDuration("FACTCHECK_SCORING_TIMEOUT", g.Timeout)
	g.MaxRetries = getenvInt("FACTCHECK_SCORING_RETRIES", g.MaxRetries)
	g.Backoff = getenvDuration("FACTCHECK_SCORING_BACKOFF", g.Backoff)
	g.FixedStatement = getenv("FACTCHECK_FIXED_STATEMENT", g.FixedStatement)
	g.UseSubmittedStatement = getenvBool("FACTCHECK_USE_SUBMITTED_STATEMENT", g.UseSubmittedStatement)
	g.LegacyErrorSentinel = getenvBool("FACTCHECK_LEGACY_ERROR_SENTINEL", g.LegacyErrorSentinel)
	g.EnforceCSRF = getenvBool("FACTCHECK_ENFORCE_CSRF", g.EnforceCSRF)
	g.CSRFCookie = getenv("FACTCHECK_CSRF_COOKIE", g.CSRFCookie)
	g.AllowedOrigin = getenv("FACTCHECK_ALLOWED_ORIGIN", g.AllowedOrigin)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvUint(key string, fallback uint64) uint64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getenvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return b
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
