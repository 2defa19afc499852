package factcheck

import "log/slog"

// DefaultModelDir is where models are read from and trained into.
const DefaultModelDir = "./model_output"

type options struct {
	modelDir      string
	checkpointDir string
	encoderDim    int
	seed          uint64
	logger        *slog.Logger
}

// Option configures a Scorer.
type Option func(*options)

// WithModelDir sets the directory holding config.json, vocab.txt and
// model.safetensors. Default: ./model_output.
func WithModelDir(dir string) Option {
	return func(o *options) {
		o.modelDir = dir
	}
}

// WithCheckpointDir sets where Train writes its checkpoints. Default: ./results.
func WithCheckpointDir(dir string) Option {
	return func(o *options) {
		o.checkpointDir = dir
	}
}

// WithEncoderDim sets the vector size of the hashed encoder Train builds.
// Default: 128.
func WithEncoderDim(dim int) Option {
	return func(o *options) {
		o.encoderDim = dim
	}
}

// WithSeed fixes the seed for encoder rows, head initialisation and
// shuffling. Default: 42.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.seed = seed
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func defaultOptions() options {
	return options{
		modelDir:      DefaultModelDir,
		checkpointDir: "./results",
		encoderDim:    128,
		seed:          42,
	}
}

func resolveOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}
