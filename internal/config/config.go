package config

// Config represents the complete pydefs configuration.
// It can be loaded from .pydefs/config.yml with environment variable overrides.
type Config struct {
	Paths      PathsConfig      `yaml:"paths" mapstructure:"paths"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	Processing ProcessingConfig `yaml:"processing" mapstructure:"processing"`
	Watch      WatchConfig      `yaml:"watch" mapstructure:"watch"`
	Storage    StorageConfig    `yaml:"storage" mapstructure:"storage"`
}

// PathsConfig defines which files are extracted when a directory is given.
type PathsConfig struct {
	Include []string `yaml:"include" mapstructure:"include"` // glob patterns for source files
	Ignore  []string `yaml:"ignore" mapstructure:"ignore"`   // glob patterns to skip
}

// OutputConfig controls how Module Records are serialized.
type OutputConfig struct {
	Format string `yaml:"format" mapstructure:"format"` // "stream", "array" or "jsonl"
	Indent int    `yaml:"indent" mapstructure:"indent"` // spaces per level; ignored for jsonl
}

// ProcessingConfig tunes the batch processor.
type ProcessingConfig struct {
	Workers   int `yaml:"workers" mapstructure:"workers"`       // 0 means one per CPU
	CacheSize int `yaml:"cache_size" mapstructure:"cache_size"` // memoized records, 0 disables
}

// WatchConfig tunes watch mode.
type WatchConfig struct {
	DebounceMS int `yaml:"debounce_ms" mapstructure:"debounce_ms"`
}

// StorageConfig configures the optional SQLite sink.
type StorageConfig struct {
	Database string `yaml:"database" mapstructure:"database"` // empty disables persistence
}

// Output formats.
const (
	FormatStream = "stream"
	FormatArray  = "array"
	FormatJSONL  = "jsonl"
)

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Include: []string{
				"**/*.py",
			},
			Ignore: []string{
				".git/**",
				".venv/**",
				"venv/**",
				"env/**",
				"node_modules/**",
				"build/**",
				"dist/**",
				".tox/**",
				"__pycache__/**",
				"**/__pycache__/**",
				"*.egg-info/**",
			},
		},
		Output: OutputConfig{
			Format: FormatStream,
			Indent: 2,
		},
		Processing: ProcessingConfig{
			Workers:   0,
			CacheSize: 1024,
		},
		Watch: WatchConfig{
			DebounceMS: 500,
		},
		Storage: StorageConfig{
			Database: "",
		},
	}
}
