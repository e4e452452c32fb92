package plinkbgen

import (
	"fmt"

	"github.com/carbocation/pfx"
	"github.com/spf13/viper"
)

// ExportConfig is the configuration surface the encoder consumes. The encoder
// never parses files itself; callers either build the struct directly or load
// it with LoadExportConfig.
type ExportConfig struct {
	// OutputPrefix names the five output files (prefix + .fam/.bim/.tped/.bed
	// and the probabilistic file).
	OutputPrefix string `mapstructure:"output_prefix"`

	// SampleList optionally points at a text file with one sample identifier
	// per line. When set, the identifiers are embedded in the probabilistic
	// file and used for the sample file.
	SampleList string `mapstructure:"sample_list"`

	// ProgressInterval logs a progress line every N variants; zero disables.
	ProgressInterval int `mapstructure:"progress_interval"`

	// Compression selects the block compressor: none, zlib, or zstd.
	Compression string `mapstructure:"compression"`

	// WriteIndex emits a SQLite variant index next to the probabilistic file
	// after a clean finish.
	WriteIndex bool `mapstructure:"write_index"`
}

// RowRange is the inclusive row (sample) index range assigned to one worker
// rank by the external rank-assignment mechanism.
type RowRange struct {
	Low  int64 `mapstructure:"low"`
	High int64 `mapstructure:"high"`
}

// Count is the declared cardinality of the range: every column yields exactly
// this many entries.
func (r RowRange) Count() int64 {
	return r.High - r.Low + 1
}

// LoadExportConfig reads an ExportConfig from a YAML file.
func LoadExportConfig(path string) (*ExportConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, pfx.Err(fmt.Errorf("read config: %w", err))
	}

	var cfg ExportConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, pfx.Err(fmt.Errorf("unmarshal config: %w", err))
	}

	if cfg.OutputPrefix == "" {
		return nil, pfx.Err(fmt.Errorf("%w: output_prefix is required", ErrConfiguration))
	}
	if _, err := ParseCompression(cfg.Compression); err != nil {
		return nil, pfx.Err(err)
	}

	return &cfg, nil
}
