// Package config holds the runtime knobs of the training demo.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config captures the demo's tunables. Missing file paths are allowed at
// load time: subject C is built from an in-memory tensor and the loader only
// touches files it actually visits.
type Config struct {
	SubjectAImage string `yaml:"subject_a_image"`
	SubjectALabel string `yaml:"subject_a_label"`
	SubjectBImage string `yaml:"subject_b_image"`
	SubjectBLabel string `yaml:"subject_b_label"`
	BatchSize     int    `yaml:"batch_size"`
	NumWorkers    int    `yaml:"num_workers"`
	Epochs        int    `yaml:"epochs"`
	Seed          int64  `yaml:"seed"`
	TopologyFile  string `yaml:"topology_file"`
}

// Overrides captures CLI supplied values.
type Overrides struct {
	BatchSize    int
	NumWorkers   int
	Epochs       int
	Seed         int64
	TopologyFile string
}

// Default returns the configuration matching the stock demo.
func Default() *Config {
	return &Config{
		SubjectAImage: "subject_a.nii.gz",
		SubjectALabel: "subject_a.nii",
		SubjectBImage: "subject_b_dicom_folder",
		SubjectBLabel: "subject_b_seg.nrrd",
		BatchSize:     4,
		NumWorkers:    4,
		Epochs:        1,
	}
}

// Load reads a Config from YAML. A missing path yields the defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, errors.Wrap(err, "open config")
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	return cfg, nil
}

// ApplyOverrides updates cfg using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.NumWorkers > 0 {
		c.NumWorkers = o.NumWorkers
	}
	if o.Epochs > 0 {
		c.Epochs = o.Epochs
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.TopologyFile != "" {
		c.TopologyFile = o.TopologyFile
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.SubjectAImage == "" || c.SubjectALabel == "" {
		return errors.New("subject A image and label paths must be set")
	}
	if c.SubjectBImage == "" || c.SubjectBLabel == "" {
		return errors.New("subject B image and label paths must be set")
	}
	if c.BatchSize <= 0 {
		return errors.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.NumWorkers <= 0 {
		return errors.Errorf("num_workers must be > 0 (got %d)", c.NumWorkers)
	}
	if c.Epochs <= 0 {
		return errors.Errorf("epochs must be > 0 (got %d)", c.Epochs)
	}
	return nil
}
