// Package config reads the engine's YAML configuration: the knobs an
// embedder actually needs (data directory, default database, statement
// timeout, B-tree order), the way the teacher's database.Config and
// database.GeneratorConfig are YAML-tagged structs decoded with
// gopkg.in/yaml.v3.
package config

import (
	"bytes"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the set of knobs engine.NewFromConfig takes (engine.New takes
// only the data directory and B-tree order as bare arguments), collected
// here so callers can load them from a file instead of wiring flags by hand.
type Config struct {
	DataDir          string        `yaml:"data_dir"`
	DefaultDatabase  string        `yaml:"default_database"`
	BTreeOrder       int           `yaml:"btree_order"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// Default matches cmd/qldb's flag defaults: an on-disk store rooted at
// "qldb-data", B-tree order 50, and no statement timeout.
func Default() Config {
	return Config{
		DataDir:    "qldb-data",
		BTreeOrder: 50,
	}
}

// rawConfig decodes statement_timeout as a duration string ("30s", "2m")
// instead of yaml.v3's native time.Duration nanosecond encoding, which
// nobody hand-writes in a config file.
type rawConfig struct {
	DataDir          string `yaml:"data_dir"`
	DefaultDatabase  string `yaml:"default_database"`
	BTreeOrder       int    `yaml:"btree_order"`
	StatementTimeout string `yaml:"statement_timeout"`
}

// Load reads and decodes a YAML config file, starting from Default() so
// a file only needs to mention the fields it wants to override.
func Load(path string) (Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(buf)
}

// Parse decodes YAML config bytes, as Load does for a file on disk.
func Parse(buf []byte) (Config, error) {
	cfg := Default()

	var raw rawConfig
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return Config{}, err
	}

	if raw.DataDir != "" {
		cfg.DataDir = raw.DataDir
	}
	if raw.DefaultDatabase != "" {
		cfg.DefaultDatabase = raw.DefaultDatabase
	}
	if raw.BTreeOrder != 0 {
		cfg.BTreeOrder = raw.BTreeOrder
	}
	if raw.StatementTimeout != "" {
		d, err := time.ParseDuration(raw.StatementTimeout)
		if err != nil {
			return Config{}, err
		}
		cfg.StatementTimeout = d
	}
	return cfg, nil
}
