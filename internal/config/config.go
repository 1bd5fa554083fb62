// Package config loads optional run settings from a YAML file.
//
// A config file is never required: every field has a default, and
// command-line flags override whatever the file sets. Files are checked
// against an embedded CUE schema before decoding, so a typoed key fails
// loudly instead of being ignored.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"

	"github.com/emoons/transitscan/internal/render"
)

//go:embed schema.cue
var schemaSource string

// DefaultFileName is the file Discover looks for when no --config flag
// is given.
const DefaultFileName = "transitscan.yaml"

// Config holds the run settings shared by the CLI commands.
type Config struct {
	DataDir     string `yaml:"data_dir"`
	OutputDir   string `yaml:"output_dir"`
	DPI         int    `yaml:"dpi"`
	Workers     int    `yaml:"workers"`
	SkipFitting bool   `yaml:"skip_fitting"`
	Force       bool   `yaml:"force"`
	Catalog     string `yaml:"catalog"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DataDir:   "data",
		OutputDir: "plots",
		DPI:       render.DefaultDPI,
		Workers:   1,
	}
}

// Load reads path, validates it against the embedded schema, and returns
// the decoded settings merged over Default(). The file only needs to set
// the keys it wants to change; an empty file keeps every default.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}

	if err := validate(path, data); err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}

// Discover loads DefaultFileName from dir when it exists and returns
// Default() otherwise. A file that exists but does not validate is an
// error; only absence is silent.
func Discover(dir string) (Config, error) {
	path := filepath.Join(dir, DefaultFileName)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return Load(path)
}

// validate unifies the YAML document with the closed #Config definition.
// CUE catches unknown keys, wrong types, and out-of-range values in one
// pass, before any field reaches the struct.
func validate(path string, data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compiling config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))
	if !def.Exists() {
		return fmt.Errorf("config schema has no #Config definition")
	}

	file, err := cueyaml.Extract(path, data)
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	doc := ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := def.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}
	return nil
}
