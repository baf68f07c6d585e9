// Package config holds the run configuration shared by every command.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/robert-malhotra/h5export/internal/vtk"
)

// Config is validated once and passed explicitly to every component.
type Config struct {
	InputDir    string         `toml:"input_dir"`
	OutputDir   string         `toml:"output_dir"`
	Pattern     string         `toml:"glob_pattern"`
	MetadataDir string         `toml:"metadata_dir"`
	Attach      vtk.Attachment `toml:"attachment"`
	Encoding    vtk.Encoding   `toml:"encoding"`
	Workers     int            `toml:"workers"`
	Log         Log            `toml:"log"`
}

// Log configures logrus.
type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default matches the layout of a Dedalus run directory.
func Default() Config {
	return Config{
		InputDir:  "snapshots",
		OutputDir: "vtk_output",
		Pattern:   "snapshots_s*.h5",
		Attach:    vtk.Point,
		Encoding:  vtk.ASCII,
		Workers:   1,
		Log:       Log{Level: "info", Format: "text"},
	}
}

// Decode reads TOML on top of the defaults. Unknown keys are an error.
func Decode(r io.Reader) (Config, error) {
	c := Default()
	md, err := toml.NewDecoder(r).Decode(&c)
	if err != nil {
		return c, fmt.Errorf("config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return c, fmt.Errorf("config: unknown keys %s", strings.Join(keys, ", "))
	}
	return c, nil
}

// Load decodes the TOML file at name.
func Load(name string) (Config, error) {
	f, err := os.Open(name)
	if err != nil {
		return Default(), fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// BindFlags registers command-line overrides for c on fs.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.InputDir, "input", "i", c.InputDir, "directory holding snapshot archives")
	fs.StringVarP(&c.OutputDir, "output", "o", c.OutputDir, "directory for per-frame grid files")
	fs.StringVarP(&c.Pattern, "pattern", "p", c.Pattern, "glob selecting archives inside the input directory")
	fs.StringVar(&c.MetadataDir, "metadata-dir", c.MetadataDir, "directory for XDMF documents (default: next to each archive)")
	fs.Var(&c.Attach, "attach", "attach grid arrays to mesh points or cells (point|cell)")
	fs.Var(&c.Encoding, "encoding", "grid file data encoding (ascii|binary)")
	fs.IntVarP(&c.Workers, "workers", "j", c.Workers, "archives converted concurrently")
}

// Validate checks the configuration once, before any archive is opened.
func (c *Config) Validate() error {
	var errs []error
	if c.InputDir == "" {
		errs = append(errs, errors.New("input_dir is empty"))
	} else if st, err := os.Stat(c.InputDir); err != nil {
		errs = append(errs, fmt.Errorf("input_dir: %w", err))
	} else if !st.IsDir() {
		errs = append(errs, fmt.Errorf("input_dir %s is not a directory", c.InputDir))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output_dir is empty"))
	}
	if c.Pattern == "" {
		errs = append(errs, errors.New("glob_pattern is empty"))
	} else if strings.ContainsRune(c.Pattern, filepath.Separator) {
		errs = append(errs, fmt.Errorf("glob_pattern %q must not contain a path separator", c.Pattern))
	} else if _, err := filepath.Match(c.Pattern, ""); err != nil {
		errs = append(errs, fmt.Errorf("glob_pattern %q: %w", c.Pattern, err))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format %q: want text or json", c.Log.Format))
	}
	return errors.Join(errs...)
}
