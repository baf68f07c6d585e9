// Package cli wires configuration, logging and the exporters into the
// h5export command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/robert-malhotra/h5export/internal/batch"
	"github.com/robert-malhotra/h5export/internal/config"
	"github.com/robert-malhotra/h5export/internal/export"
	"github.com/robert-malhotra/h5export/internal/inspect"
	"github.com/robert-malhotra/h5export/internal/snapshot"
)

type app struct {
	cfg        config.Config
	configFile string
	log        *logrus.Logger
	stdout     io.Writer
	stderr     io.Writer
}

// New returns the root command writing reports to stdout and logs to stderr.
func New(stdout, stderr io.Writer) *cobra.Command {
	a := &app{cfg: config.Default(), stdout: stdout, stderr: stderr, log: logrus.New()}

	root := &cobra.Command{
		Use:   "h5export",
		Short: "Convert Dedalus snapshot archives for visualization.",
		Long: `h5export converts Dedalus HDF5 snapshot archives into per-timestep VTK
structured-grid files or XDMF documents that reference the archives in place.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "TOML configuration file")
	pf.StringVar(&a.cfg.Log.Level, "log-level", a.cfg.Log.Level, "log level (debug|info|warn|error)")
	pf.StringVar(&a.cfg.Log.Format, "log-format", a.cfg.Log.Format, "log format (text|json)")

	root.AddCommand(a.vtkCmd(), a.xdmfCmd(), a.inspectCmd(), a.statsCmd())
	return root
}

// setup loads the configuration file, reapplies explicitly set flags on top
// of it and configures logging.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if a.configFile != "" {
		changed := map[string]string{}
		cmd.Flags().Visit(func(f *pflag.Flag) {
			// Slice flags append on Set and none of them live in the file.
			if f.Name != "config" && !strings.HasSuffix(f.Value.Type(), "Slice") {
				changed[f.Name] = f.Value.String()
			}
		})

		cfg, err := config.Load(a.configFile)
		if err != nil {
			return err
		}
		a.cfg = cfg
		for name, v := range changed {
			if err := cmd.Flags().Set(name, v); err != nil {
				return fmt.Errorf("--%s: %w", name, err)
			}
		}
	}
	return a.configureLog()
}

func (a *app) configureLog() error {
	level, err := logrus.ParseLevel(a.cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	a.log.SetOutput(a.stderr)
	a.log.SetLevel(level)
	switch a.cfg.Log.Format {
	case "json":
		a.log.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		a.log.SetFormatter(&logrus.TextFormatter{
			DisableColors: !terminal(a.stderr),
			FullTimestamp: true,
		})
	default:
		return fmt.Errorf("log format %q: want text or json", a.cfg.Log.Format)
	}
	return nil
}

func terminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && inspect.Colored(f)
}

func (a *app) vtkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vtk",
		Short: "Write one VTK structured-grid file per timestep",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := &export.GridExporter{
				OutputDir: a.cfg.OutputDir,
				Attach:    a.cfg.Attach,
				Encoding:  a.cfg.Encoding,
				Log:       a.log,
			}
			return a.run(cmd.Context(), e)
		},
	}
	a.cfg.BindFlags(cmd.Flags())
	return cmd
}

func (a *app) xdmfCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "xdmf",
		Short: "Write one XDMF document per archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := &export.MetadataExporter{OutputDir: a.cfg.MetadataDir, Log: a.log}
			return a.run(cmd.Context(), e)
		},
	}
	a.cfg.BindFlags(cmd.Flags())
	return cmd
}

// run validates the configuration and exports every matching archive.
// Failures of single archives are logged, not returned.
func (a *app) run(ctx context.Context, e export.Exporter) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	sum, err := batch.Run(ctx, a.cfg.InputDir, a.cfg.Pattern, a.cfg.Workers, e, a.log)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s: %d archives converted, %d failed, %d frames\n",
		e.Format(), sum.Succeeded, sum.Failed, sum.Frames())
	return nil
}

func (a *app) inspectCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print the structure of one archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := snapshot.Open(args[0])
			if err != nil {
				return err
			}
			defer h.Close()

			r, err := inspect.Inspect(h)
			if err != nil {
				return err
			}
			switch format {
			case "yaml":
				return inspect.WriteYAML(a.stdout, r)
			case "text":
				return inspect.WriteText(a.stdout, r, terminal(a.stdout))
			}
			return fmt.Errorf("format %q: want text or yaml", format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "report format (text|yaml)")
	return cmd
}

func (a *app) statsCmd() *cobra.Command {
	var steps []int
	cmd := &cobra.Command{
		Use:   "stats <file>",
		Short: "Summarise every field of one archive at a few timesteps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := snapshot.Open(args[0])
			if err != nil {
				return err
			}
			defer h.Close()

			stats, err := inspect.Stats(h, steps)
			if err != nil {
				return err
			}
			return inspect.WriteStats(a.stdout, stats)
		},
	}
	cmd.Flags().IntSliceVar(&steps, "steps", nil, "timestep indices (default: first, quarter, half, last)")
	return cmd
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := New(os.Stdout, os.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "h5export:", err)
		if errors.Is(err, context.Canceled) {
			return 130
		}
		return 1
	}
	return 0
}
