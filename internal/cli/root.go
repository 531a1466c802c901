// Package cli implements the virtplan command tree.
//
// Two command families: `plan` manages the plan catalog, `vm` assigns
// plans to libvirt domains. Commands return ExitError so main can map
// failures to meaningful process exit codes.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/virtplan/internal/config"
	"github.com/roach88/virtplan/internal/metadata"
	"github.com/roach88/virtplan/internal/plan"
	"github.com/roach88/virtplan/internal/virt"
)

// RootOptions holds global flags and injectable collaborators.
type RootOptions struct {
	ConfPath string
	Verbose  bool
	Format   string

	// Connector opens the hypervisor connection. Tests override it
	// with a fake; nil means live libvirt.
	Connector virt.Connector

	cfg *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the virtplan CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "virtplan",
		Short: "Assign named resource plans to libvirt domains",
		Long: `virtplan manages named resource plans (flat sets of key/value
constants) and assigns them to libvirt domains by writing a namespaced
XML fragment into the domain's metadata.

Plan definitions live in one YAML file; a domain only ever stores the
name of its assigned plan.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}

			logLevel := slog.LevelWarn
			if opts.Verbose {
				logLevel = slog.LevelDebug
			}
			handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: logLevel,
			})
			slog.SetDefault(slog.New(handler))
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfPath, "conf", "c", "", "path to config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewVMCommand(opts))

	return cmd
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return GetExitCode(err)
	}
	return ExitSuccess
}

// Config loads the configuration once per invocation.
func (o *RootOptions) Config() (*config.Config, error) {
	if o.cfg != nil {
		return o.cfg, nil
	}

	path := o.ConfPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "locate config", err)
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}
	o.cfg = cfg
	return cfg, nil
}

// PlanStore builds the plan store from configuration. No I/O happens
// until the first store operation.
func (o *RootOptions) PlanStore() (*plan.Store, error) {
	cfg, err := o.Config()
	if err != nil {
		return nil, err
	}
	return plan.NewStore(cfg.PlanStorePath()), nil
}

// Codec builds the metadata codec from configuration.
func (o *RootOptions) Codec() (metadata.Codec, error) {
	cfg, err := o.Config()
	if err != nil {
		return metadata.Codec{}, err
	}
	return metadata.Codec{Namespace: cfg.MetadataNamespace, Key: cfg.MetadataKey}, nil
}

// Connect opens the hypervisor connection via the configured connector.
func (o *RootOptions) Connect() (virt.Connection, error) {
	cfg, err := o.Config()
	if err != nil {
		return nil, err
	}
	connect := o.Connector
	if connect == nil {
		connect = virt.Connect
	}
	conn, err := connect(cfg.URI)
	if err != nil {
		return nil, WrapExitError(ExitFailure, "hypervisor connection", err)
	}
	return conn, nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
