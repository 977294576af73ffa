// vndkdep checks the ELF dependencies of a mirrored Android vendor image
// against the VNDK linker namespace policy.
//
// Commands:
//
//	check          Run the dependency check and write reports
//	watch          Re-run the check whenever the mirrored partitions change
//	doctor         Check prerequisites
//	verify-cert    Verify a signed check certificate
//	mcp serve      Start MCP server (JSON-RPC 2.0 over stdio)
//	mcp selftest   Run MCP handshake self-test
//	version        Print version
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ajranjith/vndk-depcheck/internal/config"
	"github.com/ajranjith/vndk-depcheck/internal/support"
)

// Version information (set at build time)
var (
	Version   = "0.3.0"
	BuildDate = "unknown"
)

// errFailed reports a completed run whose verdict is a failure. The
// details have already been printed.
var errFailed = errors.New("check failed")

type app struct {
	flags   config.Flags
	cfg     config.Config
	cfgPath string
	log     *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "vndkdep",
		Short:         "Check vendor partition ELF dependencies against the VNDK policy",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.resolve(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.flags.ConfigPath, "config", "", "config file; .yaml/.yml is YAML, .toml is TOML, anything else JSON")
	root.PersistentFlags().StringVar(&a.flags.MirrorRoot, "mirror", "", "local copy of the device file system")

	root.AddCommand(
		a.newCheckCmd(),
		a.newWatchCmd(),
		a.newDoctorCmd(),
		a.newVerifyCertCmd(),
		a.newMCPCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "vndkdep %s (built %s)\n", Version, BuildDate)
			},
		},
	)
	return root
}

func (a *app) resolve(cmd *cobra.Command) error {
	cfg, path, warnings, err := config.Resolve(a.flags)
	if err != nil {
		return err
	}
	a.cfg, a.cfgPath = cfg, path
	a.log = support.NewLogger(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.JSON)
	for _, w := range warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "WARNING: %s\n", w)
	}
	if path != "" {
		a.log.Debug("config loaded", "path", path)
	}
	return nil
}
