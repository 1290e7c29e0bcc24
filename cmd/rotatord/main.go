package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"rotator/config"
	"rotator/daemon"
	"rotator/internal/adapter/docker"
	"rotator/internal/logging"

	"github.com/spf13/cobra"
)

func main() {
	if err := logging.Configure(logging.LevelInfo, logging.FormatText); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := rootCmd().Execute(); err != nil {
		slog.Error("Command failed.", "err", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	debug      bool
	dataRoot   string
	servers    []string
	logFormat  string
}

// load layers the config file, .env, the environment and flags, then
// configures logging from the result.
func (f *globalFlags) load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if err := config.LoadDotEnv(); err != nil {
		return config.Config{}, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("data-root") {
		cfg.DataRoot = f.dataRoot
	}
	if flags.Changed("servers") {
		cfg.Servers = f.servers
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = f.logFormat
	}
	if f.debug {
		cfg.Log.Level = logging.LevelDebug
	}

	if err := logging.Configure(cfg.Log.Level, cfg.Log.Format); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func rootCmd() *cobra.Command {
	var f globalFlags

	cmd := &cobra.Command{
		Use:          "rotatord",
		Short:        "Rotate scenarios on exited game servers and restart hung ones",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := docker.NewRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.WaitReady(ctx); err != nil {
				return err
			}
			return daemon.Run(ctx, cfg, rt)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "Path to a YAML config file")
	pf.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	pf.StringVar(&f.dataRoot, "data-root", "/", "Directory holding the server<N> config directories")
	pf.StringSliceVar(&f.servers, "servers", nil, "Server container names (overrides "+config.EnvServerNames+")")
	pf.StringVar(&f.logFormat, "log-format", logging.FormatText, "Log format: text or json")

	cmd.AddCommand(statusCmd(&f))
	return cmd
}
