package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/lightsched/lightsched-go/internal/config"
	"github.com/lightsched/lightsched-go/internal/logging"
	"github.com/lightsched/lightsched-go/pkg/lightsched"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/thediveo/enumflag"
	"go.opentelemetry.io/otel/baggage"
)

type rootPersistentFlags struct {
	server   string
	port     int
	timeout  int
	interval time.Duration
}

// connect opens a gateway and fails when the scheduler cannot be reached.
func (f *rootPersistentFlags) connect(ctx context.Context) (*lightsched.ComputingCluster, error) {
	cluster := lightsched.NewComputingCluster(ctx, f.server, f.port,
		lightsched.WithTimeout(time.Duration(f.timeout)*time.Second))
	if !cluster.IsConnected() {
		return nil, fmt.Errorf("unable to connect to the scheduler at %s", cluster.GetServerAddr())
	}
	return cluster, nil
}

func NewRootCommand(commit string) *cobra.Command {
	if commit == "" {
		commit = "unknown"
	}

	defaults, configErr := config.GetConfig()
	if configErr != nil {
		defaults = config.ConfigSpec{Server: "127.0.0.1", Port: lightsched.DefaultPort, Timeout: 100, Interval: "1s"}
	}
	interval, err := defaults.PollInterval()
	if err != nil {
		interval = lightsched.DefaultPollInterval
	}

	rootFlags := &rootPersistentFlags{}
	logFormat := logging.Unspecified
	logLevel := zerolog.InfoLevel
	baggageEntries := make(map[string]string)

	cmd := &cobra.Command{
		Use:          "lightsched",
		Short:        "A command-line interface to a lightsched scheduler.",
		Long:         `A command-line interface to a lightsched scheduler. Submits jobs and inspects jobs, tasks and nodes.`,
		Version:      commit,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configErr != nil {
				return configErr
			}

			logger := logging.Configure(cmd.ErrOrStderr(), logLevel, logFormat).
				With().Str("command", cmd.CommandPath()).Logger()
			log.Logger = logger

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = logger.WithContext(ctx)

			if len(baggageEntries) > 0 {
				b := baggage.Baggage{}
				for k, v := range baggageEntries {
					mem, err := baggage.NewMember(k, v)
					if err != nil {
						return fmt.Errorf("invalid baggage entry: %w", err)
					}
					b, err = b.SetMember(mem)
					if err != nil {
						return fmt.Errorf("invalid baggage entry: %w", err)
					}
				}
				ctx = baggage.ContextWithBaggage(ctx, b)
			}

			cmd.SetContext(ctx)
			return nil
		},
	}

	// hide --help as a flag in the usage output
	cmd.PersistentFlags().BoolP("help", "h", false, "Print usage")
	cmd.PersistentFlags().Lookup("help").Hidden = true

	cmd.PersistentFlags().StringVarP(&rootFlags.server, "server", "s", defaults.Server, "The scheduler host. Defaults to $LIGHTSCHED_SERVER.")
	cmd.PersistentFlags().IntVarP(&rootFlags.port, "port", "p", defaults.Port, "The scheduler REST port. Defaults to $LIGHTSCHED_PORT.")
	cmd.PersistentFlags().IntVar(&rootFlags.timeout, "timeout", defaults.Timeout, "The request timeout in seconds. Defaults to $LIGHTSCHED_TIMEOUT.")
	cmd.PersistentFlags().DurationVar(&rootFlags.interval, "interval", interval, "The poll interval of --watch and watch commands. Defaults to $LIGHTSCHED_INTERVAL.")

	cmd.PersistentFlags().Var(
		enumflag.New(&logLevel, "level", logging.LevelIds, enumflag.EnumCaseInsensitive),
		"log-level",
		"specifies logging level. Can be one of: 'trace', 'debug', 'info', 'warn', or 'error'.")

	cmd.PersistentFlags().Var(
		enumflag.New(&logFormat, "format", logging.FormatIds, enumflag.EnumCaseInsensitive),
		"log-format",
		"specifies logging format. Can be one of: 'pretty', 'plain', or 'json'. The default is 'pretty' unless stderr is redirected, in which case it will be 'plain'.")

	cmd.PersistentFlags().StringToStringVar(&baggageEntries, "baggage", nil, "adds key=value as an HTTP `baggage` header on all requests. Can be specified multiple times.")

	cobra.EnableCommandSorting = false

	cmd.AddCommand(newPingCommand(rootFlags))
	cmd.AddCommand(newSubmitCommand(rootFlags))
	cmd.AddCommand(newJobCommand(rootFlags))
	cmd.AddCommand(newTaskCommand(rootFlags))
	cmd.AddCommand(newNodeCommand(rootFlags))

	return cmd
}

func newPingCommand(rootFlags *rootPersistentFlags) *cobra.Command {
	return &cobra.Command{
		Use:                   "ping",
		Short:                 "Check that the scheduler is reachable and healthy",
		DisableFlagsInUseLine: true,
		Args:                  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cluster, err := rootFlags.connect(cmd.Context())
			if err != nil {
				return err
			}
			if err := cluster.Ping(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "cluster %s at %s is healthy\n", cluster.GetName(), cluster.GetServerAddr())
			return nil
		},
	}
}
