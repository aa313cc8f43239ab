package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mhoffs/skoda-watch/internal/auth"
	"github.com/mhoffs/skoda-watch/internal/cli"
	"github.com/mhoffs/skoda-watch/internal/config"
	"github.com/mhoffs/skoda-watch/internal/coordinator"
	"github.com/mhoffs/skoda-watch/internal/myskoda"
)

const version = "0.1.0"

const usage = `Usage: skoda-watch [flags] <command> [args]

Commands:
  status               Fetch and print the current vehicle state once
  watch                Stream state updates until interrupted
  lock | unlock        Lock or unlock the vehicle (requires s-pin)
  start-charging | stop-charging
  charge-limit <percent>
  start-climate <temperature> | stop-climate
  start-window-heating | stop-window-heating
  start-aux-heating <minutes> | stop-aux-heating (requires s-pin)
  version              Print the version

Flags:
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := flag.NewFlagSet("skoda-watch", flag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}

	vin := flags.String("vin", "", "Vehicle identification number")
	format := flags.String("format", "text", "Output format (json, yaml, text, table)")
	pretty := flags.Bool("pretty", false, "Pretty-print JSON output")
	readOnly := flags.Bool("read-only", false, "Disable all remote commands")
	pollInterval := flags.Duration("poll-interval", 0, "Scheduled refresh period (default 30m)")
	verbose := flags.Bool("verbose", false, "Enable debug logging")
	quiet := flags.Bool("quiet", false, "Log errors only")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	if flags.Arg(0) == "version" {
		fmt.Printf("skoda-watch version %s\n", version)
		return 0
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 1
	}

	// CLI flags take highest precedence
	if *vin != "" {
		cfg.VIN = *vin
	}
	if *readOnly {
		cfg.ReadOnly = true
	}
	if *pollInterval != 0 {
		cfg.PollInterval = *pollInterval
	}
	if *verbose {
		cfg.Verbose = true
	}
	if *quiet {
		cfg.Quiet = true
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 1
	}

	logger := newLogger(cfg.Verbose, cfg.Quiet)
	defer func() { _ = logger.Sync() }()

	client, err := newAPIClient(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	command := flags.Arg(0)
	if command == "" {
		command = "status"
	}

	ctx := context.Background()

	switch command {
	case "status":
		coord := newCoordinator(client, noEvents{}, logger, cfg)
		cmd := cli.NewStatusCommand(coord, os.Stdout)
		err = cmd.Run(ctx, cli.StatusOptions{
			Format: cli.OutputFormat(*format),
			Pretty: *pretty,
		})

	case "watch":
		var stream coordinator.EventSource
		stream, err = newEventStream(ctx, client, cfg, logger)
		if err != nil {
			logger.Warn("event stream unavailable, polling only", zap.Error(err))
			stream = noEvents{}
		}
		coord := newCoordinator(client, stream, logger, cfg)
		cmd := cli.NewWatchCommand(coord, os.Stdout)
		err = cmd.Run(ctx, cli.WatchOptions{
			Format: cli.OutputFormat(*format),
			Pretty: *pretty,
		})

	default:
		coord := newCoordinator(client, noEvents{}, logger, cfg)
		dispatch := cli.NewCommandDispatch(coord, os.Stdout)
		err = dispatch.Run(ctx, command, flags.Args()[1:])
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// newLogger builds a console logger on stderr so formatted state output on
// stdout stays machine-readable.
func newLogger(verbose, quiet bool) *zap.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	if quiet {
		level = zapcore.ErrorLevel
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// newAPIClient builds the REST client from either a fixed token or the
// credentials cache.
func newAPIClient(cfg *config.Config) (myskoda.Client, error) {
	if cfg.AccessToken != "" {
		return myskoda.NewHTTPClient(myskoda.StaticToken(cfg.AccessToken)), nil
	}

	cache, err := auth.NewCredentialsCache(cfg.TokenCache)
	if err != nil {
		return nil, fmt.Errorf("open credentials cache: %w", err)
	}
	return myskoda.NewHTTPClient(auth.NewSource(cache)), nil
}

func newCoordinator(client myskoda.Client, stream coordinator.EventSource, logger *zap.Logger, cfg *config.Config) *coordinator.Coordinator {
	excluded := make([]myskoda.Capability, 0, len(cfg.ExcludedCapabilities))
	for _, c := range cfg.ExcludedCapabilities {
		excluded = append(excluded, myskoda.Capability(c))
	}

	return coordinator.New(client, stream, clock.New(), logger, consoleIssues{}, coordinator.Options{
		VIN:                  cfg.VIN,
		PollInterval:         cfg.PollInterval,
		Cooldown:             cfg.Cooldown,
		ReadOnly:             cfg.ReadOnly,
		SPIN:                 cfg.SPIN,
		ExcludedCapabilities: excluded,
	})
}

// newEventStream resolves the broker identity and builds the MQTT stream.
// The broker scopes topics by user id, so the profile is fetched up front.
func newEventStream(ctx context.Context, client myskoda.Client, cfg *config.Config, logger *zap.Logger) (*myskoda.EventStream, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	user, err := client.GetUser(fetchCtx)
	if err != nil {
		return nil, fmt.Errorf("resolve user for event stream: %w", err)
	}

	return myskoda.NewEventStream(myskoda.EventStreamConfig{
		BrokerURL: cfg.BrokerURL,
		ClientID:  "skoda-watch-" + cfg.VIN,
		UserID:    user.ID,
		VIN:       cfg.VIN,
	}, logger.Named("mqtt"))
}

// noEvents is the EventSource used when no broker connection is wanted; the
// coordinator then works in polling-only mode.
type noEvents struct{}

func (noEvents) Connect(ctx context.Context) error { return nil }

func (noEvents) Connected() bool { return true }

func (noEvents) Events() <-chan *myskoda.Event { return nil }

// consoleIssues prints actionable problems to stderr once per process run.
type consoleIssues struct{}

func (consoleIssues) SPINInvalid() {
	fmt.Fprintln(os.Stderr, "The configured s-pin was rejected; check SKODA_SPIN or spin in config.yaml.")
}

func (consoleIssues) TermsNotAccepted() {
	fmt.Fprintln(os.Stderr, "MySkoda terms of service not accepted; open the MySkoda app and accept them.")
}
