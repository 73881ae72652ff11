package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/loxd/internal/actuator"
	"github.com/dokzlo13/loxd/internal/adapter"
	"github.com/dokzlo13/loxd/internal/catalog"
	"github.com/dokzlo13/loxd/internal/config"
	"github.com/dokzlo13/loxd/internal/loxone"
)

func main() {
	// Support both -c and --config for config path
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.StringVar(&configPath, "c", "config.yaml", "Path to configuration file (shorthand)")
	action := flag.String("action", "", "Action to perform: change or list")
	name := flag.String("name", "", "Control name to address")
	state := flag.String("state", "", "Target state for a change action")
	room := flag.String("room", "", "Room name to address")
	catType := flag.String("type", "", "Category kind to address (e.g. lights, room)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logging
	setupLogging(cfg.Log.GetLevel(), cfg.Log.UseJSON, cfg.Log.Colors)

	logger := log.Logger
	client := loxone.NewClient(
		cfg.Miniserver.Host,
		cfg.Miniserver.User,
		cfg.Miniserver.Password,
		cfg.Miniserver.Timeout.Duration(),
		logger,
	)

	loader := func(ctx context.Context) (*catalog.Catalog, error) {
		return catalog.Load(ctx, client, logger)
	}

	adp := adapter.New(loader, actuator.New(client, logger), stdoutReporter{}, logger)

	params := adapter.Params{
		Host:        cfg.Miniserver.Host,
		User:        cfg.Miniserver.User,
		Password:    cfg.Miniserver.Password,
		Action:      *action,
		ControlName: *name,
		ControlRoom: *room,
		ControlType: *catType,
		NewState:    *state,
	}

	if err := adp.Run(context.Background(), params); err != nil {
		log.Fatal().Err(err).Msg("Request rejected")
	}
}

// stdoutReporter prints the result record as JSON, the way a plugin host
// would consume it.
type stdoutReporter struct{}

func (stdoutReporter) Report(result adapter.Result) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		log.Error().Err(err).Msg("Failed to encode result")
	}
}

func setupLogging(level string, useJSON bool, colors bool) {
	// ISO 8601 format with timezone
	zerolog.TimeFieldFormat = time.RFC3339

	if useJSON {
		// JSON output for production
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		// Text output (with optional colors)
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			NoColor:    !colors,
		})
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
