// Package cli implements the ishmael command line tool.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/ishmael-client/internal/config"
	"github.com/Sternrassler/ishmael-client/pkg/client"
	"github.com/Sternrassler/ishmael-client/pkg/logging"
	"github.com/Sternrassler/ishmael-client/pkg/metrics"
)

// redisPingTimeout bounds the startup connectivity check.
const redisPingTimeout = 2 * time.Second

// app carries the state shared by all commands of one invocation.
type app struct {
	envFile     string
	logLevel    string
	logFormat   string
	metricsFile string

	cfg    *config.Config
	logger zerolog.Logger
	redis  *redis.Client
	client *client.Client
}

// Execute runs the root command and exits non-zero on failure.
func Execute(version string) {
	if err := NewRootCommand(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCommand builds the command tree.
func NewRootCommand(version string) *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "ishmael",
		Short: "Query the Ishmael Insights sports data API",
		Long: `ishmael fetches predictions, games and teams from the Ishmael Insights API.

Settings come from the environment (API_KEY, BASE_URL, REDIS_URL, LEAGUE,
TIMEZONE, TARGET_DATE, OUT_DIR) and an optional dotenv file.`,
		Version:            version,
		SilenceUsage:       true,
		PersistentPreRunE:  a.initialize,
		PersistentPostRunE: a.finish,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.envFile, "env-file", config.DefaultEnvFile, "dotenv file to load when present")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&a.logFormat, "log-format", "", "log format (auto, console, json)")
	flags.StringVar(&a.metricsFile, "metrics-file", "", "write Prometheus metrics to this file after the command")

	root.AddCommand(
		newAuthCommand(a),
		newPredictionsCommand(a),
		newGamesCommand(a),
		newGameCommand(a),
		newTeamsCommand(a),
		newTeamCommand(a),
		newExportCommand(a),
	)

	return root
}

// initialize loads the configuration, sets up logging and creates the client.
func (a *app) initialize(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.envFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.LogFormat = a.logFormat
	}
	a.cfg = cfg

	a.logger = logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Format: logging.Format(cfg.LogFormat),
		Output: cmd.ErrOrStderr(),
	})

	a.redis = a.connectRedis(cmd.Context())

	clientCfg := client.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	clientCfg.Timeout = cfg.Timeout
	clientCfg.Redis = a.redis

	a.client, err = client.New(clientCfg)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	a.logger.Debug().
		Str("root", a.client.Root()).
		Bool("redis", a.redis != nil).
		Msg("Client ready")

	return nil
}

// connectRedis returns nil when REDIS_URL is unset or unreachable; the
// client then runs without caching or shared quota tracking.
func (a *app) connectRedis(ctx context.Context) *redis.Client {
	if a.cfg.RedisURL == "" {
		return nil
	}

	opts, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Invalid REDIS_URL, continuing without cache")
		return nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		a.logger.Warn().Err(err).Str("addr", opts.Addr).Msg("Redis unreachable, continuing without cache")
		rdb.Close()
		return nil
	}

	return rdb
}

// finish writes the metrics textfile and releases connections.
func (a *app) finish(_ *cobra.Command, _ []string) error {
	if a.client != nil {
		a.client.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}

	if a.metricsFile == "" {
		return nil
	}
	if err := metrics.WriteTextfile(a.metricsFile); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	a.logger.Debug().Str("file", a.metricsFile).Msg("Wrote metrics")
	return nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
