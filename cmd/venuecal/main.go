// Package main is a terminal client for the venuecal backend. Each command
// restores the persisted calendar view, applies one action and prints the
// result.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/codr1/venuecal/internal/bookingclient"
	"github.com/codr1/venuecal/internal/calendar"
	"github.com/codr1/venuecal/internal/config"
	"github.com/codr1/venuecal/internal/slots"
	"github.com/codr1/venuecal/internal/viewstate"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app is built once per invocation by the root command.
type app struct {
	cfg     *config.Config
	client  *bookingclient.Client
	session *calendar.Session
	logger  zerolog.Logger
	closers []io.Closer
}

func (a *app) Close() {
	for _, c := range a.closers {
		_ = c.Close()
	}
}

// restore loads the persisted view and fetches what it shows. A failed fetch
// is not fatal: the notice is printed with whatever is held.
func (a *app) restore(ctx context.Context) {
	if err := a.session.Restore(ctx); err != nil {
		a.logger.Debug().Err(err).Msg("Initial fetch failed")
	}
}

type rootOptions struct {
	configPath string
	serverURL  string
	logLevel   string
}

func rootCmd() *cobra.Command {
	var (
		opts rootOptions
		a    = &app{}
	)

	cmd := &cobra.Command{
		Use:           "venuecal",
		Short:         "Venue booking calendar",
		Long:          "venuecal shows and edits venue bookings held by a venuecal server.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			built, err := newApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			*a = *built
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.Close()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&opts.serverURL, "server", "", "Server base URL (overrides the config)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		showCmd(a),
		navigateCmd(a, "next", "Move the view one period forward"),
		navigateCmd(a, "prev", "Move the view one period back"),
		todayCmd(a),
		gotoCmd(a),
		viewCmd(a),
		venuesCmd(a),
		toggleCmd(a),
		selectCmd(a),
		sidebarCmd(a),
		syncCmd(a),
		slotsCmd(a),
		bookCmd(a),
		moveCmd(a),
		deleteCmd(a),
	)
	return cmd
}

func newApp(opts rootOptions, logOut io.Writer) (*app, error) {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.serverURL != "" {
		cfg.Client.BaseURL = opts.serverURL
	}

	level, err := zerolog.ParseLevel(strings.ToLower(opts.logLevel))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q", opts.logLevel)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: logOut}).Level(level).With().Timestamp().Logger()

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	client, err := bookingclient.New(bookingclient.Options{
		BaseURL:        cfg.Client.BaseURL,
		Timeout:        cfg.Client.Timeout,
		RequestsPerSec: cfg.Client.RequestsPerSec,
		MaxRetries:     cfg.Client.MaxRetries,
		Logger:         &logger,
	})
	if err != nil {
		return nil, fmt.Errorf("booking client: %w", err)
	}

	a := &app{cfg: cfg, client: client, logger: logger}
	store, err := a.viewStore()
	if err != nil {
		return nil, err
	}

	a.session, err = calendar.New(client, client, store, calendar.Options{
		Location: loc,
		Logger:   &logger,
		Geometry: slots.Geometry{SlotHeight: cfg.Calendar.SlotHeight, MinHeight: cfg.Calendar.MinHeight},
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}
	return config.Load(path)
}

func (a *app) viewStore() (viewstate.Store, error) {
	vs := a.cfg.ViewState
	switch vs.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     vs.Redis.Addr,
			Password: vs.Redis.Password,
			DB:       vs.Redis.DB,
		})
		a.closers = append(a.closers, client)
		return viewstate.NewRedisStore(client, vs.Owner, vs.TTL), nil
	case "file", "":
		return viewstate.NewFileStore(vs.Dir), nil
	default:
		return nil, fmt.Errorf("unsupported view state backend: %s", vs.Backend)
	}
}
