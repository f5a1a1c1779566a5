package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotauth/internal/models"
	"github.com/desertthunder/spotauth/internal/services"
	"github.com/desertthunder/spotauth/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	spotify    *services.SpotifyService
	store      models.SessionStore
	closeStore func() error
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	palette    *Palette
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Spotify and Store are built from Config on first use when nil.
type RunnerOpts struct {
	Config     *shared.Config
	Spotify    *services.SpotifyService
	Store      models.SessionStore
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = newHTTPClient(opts.Config)
	}

	return &Runner{
		config:     opts.Config,
		spotify:    opts.Spotify,
		store:      opts.Store,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		palette:    styles,
	}
}

func newHTTPClient(config *shared.Config) *http.Client {
	return &http.Client{Timeout: config.HTTP.Timeout()}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, setupCommand, sessionsCommand, apiCommand, meCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("debug") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
	return ctx, nil
}

// provider returns the Spotify client, building it from config on first use.
func (r *Runner) provider() (*services.SpotifyService, error) {
	if r.spotify != nil {
		return r.spotify, nil
	}

	if err := r.config.Credentials.Spotify.Validate(); err != nil {
		return nil, err
	}

	svc, err := services.NewSpotifyService(r.config.Credentials.Spotify.Map(), services.WithHTTPClient(r.httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Spotify service: %w", err)
	}
	r.spotify = svc
	return svc, nil
}

// sessions returns the configured session store, opening it on first use.
func (r *Runner) sessions(ctx context.Context) (models.SessionStore, error) {
	if r.store != nil {
		return r.store, nil
	}

	store, closeFn, err := openStore(ctx, r.config, r.logger)
	if err != nil {
		return nil, err
	}
	r.store, r.closeStore = store, closeFn
	return store, nil
}

// Close releases the store opened by [Runner.sessions].
func (r *Runner) Close() error {
	if r.closeStore == nil {
		return nil
	}
	closeFn := r.closeStore
	r.closeStore = nil
	return closeFn()
}

func (r *Runner) refresher(ctx context.Context) (*services.TokenRefresher, error) {
	provider, err := r.provider()
	if err != nil {
		return nil, err
	}
	store, err := r.sessions(ctx)
	if err != nil {
		return nil, err
	}
	return services.NewTokenRefresher(store, provider, r.logger), nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("%s\n", r.palette.Title(title))
}
