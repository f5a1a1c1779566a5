package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/desertthunder/spotauth/internal/server"
	"github.com/desertthunder/spotauth/internal/services"
	"github.com/desertthunder/spotauth/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

// Serve runs the authorization server until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := r.provider()
	if err != nil {
		return err
	}
	store, err := r.sessions(ctx)
	if err != nil {
		return err
	}

	srv := server.New(server.Options{
		Config:    r.config.Server,
		Store:     store,
		Provider:  provider,
		Resolver:  r.resolver(),
		Refresher: services.NewTokenRefresher(store, provider, r.logger),
		Logger:    r.logger,
	})

	return r.run(ctx, srv, cmd.Bool("open"))
}

func (r *Runner) resolver() services.EndpointResolver {
	if r.config.Tunnel.Enabled {
		r.logger.Info("resolving callback URL from ngrok", "api", r.config.Tunnel.APIURL)
		return services.NewNgrokResolver(r.config.Tunnel.APIURL, r.httpClient)
	}
	return services.StaticEndpoint(r.config.Credentials.Spotify.RedirectURI)
}

// run serves until ctx is done or the server fails, then shuts down.
func (r *Runner) run(ctx context.Context, srv *server.Server, open bool) error {
	errCh, err := srv.Start(ctx)
	if err != nil {
		return fmt.Errorf("server startup failed: %w", err)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case err, ok := <-errCh:
			if ok && err != nil {
				r.logger.Error("server runtime error", "error", err)
				return fmt.Errorf("server: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	loginURL := "http://" + browsable(srv.Addr()) + "/login"
	r.writePlain("%s %s\n", r.palette.OK("✓ Listening:"), loginURL)
	if open {
		g.Go(func() error {
			if err := shared.OpenBrowser(loginURL); err != nil {
				r.logger.Warn("could not open browser", "error", err)
			}
			return nil
		})
	}

	runtimeErr := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown: %w", err))
	}
	return errors.Join(errs...)
}

// browsable maps a wildcard listen address to loopback.
func browsable(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
