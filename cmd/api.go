package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/desertthunder/spotauth/internal/services"
	"github.com/desertthunder/spotauth/internal/shared"
	"github.com/urfave/cli/v3"
)

// execute performs an authenticated GET for a session.
//
// The CLI holds no access token between runs, so one is minted from the session's refresh token
// first; the executor still refreshes once more if the provider rejects it.
func (r *Runner) execute(ctx context.Context, sessionID, path string) (*services.APIResponse, error) {
	provider, err := r.provider()
	if err != nil {
		return nil, err
	}
	refresher, err := r.refresher(ctx)
	if err != nil {
		return nil, err
	}

	pair, err := refresher.Refresh(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("GET request", "path", path, "session", sessionID)

	executor := services.NewExecutor(provider.HTTPClient(), refresher, r.logger)
	return executor.Execute(ctx, http.MethodGet, provider.URL(path), pair.AccessToken, sessionID)
}

// APIGet makes an authenticated GET request to the Web API and prints the body.
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: path", shared.ErrMissingArgument)
	}

	resp, err := r.execute(ctx, cmd.String("session"), path)
	if err != nil {
		return err
	}

	if resp.IsJSON {
		return r.writeJSON(resp.JSONData, cmd.Bool("pretty"))
	}

	return r.writePlain("%s\n", resp.Body)
}

// Me prints the profile of the session's user.
func (r *Runner) Me(ctx context.Context, cmd *cli.Command) error {
	resp, err := r.execute(ctx, cmd.String("session"), "/me")
	if err != nil {
		return err
	}

	var user services.SpotifyUser
	if err := resp.Decode(&user); err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(user, true)
	}

	r.writePlainHeader(user.DisplayName)
	r.writePlain("%s %s\n", r.palette.Help("id:     "), user.ID)
	r.writePlain("%s %s\n", r.palette.Help("email:  "), user.Email)
	r.writePlain("%s %s\n", r.palette.Help("country:"), user.Country)
	r.writePlain("%s %s\n", r.palette.Help("product:"), user.Product)
	return nil
}
