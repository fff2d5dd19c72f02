package main

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"chat-client/internal/session"
)

func newWhoamiCmd() *cobra.Command {
	var cookie string
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Decode the display identity from a session cookie",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, logger := loadConfig()
			identity, ok := session.NewResolver(logger).ResolveIdentity(cookie)
			if !ok {
				cmd.Println("no identity")
				return nil
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(identity)
		},
	}
	cmd.Flags().StringVar(&cookie, "cookie", "", "Cookie header value, e.g. \"access_token=...\"")
	return cmd
}

func newProbeCmd() *cobra.Command {
	var cookie string
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check a session cookie against the backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger := loadConfig()
			api, creds, err := newBackend(cfg, logger)
			if err != nil {
				return err
			}
			if cookie != "" && creds.Seed(cookie) == 0 {
				return errors.New("no cookies found in --cookie")
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			state := session.NewState(api, logger)
			defer state.Close()
			return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]bool{"logged_in": state.Probe(ctx)})
		},
	}
	cmd.Flags().StringVar(&cookie, "cookie", "", "Cookie header value, e.g. \"access_token=...\"")
	return cmd
}
