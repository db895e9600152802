package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/campaigntrip/convertapi/internal/cookie"
	"github.com/campaigntrip/convertapi/internal/resolve"
)

// resolveFlags are shared by the cookie commands.
type resolveFlags struct {
	resolveIDs bool
	accountID  string
	projectID  string
}

func (f *resolveFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&f.resolveIDs, "resolveIds", "r", false, "Use the Convert API to resolve experience and variant ids")
	cmd.Flags().StringVarP(&f.accountID, "accountId", "i", "", "Account ID (or set CONVERT_ACCOUNT_ID)")
	cmd.Flags().StringVarP(&f.projectID, "projectId", "p", "", "Project ID (or set CONVERT_PROJECT_ID)")
}

// maps fetches the experience and variant maps. precheck must have passed.
func (f *resolveFlags) maps(ctx context.Context, a *app) (*resolve.Maps, error) {
	client, err := a.client()
	if err != nil {
		return nil, err
	}

	a.logger.Info("resolving experience/variant ids in cookie")
	maps, err := client.ExperienceVariantMaps(ctx, a.cfg.AccountID, a.cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get experience/variant map: %w", err)
	}
	return maps, nil
}

// precheck fails fast on missing credentials so nothing is decoded or
// fetched when resolution cannot succeed.
func (f *resolveFlags) precheck(a *app) error {
	if !f.resolveIDs {
		return nil
	}
	if f.accountID != "" {
		a.cfg.AccountID = f.accountID
	}
	if f.projectID != "" {
		a.cfg.ProjectID = f.projectID
	}
	return a.cfg.RequireResolveCredentials()
}

func newCookieCmd(a *app) *cobra.Command {
	var flags resolveFlags

	cmd := &cobra.Command{
		Use:   "cookie <cookie> [key]",
		Short: "Decode one field of a _conv_v cookie (default exp)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := cookie.DefaultField
			if len(args) > 1 {
				key = args[1]
			}
			if err := flags.precheck(a); err != nil {
				return err
			}

			data, err := cookie.DecodeField(args[0], key)
			if err != nil {
				return fmt.Errorf("failed to get JSON data from cookie with key %s: %w", key, err)
			}
			if !flags.resolveIDs {
				return a.printJSON(data)
			}

			maps, err := flags.maps(cmd.Context(), a)
			if err != nil {
				return err
			}
			tr := &resolve.Translator{Logger: a.logger}
			translated, err := tr.TranslateField(data, key, maps)
			if err != nil {
				return err
			}
			return a.printJSON(translated)
		},
	}
	flags.register(cmd)
	return cmd
}

func newCookieDataCmd(a *app) *cobra.Command {
	var flags resolveFlags

	cmd := &cobra.Command{
		Use:   "cookie-data <cookie>",
		Short: "Decode a whole _conv_v cookie",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.precheck(a); err != nil {
				return err
			}

			data, err := cookie.Decode(args[0])
			if err != nil {
				return fmt.Errorf("failed to get JSON data from cookie: %w", err)
			}
			if !flags.resolveIDs {
				return a.printJSON(data)
			}

			maps, err := flags.maps(cmd.Context(), a)
			if err != nil {
				return err
			}
			tr := &resolve.Translator{Logger: a.logger, LabelWithID: true}
			translated, err := tr.TranslateCookie(data, maps)
			if err != nil {
				return err
			}
			return a.printJSON(translated)
		},
	}
	flags.register(cmd)
	return cmd
}
