package cli

import (
	"errors"
	"fmt"
	"time"

	"devguru-client/internal/token"

	"github.com/spf13/cobra"
)

var errNoSecret = errors.New("CENTRIFUGE_SECRET is not set")

func (a *app) issuer(ttl time.Duration) (*token.Issuer, error) {
	if a.cfg.Realtime.Secret == "" {
		return nil, errNoSecret
	}
	if ttl <= 0 {
		ttl = a.cfg.Realtime.TokenExpire
	}
	return token.NewIssuer(a.cfg.Realtime.Secret, ttl)
}

func newTokenCmd(a *app) *cobra.Command {
	var (
		userID int64
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint development Centrifugo tokens",
	}
	cmd.PersistentFlags().Int64Var(&userID, "user", 1, "user id placed in the sub claim")
	cmd.PersistentFlags().DurationVar(&ttl, "ttl", 0, "token lifetime (default CENTRIFUGE_TOKEN_EXPIRE)")

	cmd.AddCommand(&cobra.Command{
		Use:   "connection",
		Short: "Mint a connection token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			iss, err := a.issuer(ttl)
			if err != nil {
				return err
			}
			tok, err := iss.Connection(userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "channel <channel>",
		Short: "Mint a channel subscription token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			iss, err := a.issuer(ttl)
			if err != nil {
				return err
			}
			tok, err := iss.Channel(userID, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	})
	return cmd
}
