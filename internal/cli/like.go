package cli

import (
	"errors"
	"fmt"
	"strconv"

	"devguru-client/internal/api"
	"devguru-client/internal/likes"

	"github.com/spf13/cobra"
)

var errAlerted = errors.New("request failed")

func (a *app) apiClient() (*api.Client, error) {
	opts := []api.Option{api.WithLogger(a.logger)}
	if a.cfg.Site.SessionID != "" {
		opts = append(opts, api.WithSessionCookies(map[string]string{"sessionid": a.cfg.Site.SessionID}))
	}
	return api.New(a.cfg.Site.BaseURL, opts...)
}

func newLikeCmd(a *app) *cobra.Command {
	var unlike bool

	cmd := &cobra.Command{
		Use:       "like question|answer <id>",
		Short:     "Like or unlike a question or an answer",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(api.KindQuestion), string(api.KindAnswer)},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := api.Kind(args[0])
			if kind != api.KindQuestion && kind != api.KindAnswer {
				return fmt.Errorf("unknown kind %q", args[0])
			}
			id, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid id %q", args[1])
			}

			client, err := a.apiClient()
			if err != nil {
				return err
			}

			// --unlike means the post is currently liked, so the toggle sends is_like=false
			view := &ratingPrinter{w: cmd.OutOrStdout()}
			button := likes.NewButton(kind, id, unlike, "", view)
			alerts := &alertPrinter{w: cmd.ErrOrStderr()}

			if err := likes.NewToggler(client, alerts, a.logger).Toggle(cmd.Context(), button); err != nil {
				return errAlerted
			}
			view.print()
			return nil
		},
	}
	cmd.Flags().BoolVar(&unlike, "unlike", false, "remove an existing like")
	return cmd
}

func newMarkCorrectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mark-correct <answerID>",
		Short: "Mark an answer as the correct one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid answer id %q", args[0])
			}
			client, err := a.apiClient()
			if err != nil {
				return err
			}

			marker := likes.NewCorrectMarker(client, &alertPrinter{w: cmd.ErrOrStderr()}, reloadPrinter{w: cmd.OutOrStdout()}, a.logger)
			if err := marker.Mark(cmd.Context(), id); err != nil {
				return errAlerted
			}
			return nil
		},
	}
}
