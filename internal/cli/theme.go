package cli

import (
	"fmt"

	"devguru-client/internal/storage"
	"devguru-client/internal/theme"

	"github.com/spf13/cobra"
)

func newThemeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "theme [show|toggle]",
		Short:     "Show or toggle the stored colour theme",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"show", "toggle"},
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "show"
			if len(args) == 1 {
				action = args[0]
			}
			if action != "show" && action != "toggle" {
				return fmt.Errorf("unknown theme action %q", action)
			}

			kv, closer, err := storage.Open(cmd.Context(), a.storeOptions())
			if err != nil {
				return err
			}
			defer closer.Close()

			sw := theme.NewSwitcher(kv, themePrinter{w: cmd.OutOrStdout()}, a.logger)
			if _, err := sw.Load(cmd.Context()); err != nil {
				return err
			}
			if action == "toggle" {
				_, err = sw.Toggle(cmd.Context())
			}
			return err
		},
	}
}

func (a *app) storeOptions() storage.Options {
	return storage.Options{
		Backend: a.cfg.Store.Backend,
		Path:    a.cfg.Store.Path,
		Redis: storage.RedisOptions{
			URL:          a.cfg.Redis.URI,
			MaxRetries:   a.cfg.Redis.MaxRetries,
			DialTimeout:  a.cfg.Redis.DialTimeout,
			ReadTimeout:  a.cfg.Redis.ReadTimeout,
			WriteTimeout: a.cfg.Redis.WriteTimeout,
		},
		PostgresDSN: a.cfg.Database.DSN(),
	}
}
