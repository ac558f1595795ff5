package cli

import (
	"fmt"
	"strings"

	"devguru-client/internal/tags"

	"github.com/spf13/cobra"
)

func newTagsCmd(a *app) *cobra.Command {
	var (
		choices []string
		picks   []string
	)

	cmd := &cobra.Command{
		Use:   "tags <query>",
		Short: "Filter tag choices the way the ask form does",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}

			picker := tags.NewPicker(choices, nil)
			for _, tag := range picks {
				picker.Toggle(tag)
			}

			w := cmd.OutOrStdout()
			for _, tag := range picker.Search(query) {
				fmt.Fprintln(w, tag)
			}
			if selected := picker.Selected(); len(selected) > 0 {
				fmt.Fprintf(w, "selected: %s\n", strings.Join(selected, ", "))
			}
			a.logger.Debug("Tags filtered", "query", query, "choices", len(choices))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&choices, "tag", nil, "tag choice (repeatable)")
	cmd.Flags().StringSliceVar(&picks, "pick", nil, "toggle selection of a tag (repeatable)")
	return cmd
}
