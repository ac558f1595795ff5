package cli

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"devguru-client/internal/search"

	"github.com/spf13/cobra"
)

type settledSearch struct {
	q   string
	err error
}

func newSearchCmd(a *app) *cobra.Command {
	var (
		ids     string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Reorder question ids by search relevance",
		Long: `Runs a live search over the question ids given with --ids and prints the
resulting order. Without a query argument every line read from stdin is
treated as the new content of the search field and each reorder is printed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			order, err := parseIDs(ids)
			if err != nil {
				return err
			}
			client, err := a.apiClient()
			if err != nil {
				return err
			}

			out := orderPrinter{w: cmd.OutOrStdout()}
			settled := make(chan settledSearch, 16)

			var view search.View
			if len(args) == 0 {
				view = out
			}
			container := search.NewContainer(order, view)
			live := search.New(client, container,
				search.WithWindow(a.cfg.Search.Debounce),
				search.WithLogger(a.logger),
				search.WithSettled(func(q string, applied bool, err error) {
					select {
					case settled <- settledSearch{q: q, err: err}:
					default:
					}
				}),
			)
			defer live.Close()

			if len(args) == 1 {
				q := strings.TrimSpace(args[0])
				if q != "" {
					live.Input(q)
					if err := waitSettled(cmd.Context(), settled, q, timeout); err != nil {
						return err
					}
				}
				out.Render(container.IDs())
				return nil
			}

			last := ""
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				last = strings.TrimSpace(scanner.Text())
				live.Input(last)
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			if last == "" {
				return nil
			}
			return waitSettled(cmd.Context(), settled, last, timeout)
		},
	}
	cmd.Flags().StringVar(&ids, "ids", "", "comma separated question ids in page order")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "how long to wait for the search response")
	cmd.MarkFlagRequired("ids")
	return cmd
}

// waitSettled blocks until the search for q has been handled.
func waitSettled(ctx context.Context, settled <-chan settledSearch, q string, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case s := <-settled:
			if s.q != q {
				continue
			}
			if s.err != nil {
				return fmt.Errorf("search: %w", s.err)
			}
			return nil
		case <-timer.C:
			return fmt.Errorf("search timed out after %s", timeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func parseIDs(s string) ([]int, error) {
	var ids []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
