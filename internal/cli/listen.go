package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"devguru-client/internal/forward"
	"devguru-client/internal/realtime"

	"github.com/spf13/cobra"
)

var errConnectFailed = errors.New("realtime connection failed")

type channelArg struct {
	name  string
	token string
}

// parseChannel splits "name[:token]".
func parseChannel(s string) (channelArg, error) {
	name, tok, _ := strings.Cut(s, ":")
	if name == "" {
		return channelArg{}, fmt.Errorf("invalid channel %q", s)
	}
	return channelArg{name: name, token: tok}, nil
}

func newListenCmd(a *app) *cobra.Command {
	var (
		channels []string
		userID   int64
	)

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Subscribe to realtime channels and print publications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(channels) == 0 {
				return errors.New("at least one --channel is required")
			}
			subs := make([]channelArg, 0, len(channels))
			for _, raw := range channels {
				ch, err := parseChannel(raw)
				if err != nil {
					return err
				}
				subs = append(subs, ch)
			}

			connToken := a.cfg.Realtime.Token
			if a.cfg.Realtime.Secret != "" {
				iss, err := a.issuer(0)
				if err != nil {
					return err
				}
				if connToken == "" {
					if connToken, err = iss.Connection(userID); err != nil {
						return err
					}
				}
				for i := range subs {
					if subs[i].token != "" {
						continue
					}
					if subs[i].token, err = iss.Channel(userID, subs[i].name); err != nil {
						return err
					}
				}
			}

			transport := realtime.NewWSTransport()
			transport.Logger = a.logger
			if a.cfg.Realtime.ReplyTimeout > 0 {
				transport.ReplyTimeout = a.cfg.Realtime.ReplyTimeout
			}
			client := realtime.New(a.cfg.Realtime.URL, connToken,
				realtime.WithTransport(transport),
				realtime.WithLogger(a.logger),
			)

			if a.cfg.Kafka.Enabled() {
				fwd, err := forward.Dial(a.cfg.Kafka.Brokers, a.cfg.Kafka.Topic, a.cfg.Kafka.ClientID, a.logger)
				if err != nil {
					return err
				}
				defer fwd.Close()
				client.OnEvent(fwd.Listener())
				a.logger.Info("Forwarding publications", "brokers", a.cfg.Kafka.Brokers, "topic", a.cfg.Kafka.Topic)
			}

			dropped := make(chan struct{})
			var dropOnce sync.Once
			client.OnEvent(func(ev realtime.Event) {
				if ev.Type == realtime.EventDisconnected {
					dropOnce.Do(func() { close(dropped) })
				}
			})

			ctx := cmd.Context()
			client.Connect(ctx)
			if client.State() != realtime.StateConnected {
				return errConnectFailed
			}

			out := &lineWriter{w: cmd.OutOrStdout()}
			for _, ch := range subs {
				name := ch.name
				err := client.Subscribe(ctx, name, ch.token, realtime.Handlers{
					OnPublication: func(payload json.RawMessage) {
						out.printf("%s %s\n", name, payload)
					},
				})
				if err != nil {
					client.Disconnect()
					return err
				}
			}

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(quit)

			select {
			case <-quit:
				a.logger.Info("Shutting down...")
			case <-ctx.Done():
			case <-dropped:
				a.logger.Warn("Connection closed by server")
				return nil
			}

			done := make(chan struct{})
			go func() {
				client.Disconnect()
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(30 * time.Second):
				a.logger.Warn("Timeout waiting for disconnect")
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&channels, "channel", "c", nil, "channel to subscribe, as name or name:token (repeatable)")
	cmd.Flags().Int64Var(&userID, "user", 1, "user id for minted tokens when CENTRIFUGE_SECRET is set")
	return cmd
}

// lineWriter serialises writes coming from the transport read loop.
type lineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lineWriter) printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, format, args...)
}
