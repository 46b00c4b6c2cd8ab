// Command relaytail joins a match room on a running relay and prints every
// frame the room receives. It is meant for checking a courtside setup from a
// laptop: which tablets join, whether the scoreboard syncs, and what the
// displays are being sent.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/volley-relay/relay/match"
	"github.com/wricardo/volley-relay/relay/protocol"
)

// tailOptions control one relaytail run
type tailOptions struct {
	URL       string
	MatchID   string
	Role      string
	Team      string
	Heartbeat time.Duration
	Raw       bool
	Reconnect bool
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand(os.Stdout).Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "relaytail",
		Usage:     "Follow the traffic of one match room on a volleyball relay",
		ArgsUsage: "<match-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "ws://localhost:8080/ws", Usage: "relay WebSocket URL", Sources: cli.EnvVars("RELAY_URL")},
			&cli.StringFlag{Name: "role", Value: "subscriber", Usage: "role to join as"},
			&cli.StringFlag{Name: "team", Usage: "team for bench roles (home or away)"},
			&cli.DurationFlag{Name: "heartbeat", Value: 25 * time.Second, Usage: "interval between heartbeats, 0 to disable"},
			&cli.BoolFlag{Name: "raw", Usage: "print frames as received"},
			&cli.BoolFlag{Name: "reconnect", Value: true, Usage: "reconnect when the relay goes away"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			matchID := match.CanonicalID(cmd.Args().First())
			if matchID == "" {
				return fmt.Errorf("match id is required")
			}
			return tail(ctx, tailOptions{
				URL:       cmd.String("url"),
				MatchID:   matchID,
				Role:      cmd.String("role"),
				Team:      cmd.String("team"),
				Heartbeat: cmd.Duration("heartbeat"),
				Raw:       cmd.Bool("raw"),
				Reconnect: cmd.Bool("reconnect"),
			}, out)
		},
	}
}

// tail follows the room until ctx is done, reconnecting with backoff
func tail(ctx context.Context, opts tailOptions, out io.Writer) error {
	b := &backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    10 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	for {
		err := follow(ctx, opts, out, b)
		if ctx.Err() != nil {
			return nil
		}
		if !opts.Reconnect {
			return err
		}

		wait := b.Duration()
		slog.Warn("connection lost, reconnecting", "error", err, "in", wait.Round(time.Millisecond))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// follow runs one connection: join, heartbeat, print
func follow(ctx context.Context, opts tailOptions, out io.Writer, b *backoff.Backoff) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, opts.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", opts.URL, err)
	}
	defer conn.Close()
	b.Reset()

	join := map[string]string{
		"type":    protocol.TypeJoinMatch,
		"matchId": opts.MatchID,
		"role":    opts.Role,
	}
	if opts.Team != "" {
		join["team"] = opts.Team
	}
	if err := conn.WriteJSON(join); err != nil {
		return fmt.Errorf("failed to join match %s: %w", opts.MatchID, err)
	}
	slog.Info("following match", "matchId", opts.MatchID, "role", opts.Role, "url", opts.URL)

	done := make(chan struct{})
	defer close(done)
	go keepAlive(ctx, conn, opts.Heartbeat, done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, formatFrame(data, opts.Raw, time.Now()))
	}
}

// keepAlive is the only writer after the join; it sends heartbeats and the
// close frame on shutdown
func keepAlive(ctx context.Context, conn *websocket.Conn, interval time.Duration, done <-chan struct{}) {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
			return
		case t := <-tick:
			frame := map[string]interface{}{"type": protocol.TypeHeartbeat, "timestamp": t.UnixMilli()}
			if err := conn.WriteJSON(frame); err != nil {
				slog.Debug("heartbeat failed", "error", err)
				return
			}
		}
	}
}

// formatFrame renders one relay frame as a log line
func formatFrame(data []byte, raw bool, now time.Time) string {
	stamp := now.Format("15:04:05.000")
	if raw {
		return stamp + " " + string(data)
	}

	var frame protocol.Outbound
	if err := json.Unmarshal(data, &frame); err != nil || frame.Type == "" {
		return stamp + " ? " + string(data)
	}

	fields := []string{stamp, frame.Type}
	add := func(key, value string) {
		if value != "" {
			fields = append(fields, key+"="+value)
		}
	}
	add("match", frame.MatchID)
	add("client", frame.ClientID)
	add("role", string(frame.Role))
	add("team", string(frame.Team))
	add("from", frame.From)
	if frame.ClientCount != nil {
		add("clients", fmt.Sprint(*frame.ClientCount))
	}
	if frame.Deleted != nil {
		add("deleted", fmt.Sprint(*frame.Deleted))
	}
	add("error", frame.Error)
	if len(frame.Action) > 0 {
		add("action", string(frame.Action))
	}
	if data, ok := frame.Data.(map[string]interface{}); ok {
		add("data", summarize(data))
	}
	return strings.Join(fields, " ")
}

// summarize lists the populated top-level keys of a snapshot
func summarize(data map[string]interface{}) string {
	keys := make([]string, 0, len(data))
	for k, v := range data {
		if v != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return "{" + strings.Join(keys, ",") + "}"
}
