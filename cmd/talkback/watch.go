package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/ent0n29/talkback/internal/chat"
	"github.com/ent0n29/talkback/internal/logx"
	"github.com/ent0n29/talkback/internal/protocol"
	"github.com/ent0n29/talkback/internal/termui"
)

func newWatchCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [session-id]",
		Short: "Follow a session's history as turns complete",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.clientConfig()
			if err != nil {
				return err
			}
			id, err := sessionArg(cfg, args)
			if err != nil {
				return err
			}
			client, err := newClient(cfg)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return watchSession(ctx, client.WatchURL(id), cmd.OutOrStdout())
		},
	}
}

// watchSession prints the feed at url until ctx ends or the server closes
// the connection.
func watchSession(ctx context.Context, url string, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	view := termui.New(out, termui.Options{})
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("watch feed: %w", err)
		}
		ev, err := protocol.ParseServerEvent(raw)
		if err != nil {
			if errors.Is(err, protocol.ErrUnsupportedType) {
				logx.Debugf("watch: skipping %s", raw)
				continue
			}
			logx.Warnf("watch: bad event: %v", err)
			continue
		}
		printEvent(view, out, ev)
	}
}

func printEvent(view *termui.View, out io.Writer, ev any) {
	switch m := ev.(type) {
	case protocol.HistoryUpdated:
		view.ShowHistory(m.ChatHistory)
	case protocol.HistoryCleared:
		view.ShowHistory(chat.History{})
	case protocol.SystemEvent:
		fmt.Fprintf(out, "[%s] %s\n", m.Code, m.SessionID)
	case protocol.ErrorEvent:
		fmt.Fprintf(out, "[error %s] %s\n", m.Code, m.Detail)
	}
}
