package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wplc/livechat/internal/delivery"
	"github.com/wplc/livechat/internal/infra/httpclient"
	"github.com/wplc/livechat/internal/infra/logger"
	"github.com/wplc/livechat/internal/infra/relay"
	"github.com/wplc/livechat/internal/modules/model"
)

type watchOptions struct {
	baseURL     string
	natsServers string
	natsPrefix  string
	timeout     time.Duration
}

func newWatchCmd() *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Chat as a visitor from the terminal",
		Long: `Opens a visitor session against a running server, prints the history and
follows new messages over the server's websocket relay or NATS. Lines typed
on stdin are sent as messages;
"/retry <id>" resends a failed one and "/sync" refetches missed messages.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.baseURL, "url", "http://127.0.0.1:8029", "server base URL")
	cmd.Flags().StringVar(&opts.natsServers, "nats", "", "NATS servers for realtime events; empty disables following")
	cmd.Flags().StringVar(&opts.natsPrefix, "nats-prefix", "livechat", "subject prefix used by the server")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "HTTP request timeout")
	return cmd
}

// printer serializes terminal output between the stdin loop and NATS callbacks.
type printer struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *printer) entry(e delivery.Entry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	name := e.SenderName
	if name == "" {
		name = string(e.SenderType)
	}
	mark := ""
	switch e.Status {
	case delivery.StatusPending:
		mark = " …"
	case delivery.StatusFailed:
		mark = " [failed: /retry " + e.LocalID + "]"
	}
	fmt.Fprintf(p.out, "[%s] %s: %s%s\n", e.CreatedAt, name, e.Content, mark)
}

func (p *printer) line(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format+"\n", args...)
}

func runWatch(ctx context.Context, in io.Reader, out io.Writer, opts watchOptions) error {
	log, err := logger.New("warn")
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := httpclient.NewChatClient(opts.baseURL, opts.timeout, log)
	info, err := client.Bootstrap(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	p := &printer{out: out}
	conv := delivery.NewConversation(info.SessionID, model.SenderUser, client, log)
	if err := conv.Open(ctx); err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	p.line("Session %s (Ctrl+C to quit)", info.SessionID)
	for _, e := range conv.Entries() {
		p.entry(e)
	}

	switch {
	case info.RealtimeEnabled && info.RelayDriver == "websocket":
		go followSocket(ctx, client, conv, p, info, log)
	case opts.natsServers != "":
		nc, err := followRealtime(ctx, conv, p, info.SessionChannel, opts, log)
		if err != nil {
			return err
		}
		defer func() { _ = nc.Drain() }()
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case text, ok := <-lines:
			if !ok {
				return nil
			}
			handleInput(ctx, conv, p, strings.TrimSpace(text))
		}
	}
}

func handleInput(ctx context.Context, conv *delivery.Conversation, p *printer, text string) {
	switch {
	case text == "":
		return
	case text == "/sync":
		syncAndPrint(ctx, conv, p)
	case strings.HasPrefix(text, "/retry "):
		e, err := conv.Retry(ctx, strings.TrimSpace(strings.TrimPrefix(text, "/retry ")))
		if err != nil {
			p.line("retry: %v", err)
			return
		}
		printSent(conv, p, e)
	default:
		if conv.ChatClosed() {
			p.line("The chat was closed by the operator.")
			return
		}
		e, err := conv.Send(ctx, text)
		if err != nil {
			p.entry(e)
			return
		}
		printSent(conv, p, e)
	}
}

// printSent prints the acknowledged entry and the system reply that may follow it.
func printSent(conv *delivery.Conversation, p *printer, e delivery.Entry) {
	p.entry(e)
	entries := conv.Entries()
	for i, cur := range entries {
		if cur.LocalID == e.LocalID && i+1 < len(entries) && entries[i+1].SenderType == model.SenderSystem {
			p.entry(entries[i+1])
		}
	}
}

func syncAndPrint(ctx context.Context, conv *delivery.Conversation, p *printer) {
	added, err := conv.Sync(ctx)
	if err != nil {
		p.line("sync: %v", err)
		return
	}
	entries := conv.Entries()
	for _, e := range entries[len(entries)-added:] {
		p.entry(e)
	}
}

func followRealtime(ctx context.Context, conv *delivery.Conversation, p *printer, channel string, opts watchOptions, log *zap.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(opts.natsServers,
		nats.Name("livechat-watch"),
		nats.MaxReconnects(-1),
		nats.ReconnectHandler(func(*nats.Conn) {
			// Events published while disconnected are lost; fetch them over HTTP.
			syncAndPrint(ctx, conv, p)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	for _, event := range []string{model.EventNewMessage, model.EventChatClosed} {
		if _, err := nc.Subscribe(relay.Subject(opts.natsPrefix, channel, event), func(m *nats.Msg) {
			var env relay.Envelope
			if err := sonic.Unmarshal(m.Data, &env); err != nil {
				log.Warn("decode realtime envelope", zap.Error(err))
				return
			}
			applyEvent(conv, p, env.Event, env.Data, log)
		}); err != nil {
			nc.Close()
			return nil, err
		}
	}
	return nc, nil
}

const (
	socketRetryMin = 500 * time.Millisecond
	socketRetryMax = 30 * time.Second
)

// followSocket reads the websocket relay until ctx ends, redialing with backoff and syncing
// over HTTP after every reconnect.
func followSocket(ctx context.Context, client *httpclient.ChatClient, conv *delivery.Conversation, p *printer, info *httpclient.BootstrapInfo, log *zap.Logger) {
	wait := socketRetryMin
	for attempt := 0; ; attempt++ {
		sub, err := client.Subscribe(ctx, info.RelayHost, info.SessionID, info.SessionChannel)
		if err == nil {
			wait = socketRetryMin
			if attempt > 0 {
				syncAndPrint(ctx, conv, p)
			}
			stop := context.AfterFunc(ctx, func() { _ = sub.Close() })
			for {
				f, err := sub.Next()
				if err != nil {
					break
				}
				applyEvent(conv, p, f.Event, f.Data, log)
			}
			stop()
			_ = sub.Close()
		} else {
			log.Warn("relay subscribe", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		wait = min(wait*2, socketRetryMax)
	}
}

// applyEvent feeds one relay event into the conversation and prints what it changed.
func applyEvent(conv *delivery.Conversation, p *printer, event string, data []byte, log *zap.Logger) {
	switch event {
	case model.EventNewMessage:
		var payload model.RealtimePayload
		if err := sonic.Unmarshal(data, &payload); err != nil {
			log.Warn("decode realtime message", zap.Error(err))
			return
		}
		if conv.Receive(payload) {
			entries := conv.Entries()
			p.entry(entries[len(entries)-1])
		}
	case model.EventChatClosed:
		var payload model.ClosePayload
		if err := sonic.Unmarshal(data, &payload); err != nil {
			log.Warn("decode chat closed", zap.Error(err))
			return
		}
		conv.MarkClosed(payload)
		p.line("The chat was closed by %s.", payload.ClosedBy)
	}
}
