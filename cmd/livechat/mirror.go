package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/bytedance/sonic"
	"github.com/samber/do"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wplc/livechat/internal/bootstrap"
	"github.com/wplc/livechat/internal/config"
	mq "github.com/wplc/livechat/internal/infra/queue"
	"github.com/wplc/livechat/internal/modules/model"
)

func newMirrorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Work with the message mirror exchange",
	}
	cmd.AddCommand(newMirrorTailCmd())
	return cmd
}

func newMirrorTailCmd() *cobra.Command {
	var (
		queue    string
		prefetch int
	)

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print mirrored messages as JSON lines",
		Long:  "Binds a durable queue to the message mirror exchange and prints every persisted message event. Messages are acknowledged once written.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMirrorTail(cmd.Context(), cmd.OutOrStdout(), queue, prefetch)
		},
	}

	cmd.Flags().StringVar(&queue, "queue", "livechat.mirror.tail", "durable queue name")
	cmd.Flags().IntVar(&prefetch, "prefetch", 10, "unacknowledged deliveries in flight")
	return cmd
}

func runMirrorTail(ctx context.Context, out io.Writer, queue string, prefetch int) error {
	inj := bootstrap.BuildContainer()
	cfg := do.MustInvoke[*config.Config](inj)
	log := do.MustInvoke[*zap.Logger](inj)
	if !cfg.RabbitMQ.Enabled {
		return errors.New("rabbitmq is disabled (set LIVECHAT_RABBITMQ_ENABLED=true)")
	}

	conn, err := do.MustInvoke[mq.DialFunc](inj)()
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	defer conn.Close()

	consumer, err := mq.NewConsumer(conn, queue, prefetch, log, cfg)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var mu sync.Mutex
	err = consumer.Handle(ctx, func(_ context.Context, body []byte) error {
		err := printMirrorEvent(&mu, out, body)
		if errors.Is(err, errMalformedEvent) {
			// Requeueing would redeliver it forever.
			log.Warn("dropping malformed mirror event", zap.Error(err))
			return nil
		}
		return err
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

var errMalformedEvent = errors.New("malformed message event")

// printMirrorEvent writes the event as one compact JSON line.
func printMirrorEvent(mu *sync.Mutex, out io.Writer, body []byte) error {
	var ev model.MessageEvent
	if err := sonic.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: %v", errMalformedEvent, err)
	}
	line, err := sonic.MarshalString(ev)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	_, err = fmt.Fprintln(out, line)
	return err
}
