package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/volumeee/zenclaw-sub000/internal/bus"
	"github.com/volumeee/zenclaw-sub000/internal/channel"
	"github.com/volumeee/zenclaw-sub000/internal/gateway"
	"github.com/volumeee/zenclaw-sub000/internal/hooks"
	"github.com/volumeee/zenclaw-sub000/internal/routing"
)

func newServeCmd() *cobra.Command {
	var (
		port    int
		noStdin bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the agent service: router, gateway and bridges",
		Long: "Runs the message router over the event bus. Lines typed on stdin are sent\n" +
			"on the cli channel; the gateway and the NATS bridge start when enabled.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if port > 0 {
				cfg.Gateway.Enabled = true
				cfg.Gateway.Port = port
			}

			rt, err := buildRuntime(cfg, paths, log)
			if err != nil {
				return err
			}
			defer rt.Close()

			var bridge *bus.Bridge
			if cfg.NATS.Enabled {
				nc, err := bus.Connect(cfg.NATS.URL, log)
				if err != nil {
					return err
				}
				defer nc.Drain()
				bridge = bus.NewBridge(nc, cfg.NATS.Subject, log)
			}

			b := bus.New(bus.Config{InboundCapacity: cfg.Bus.InboundCapacity, SubscriberBuffer: cfg.Bus.SubscriberBuffer}, log)

			h := hooks.NewManager(log)
			h.On(hooks.AnyEvent, "log", hooks.LogEvents(log))
			h.On(hooks.AnyEvent, "metrics", rt.metrics.Hook())
			events := b.SubscribeSystem()
			replies := b.SubscribeOutbound()

			chans := channel.NewRegistry(log)
			if !noStdin {
				stdio := channel.NewStdio(cliChannel, cliChat, currentUser(), cmd.InOrStdin(), cmd.OutOrStdout())
				if err := chans.Register(stdio); err != nil {
					return err
				}
			}

			router := routing.NewRouter(rt.agents, b, routing.Config{
				Scope:       cfg.Routing.Scope,
				Concurrency: cfg.Routing.Concurrency,
			}, log)

			// Workers stop when the bus closes, not on the signal, so messages
			// already queued are answered and their replies delivered.
			work := context.WithoutCancel(ctx)
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				defer b.Close()
				return ignoreCanceled(router.Run(work))
			})
			g.Go(func() error { return h.Run(work, events.C()) })
			g.Go(func() error {
				chans.Dispatch(work, replies.C())
				return nil
			})

			if cfg.Gateway.Enabled {
				srv := gateway.New(cfg.Gateway, b, log, gateway.WithMetrics(rt.metrics))
				g.Go(func() error { return srv.Start(gctx) })
			}

			if bridge != nil {
				g.Go(func() error { return bridge.Run(work, b) })
			}

			go chans.Run(gctx, b)

			log.Info().
				Int("agents", rt.agents.Len()).
				Str("provider", rt.provider.Name()).
				Bool("gateway", cfg.Gateway.Enabled).
				Bool("nats", cfg.NATS.Enabled).
				Strs("channels", chans.Names()).
				Msg("zenclaw serving")

			// A second signal after this point kills the process.
			go func() {
				<-gctx.Done()
				stop()
				b.CloseInbound()
			}()

			err = g.Wait()
			if failed := h.Failures(); len(failed) > 0 {
				log.Warn().Interface("failures", failed).Msg("hook handlers failed during the run")
			}

			snap, merr := json.MarshalIndent(rt.metrics.Snapshot(), "", "  ")
			if merr == nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "metrics: %s\n", snap)
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if serr := rt.metrics.Shutdown(shutdownCtx); serr != nil {
				log.Warn().Err(serr).Msg("metrics shutdown")
			}
			return err
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "enable the gateway on this port")
	cmd.Flags().BoolVar(&noStdin, "no-stdin", false, "do not read messages from stdin")
	return cmd
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
