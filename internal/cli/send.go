package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/volumeee/zenclaw-sub000/internal/bus"
	"github.com/volumeee/zenclaw-sub000/internal/domain"
	"github.com/volumeee/zenclaw-sub000/internal/routing"
)

func newSendCmd() *cobra.Command {
	var (
		chatID string
		media  []string
	)
	cmd := &cobra.Command{
		Use:   "send <message>",
		Short: "Send one message to the agent and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := buildRuntime(cfg, paths, log)
			if err != nil {
				return err
			}
			defer rt.Close()

			b := bus.New(bus.Config{InboundCapacity: cfg.Bus.InboundCapacity, SubscriberBuffer: cfg.Bus.SubscriberBuffer}, log)
			defer b.Close()

			router := routing.NewRouter(rt.agents, b, routing.Config{Scope: cfg.Routing.Scope, Concurrency: 1}, log)
			reply, err := router.HandleInbound(ctx, domain.InboundMessage{
				Channel:   cliChannel,
				SenderID:  currentUser(),
				ChatID:    chatID,
				Content:   strings.Join(args, " "),
				Media:     media,
				Timestamp: time.Now(),
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply.Content)
			return nil
		},
	}
	cmd.Flags().StringVar(&chatID, "chat", cliChat, "chat id, selects the conversation to continue")
	cmd.Flags().StringSliceVar(&media, "media", nil, "media references to attach (repeatable)")
	return cmd
}
