package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/volumeee/zenclaw-sub000/internal/bus"
	"github.com/volumeee/zenclaw-sub000/internal/domain"
	"github.com/volumeee/zenclaw-sub000/internal/routing"
)

const (
	cliChannel = "cli"
	cliChat    = "local"
)

var (
	promptColor = color.New(color.FgCyan, color.Bold)
	replyColor  = color.New(color.FgGreen)
	eventColor  = color.New(color.FgHiBlack)
	errorColor  = color.New(color.FgRed)
)

func newChatCmd() *cobra.Command {
	var (
		chatID string
		quiet  bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the agent in an interactive session",
		Long: "Starts an interactive session on the cli channel. Type /clear to forget\n" +
			"the conversation and /exit (or Ctrl-D) to leave.",
		Args: cobra.NoArgs,
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
			if !quiet {
				events := b.SubscribeSystem()
				go printEvents(cmd.ErrOrStderr(), events.C())
			}

			router := routing.NewRouter(rt.agents, b, routing.Config{Scope: cfg.Routing.Scope, Concurrency: 1}, log)
			return runChat(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), chatSession{
				router: router,
				clear:  rt.store.ClearHistory,
				scope:  cfg.Routing.Scope,
				chatID: chatID,
			})
		},
	}
	cmd.Flags().StringVar(&chatID, "chat", cliChat, "chat id, selects the conversation to continue")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "hide tool and retry progress")
	return cmd
}

type chatSession struct {
	router *routing.Router
	clear  func(ctx context.Context, sessionKey string) error
	scope  string
	chatID string
}

func (s chatSession) inbound(text string) domain.InboundMessage {
	return domain.InboundMessage{
		Channel:   cliChannel,
		SenderID:  currentUser(),
		ChatID:    s.chatID,
		Content:   text,
		Timestamp: time.Now(),
	}
}

func runChat(ctx context.Context, in io.Reader, out io.Writer, s chatSession) error {
	fmt.Fprintln(out, "zenclaw chat. /clear resets the conversation, /exit quits.")
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for {
		promptColor.Fprint(out, "you> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/clear":
			key := routing.ResolveSessionKey(s.inbound(""), s.scope)
			if err := s.clear(ctx, key); err != nil {
				errorColor.Fprintf(out, "clear failed: %v\n", err)
				continue
			}
			fmt.Fprintln(out, "conversation cleared")
			continue
		}

		reply, err := s.router.HandleInbound(ctx, s.inbound(line))
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if reply.Content == "" {
				reply.Content = err.Error()
			}
			errorColor.Fprintln(out, reply.Content)
			continue
		}
		replyColor.Fprint(out, "zenclaw> ")
		fmt.Fprintln(out, reply.Content)
	}
}

// printEvents renders tool and retry progress until the channel closes.
func printEvents(w io.Writer, events <-chan domain.SystemEvent) {
	for ev := range events {
		if line := describeEvent(ev); line != "" {
			eventColor.Fprintln(w, line)
		}
	}
}

func describeEvent(ev domain.SystemEvent) string {
	switch ev.EventType {
	case domain.EventToolUse:
		return fmt.Sprintf("  · using %v", ev.Data["capability"])
	case domain.EventToolTimeout:
		return fmt.Sprintf("  · %v timed out", ev.Data["capability"])
	case domain.EventLLMRetry:
		return fmt.Sprintf("  · provider retry %v in %vms", ev.Data["attempt"], ev.Data["waitMs"])
	case domain.EventRAGInject:
		return "  · added knowledge context"
	case domain.EventMemoryTruncate:
		return "  · older history trimmed"
	}
	return ""
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "local"
}
