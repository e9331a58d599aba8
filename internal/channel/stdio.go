package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/volumeee/zenclaw-sub000/internal/domain"
)

// Stdio is a line-oriented channel: every non-empty input line is one
// message from a single local user, and replies are printed to the writer.
type Stdio struct {
	name   string
	chatID string
	sender string
	in     io.Reader
	mu     sync.Mutex
	out    io.Writer
	prefix *color.Color
}

// NewStdio creates a line channel named name for one chat.
func NewStdio(name, chatID, sender string, in io.Reader, out io.Writer) *Stdio {
	return &Stdio{
		name:   name,
		chatID: chatID,
		sender: sender,
		in:     in,
		out:    out,
		prefix: color.New(color.FgGreen),
	}
}

func (s *Stdio) Name() string { return s.name }

// Start reads lines until input ends or ctx is done. A line that arrives
// after ctx ends is dropped.
func (s *Stdio) Start(ctx context.Context, in Inbound) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errc:
					return err
				default:
					return nil
				}
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if err := in.PublishInbound(ctx, s.message(line)); err != nil {
				return err
			}
		}
	}
}

func (s *Stdio) message(text string) domain.InboundMessage {
	return domain.InboundMessage{
		Channel:   s.name,
		SenderID:  s.sender,
		ChatID:    s.chatID,
		Content:   text,
		Timestamp: time.Now(),
	}
}

// Deliver prints a reply. Replies for other chats of this channel are printed
// with their chat id.
func (s *Stdio) Deliver(_ context.Context, msg domain.OutboundMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	label := "zenclaw> "
	if msg.ChatID != s.chatID {
		label = fmt.Sprintf("zenclaw[%s]> ", msg.ChatID)
	}
	if _, err := s.prefix.Fprint(s.out, label); err != nil {
		return err
	}
	_, err := fmt.Fprintln(s.out, msg.Content)
	return err
}
