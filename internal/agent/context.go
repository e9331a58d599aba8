package agent

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/volumeee/zenclaw-sub000/internal/domain"
)

// TruncationNote replaces history that did not fit the character budget.
const TruncationNote = "[Note: older history truncated to fit the context window]"

// assemble builds the initial message list: system prompt (plus retrieved
// knowledge), the budgeted history and the new user message.
func (a *Agent) assemble(ctx context.Context, r *run, userMessage string, media []string) ([]domain.Message, error) {
	history, err := a.store.GetHistory(ctx, r.sessionKey, a.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	system := a.cfg.SystemPrompt
	if a.cfg.RAGResults > 0 {
		snippet, err := a.store.SearchKnowledge(ctx, userMessage, a.cfg.RAGResults)
		if err != nil {
			return nil, fmt.Errorf("searching knowledge: %w", err)
		}
		if strings.TrimSpace(snippet) != "" {
			system += "\n\n" + snippet
			r.emit(domain.EventRAGInject, map[string]any{"resultChars": utf8.RuneCountInString(snippet)})
			a.log.Debug().Str("session", r.sessionKey).Int("chars", len(snippet)).Msg("knowledge injected")
		}
	}

	kept, keptChars, truncated := FitHistory(history, a.cfg.HistoryCharBudget)

	messages := make([]domain.Message, 0, len(kept)+3)
	messages = append(messages, domain.SystemMessage(system))
	if truncated {
		messages = append(messages, domain.SystemMessage(TruncationNote))
		r.emit(domain.EventMemoryTruncate, map[string]any{"keptChars": keptChars})
		a.log.Debug().
			Str("session", r.sessionKey).
			Int("kept", len(kept)).
			Int("available", len(history)).
			Int("keptChars", keptChars).
			Msg("history truncated")
	}
	messages = append(messages, kept...)
	messages = append(messages, domain.UserMessage(userMessage, media...))
	return messages, nil
}

// FitHistory keeps the newest messages whose combined content stays within
// budget characters, in chronological order. The first message that would
// cross the budget and everything older is dropped, and truncated reports
// that this happened. Tool results left at the front without their request
// are dropped as well.
func FitHistory(history []domain.Message, budget int) (kept []domain.Message, keptChars int, truncated bool) {
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		n := utf8.RuneCountInString(history[i].Content)
		if keptChars+n > budget {
			truncated = true
			break
		}
		keptChars += n
		start = i
	}

	kept = slices.Clone(history[start:])
	for len(kept) > 0 && kept[0].Role == domain.RoleTool {
		keptChars -= utf8.RuneCountInString(kept[0].Content)
		kept = kept[1:]
	}
	return kept, keptChars, truncated
}
