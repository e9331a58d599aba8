package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/volumeee/zenclaw-sub000/internal/capability"
	"github.com/volumeee/zenclaw-sub000/internal/domain"
)

// dispatch runs every call concurrently and returns one tool message per
// call, in request order.
func (a *Agent) dispatch(ctx context.Context, r *run, calls []domain.ToolInvocationRequest) []domain.Message {
	for _, call := range calls {
		r.emit(domain.EventToolUse, map[string]any{"capability": call.Name, "arguments": call.Arguments})
	}

	results := make([]string, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = a.invoke(ctx, r, call)
		}()
	}
	wg.Wait()

	out := make([]domain.Message, len(calls))
	for i, call := range calls {
		out[i] = domain.ToolResult(call.ID, call.Name, results[i])
		r.emit(domain.EventToolResult, map[string]any{
			"capability":   call.Name,
			"resultLength": utf8.RuneCountInString(results[i]),
		})
	}
	return out
}

type outcome struct {
	out string
	err error
}

// invoke runs one call under the tool timeout. The capability keeps running
// in the background if it ignores its context; its late result is discarded.
func (a *Agent) invoke(ctx context.Context, r *run, call domain.ToolInvocationRequest) string {
	callCtx, cancel := context.WithTimeout(ctx, a.cfg.ToolTimeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		out, err := a.tools.Execute(callCtx, call.Name, call.Arguments)
		done <- outcome{out: out, err: err}
	}()

	select {
	case o := <-done:
		if o.err == nil {
			a.log.Debug().Str("capability", call.Name).Int("resultChars", len(o.out)).Msg("capability finished")
			return o.out
		}
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return a.timedOut(r, call)
		}
		a.log.Warn().Str("capability", call.Name).Err(o.err).Msg("capability failed")
		return "Error: " + errorMessage(o.err)
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return "Error: " + ctx.Err().Error()
		}
		return a.timedOut(r, call)
	}
}

func (a *Agent) timedOut(r *run, call domain.ToolInvocationRequest) string {
	a.log.Warn().Str("capability", call.Name).Dur("timeout", a.cfg.ToolTimeout).Msg("capability timed out")
	r.emit(domain.EventToolTimeout, map[string]any{"capability": call.Name})
	return fmt.Sprintf("Error: capability %s timed out after %s", call.Name, a.cfg.ToolTimeout)
}

// errorMessage unwraps the registry's execution error so the model sees the
// capability's own message.
func errorMessage(err error) string {
	var ee *capability.ExecutionError
	if errors.As(err, &ee) {
		return ee.Message
	}
	return err.Error()
}
