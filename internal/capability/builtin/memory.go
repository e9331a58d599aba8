package builtin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/volumeee/zenclaw-sub000/internal/capability"
)

const recallLimit = 10

type rememberArgs struct {
	Key   string `json:"key" jsonschema_description:"Short name for the fact, e.g. user_name"`
	Value string `json:"value" jsonschema_description:"The fact to remember"`
}

type recallArgs struct {
	Key   string `json:"key,omitempty" jsonschema_description:"Exact key to look up"`
	Query string `json:"query,omitempty" jsonschema_description:"Text to search for in keys and values"`
}

// NewRemember returns the remember capability.
func NewRemember(facts FactStore) capability.Func {
	return capability.Func{
		FuncName:        "remember",
		FuncDescription: "Store a fact for later conversations. Saving an existing key replaces its value.",
		Schema:          capability.SchemaFor[rememberArgs](),
		Fn: func(ctx context.Context, args string) (string, error) {
			parsed := gjson.GetMany(args, "key", "value")
			key := strings.TrimSpace(parsed[0].String())
			if key == "" {
				return "", errors.New("key is required")
			}
			if err := facts.SaveFact(ctx, key, parsed[1].String()); err != nil {
				return "", fmt.Errorf("saving fact: %w", err)
			}
			return fmt.Sprintf("Remembered %s", key), nil
		},
	}
}

// NewRecall returns the recall capability. An exact key wins over a query.
func NewRecall(facts FactStore) capability.Func {
	return capability.Func{
		FuncName:        "recall",
		FuncDescription: "Look up remembered facts by exact key or by searching keys and values.",
		Schema:          capability.SchemaFor[recallArgs](),
		Fn: func(ctx context.Context, args string) (string, error) {
			parsed := gjson.GetMany(args, "key", "query")
			if key := strings.TrimSpace(parsed[0].String()); key != "" {
				value, ok, err := facts.GetFact(ctx, key)
				if err != nil {
					return "", fmt.Errorf("loading fact: %w", err)
				}
				if !ok {
					return fmt.Sprintf("Nothing remembered for %s", key), nil
				}
				return fmt.Sprintf("%s: %s", key, value), nil
			}

			found, err := facts.SearchFacts(ctx, parsed[1].String(), recallLimit)
			if err != nil {
				return "", fmt.Errorf("searching facts: %w", err)
			}
			if len(found) == 0 {
				return "No matching facts", nil
			}
			lines := make([]string, len(found))
			for i, f := range found {
				lines[i] = fmt.Sprintf("%s: %s", f.Key, f.Value)
			}
			return strings.Join(lines, "\n"), nil
		},
	}
}
