package builtin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/volumeee/zenclaw-sub000/internal/capability"
)

const envValueMax = 80

// credentialVars are reported by the check action.
var credentialVars = []struct{ name, label string }{
	{"ZENCLAW_API_KEY", "zenclaw provider key"},
	{"OPENAI_API_KEY", "OpenAI"},
	{"OPENROUTER_API_KEY", "OpenRouter"},
	{"GROQ_API_KEY", "Groq"},
	{"OLLAMA_HOST", "Ollama host"},
}

var sensitiveMarkers = []string{"key", "secret", "token", "password", "auth", "credential"}

type envArgs struct {
	Action string `json:"action" jsonschema:"enum=get,enum=list,enum=check" jsonschema_description:"get one variable, list all, or check which provider credentials are set"`
	Name   string `json:"name,omitempty" jsonschema_description:"Variable name for the get action"`
}

// NewEnv returns the env capability. Values of variables whose names look
// like credentials are masked.
func NewEnv() capability.Func {
	return capability.Func{
		FuncName:        "env",
		FuncDescription: "Inspect environment variables: read one, list all, or check which provider credentials are set. Secrets are masked.",
		Schema:          capability.SchemaFor[envArgs](),
		Fn: func(_ context.Context, args string) (string, error) {
			parsed := gjson.GetMany(args, "action", "name")
			switch action := parsed[0].String(); action {
			case "get":
				name := strings.TrimSpace(parsed[1].String())
				if name == "" {
					return "", errors.New("name is required")
				}
				val, ok := os.LookupEnv(name)
				if !ok {
					return fmt.Sprintf("%s is not set", name), nil
				}
				return name + "=" + displayEnv(name, val), nil
			case "list":
				return listEnv(), nil
			case "check", "":
				var b strings.Builder
				b.WriteString("Credentials:")
				for _, v := range credentialVars {
					state := "not set"
					if os.Getenv(v.name) != "" {
						state = "set"
					}
					fmt.Fprintf(&b, "\n  %s (%s): %s", v.label, v.name, state)
				}
				return b.String(), nil
			default:
				return "", fmt.Errorf("unknown action %q, use get, list or check", action)
			}
		},
	}
}

func listEnv() string {
	var lines []string
	for _, kv := range os.Environ() {
		name, val, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, "_") || strings.HasPrefix(name, "LS_") {
			continue
		}
		lines = append(lines, "  "+name+"="+displayEnv(name, val))
	}
	slices.Sort(lines)
	return fmt.Sprintf("Environment (%d vars):\n%s", len(lines), strings.Join(lines, "\n"))
}

func displayEnv(name, val string) string {
	if isSensitive(name) {
		return maskSecret(val)
	}
	return clip(val, envValueMax)
}

func isSensitive(name string) bool {
	lower := strings.ToLower(name)
	return slices.ContainsFunc(sensitiveMarkers, func(m string) bool { return strings.Contains(lower, m) })
}

// maskSecret keeps the first and last three characters of long values.
func maskSecret(val string) string {
	r := []rune(val)
	if len(r) <= 8 {
		return "****"
	}
	return string(r[:3]) + "..." + string(r[len(r)-3:])
}
