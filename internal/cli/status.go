package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/volumeee/zenclaw-sub000/internal/config"
	"github.com/volumeee/zenclaw-sub000/internal/version"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show zenclaw status and configuration summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			heading := color.New(color.Bold)
			heading.Fprintf(out, "%s\n\n", version.Info())

			fmt.Fprintf(out, "Config:    %s\n", paths.Config)
			fmt.Fprintf(out, "Data:      %s\n", paths.Data)
			fmt.Fprintf(out, "Workspace: %s\n", cfg.WorkspacePath(paths))
			fmt.Fprintln(out)

			if cfgErr != nil {
				fmt.Fprintf(out, "Config:    error loading: %v (using defaults)\n", cfgErr)
			} else if _, err := os.Stat(paths.Config); os.IsNotExist(err) {
				fmt.Fprintln(out, "Config:    not found (using defaults)")
			}

			printStatus(out, cfg)

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				warn := color.New(color.FgYellow)
				warn.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s\n", issue)
				}
			}
			return nil
		},
	}
}

func printStatus(out io.Writer, c config.Config) {
	model := c.Provider.Model
	if model == "" {
		model = "(preset default)"
	}
	fmt.Fprintf(out, "Provider:  %s model=%s", c.Provider.Name, model)
	if len(c.Provider.Fallbacks) > 0 {
		fmt.Fprintf(out, " fallbacks=%s", strings.Join(c.Provider.Fallbacks, ","))
	}
	if c.Provider.RequestsPerMinute > 0 {
		fmt.Fprintf(out, " rpm=%d", c.Provider.RequestsPerMinute)
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "Loop:      maxIterations=%d maxTokens=%d toolTimeout=%ds history=%d/%d chars rag=%d\n",
		c.Agent.MaxIterations, c.Agent.MaxTokens, c.Agent.ToolTimeoutSeconds,
		c.Agent.HistoryLimit, c.Agent.HistoryCharBudget, c.Agent.RAGResults)

	if len(c.Agents) == 0 {
		fmt.Fprintf(out, "Agent:     %s\n", defaultAgentName)
	}
	for _, a := range c.Agents {
		def := ""
		if a.Default {
			def = " (default)"
		}
		fmt.Fprintf(out, "Agent:     %s keywords=%s%s\n", a.Name, strings.Join(a.Keywords, ","), def)
	}

	fmt.Fprintf(out, "Routing:   scope=%s concurrency=%d\n", c.Routing.Scope, c.Routing.Concurrency)
	fmt.Fprintf(out, "Memory:    store=%s\n", c.Memory.Store)
	fmt.Fprintf(out, "Tools:     shell=%v validate=%v\n", c.Tools.ShellEnabled, c.Tools.ValidateArguments)

	if c.Gateway.Enabled {
		fmt.Fprintf(out, "Gateway:   port=%d bind=%s auth=%s\n", c.Gateway.Port, c.Gateway.Bind, c.Gateway.Auth.Mode)
	} else {
		fmt.Fprintln(out, "Gateway:   disabled")
	}
	if c.NATS.Enabled {
		fmt.Fprintf(out, "NATS:      %s subject=%s\n", c.NATS.URL, c.NATS.Subject)
	}
}
