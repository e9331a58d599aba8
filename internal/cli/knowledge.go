package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/volumeee/zenclaw-sub000/internal/store"
)

func newKnowledgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "knowledge",
		Aliases: []string{"kb"},
		Short:   "Manage the documents agents retrieve from",
	}

	cmd.AddCommand(newKnowledgeAddCmd())
	cmd.AddCommand(newKnowledgeSearchCmd())
	cmd.AddCommand(newKnowledgeCountCmd())
	cmd.AddCommand(newKnowledgeRemoveCmd())
	return cmd
}

// openKnowledge opens the sqlite store; the in-memory store keeps no documents.
func openKnowledge() (*store.SQLite, error) {
	if cfg.Memory.Store == "memory" {
		return nil, store.ErrNoKnowledge
	}
	if cfg.Memory.Path == "" {
		if err := paths.EnsureDirs(); err != nil {
			return nil, err
		}
	}
	return store.OpenSQLite(cfg.MemoryPath(paths), log)
}

func newKnowledgeAddCmd() *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "add <file>",
		Short: "Index a text file in overlapping chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if strings.TrimSpace(string(data)) == "" {
				return fmt.Errorf("%s is empty", args[0])
			}
			if source == "" {
				source = filepath.Base(args[0])
			}

			db, err := openKnowledge()
			if err != nil {
				return err
			}
			defer db.Close()

			ids, err := db.Knowledge().IndexChunked(cmd.Context(), source, string(data), cfg.Memory.ChunkWords, cfg.Memory.ChunkOverlap)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %s as %d chunk(s)\n", source, len(ids))
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "source name stored with the chunks (default: file name)")
	return cmd
}

func newKnowledgeSearchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Show the documents a query retrieves",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openKnowledge()
			if err != nil {
				return err
			}
			defer db.Close()

			docs, err := db.Knowledge().Search(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(docs) == 0 {
				fmt.Fprintln(out, "No matches.")
				return nil
			}
			for _, d := range docs {
				fmt.Fprintf(out, "[%d] %s %s\n", d.ID, d.Source, d.Metadata)
				fmt.Fprintf(out, "    %s\n", preview(d.Content, 160))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 3, "maximum number of results")
	return cmd
}

func newKnowledgeCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of indexed chunks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openKnowledge()
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := db.Knowledge().Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}

func newKnowledgeRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <source>",
		Short: "Delete every chunk indexed from a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openKnowledge()
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := db.Knowledge().DeleteBySource(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("source %q not found", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d chunk(s) of %s\n", n, args[0])
			return nil
		},
	}
}

// preview collapses whitespace and cuts s to at most n runes.
func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
