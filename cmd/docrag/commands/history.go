package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/54b3r/docrag-go/internal/logging"
	"github.com/54b3r/docrag-go/internal/store"
)

// NewHistoryCmd constructs the `docrag history` command, which lists recent
// queries and evaluation verdicts.
func NewHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent queries and evaluation verdicts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.FromContext(cmd.Context())

			hs := openHistory(log)
			if hs == nil {
				return fmt.Errorf("history: store is disabled or unavailable")
			}
			defer func() { _ = hs.Close() }()

			runs, err := hs.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded yet.")
				return nil
			}
			for _, r := range runs {
				fmt.Fprintln(out, formatRun(r))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")

	return cmd
}

// formatRun renders one history line.
func formatRun(r store.Run) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %-5s  %s", r.CreatedAt.Local().Format(time.DateTime), r.Kind, r.Question)
	switch {
	case r.Kind == store.KindEval && r.Verdict == "pass":
		b.WriteString("  " + color.New(color.FgHiGreen).Sprint("PASS"))
	case r.Kind == store.KindEval:
		b.WriteString("  " + color.New(color.FgHiRed).Sprint(strings.ToUpper(r.Verdict)))
	default:
		fmt.Fprintf(&b, "\n    %s", truncate(r.Response, 120))
	}
	return b.String()
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
