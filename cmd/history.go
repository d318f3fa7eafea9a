package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/jfmyers9/moodplayer/internal/history"
	"github.com/jfmyers9/moodplayer/internal/media"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently played tracks",
	Long: `Show recently played tracks, newest first.

A track counts as played once half of it (or 4 minutes, whichever
comes first) has been heard. Tracks the player could not start are
listed with the error.`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of plays to show (0 for all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := history.Open(cfg.Path(cfg.HistoryDB))
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer log.Close()

	plays, err := log.Recent(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	if len(plays) == 0 {
		fmt.Println("No plays yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tTRACK\tHEARD\tMOOD")
	for _, p := range plays {
		name := p.Title
		if p.Artist != "" {
			name = p.Artist + " - " + p.Title
		}

		heard := media.FormatClock(p.Heard)
		if p.Error != "" {
			heard = "failed: " + runewidth.Truncate(p.Error, 40, "...")
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			p.Timestamp.Format("Jan 02 15:04"),
			runewidth.Truncate(name, 48, "..."),
			heard,
			p.Mood,
		)
	}
	return w.Flush()
}
