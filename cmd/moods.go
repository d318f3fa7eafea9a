package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var moodsCmd = &cobra.Command{
	Use:   "moods",
	Short: "List moods and how many tracks carry each",
	RunE:  runMoods,
}

func init() {
	rootCmd.AddCommand(moodsCmd)
}

func runMoods(cmd *cobra.Command, args []string) error {
	store, err := openCatalog()
	if err != nil {
		return err
	}
	defer store.Close()

	moods, err := store.Moods(cmd.Context())
	if err != nil {
		return err
	}
	total, err := store.Count(cmd.Context())
	if err != nil {
		return err
	}

	for _, m := range moods {
		fmt.Printf("%-20s %d\n", m.Mood, m.Tracks)
	}
	fmt.Printf("%-20s %d\n", "(all)", total)
	return nil
}
