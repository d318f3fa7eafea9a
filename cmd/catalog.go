package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/jfmyers9/moodplayer/internal/catalog"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

var (
	importPrune bool
	listMood    string
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the track catalog",
}

var catalogImportCmd = &cobra.Command{
	Use:   "import <manifest.toml>",
	Short: "Import tracks from a TOML manifest",
	Long: `Import tracks from a TOML manifest into the catalog.

Each [[track]] entry needs a title and a source. The id defaults to a
stable id derived from the source, and relative sources are resolved
against the manifest's directory:

  [[track]]
  title  = "Night Drive"
  artist = "Someone"
  source = "music/night-drive.mp3"
  moods  = ["calm", "late night"]

With --prune, catalog tracks that are not in the manifest are removed.`,
	Args: cobra.ExactArgs(1),
	RunE: runCatalogImport,
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog tracks",
	RunE:  runCatalogList,
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogImportCmd, catalogListCmd)

	catalogImportCmd.Flags().BoolVar(&importPrune, "prune", false, "Remove tracks missing from the manifest")
	catalogListCmd.Flags().StringVarP(&listMood, "mood", "m", "", "Only list tracks tagged with this mood")
}

// openCatalog opens the configured catalog database
func openCatalog() (*catalog.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := catalog.Open(cfg.Path(cfg.CatalogDB))
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	return store, nil
}

func runCatalogImport(cmd *cobra.Command, args []string) error {
	store, err := openCatalog()
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := store.Import(cmd.Context(), args[0], importPrune)
	if err != nil {
		return err
	}

	fmt.Printf("Imported %d tracks", result.Imported)
	if importPrune {
		fmt.Printf(", removed %d", result.Deleted)
	}
	fmt.Println()
	return nil
}

func runCatalogList(cmd *cobra.Command, args []string) error {
	store, err := openCatalog()
	if err != nil {
		return err
	}
	defer store.Close()

	return printTracks(cmd.Context(), store, listMood)
}

func printTracks(ctx context.Context, store *catalog.Store, mood string) error {
	tracks, err := store.Tracks(ctx, mood)
	if err != nil {
		return err
	}
	if len(tracks) == 0 {
		fmt.Println("No tracks")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tARTIST\tMOODS")
	for _, t := range tracks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			t.ID,
			runewidth.Truncate(t.Title, 40, "..."),
			runewidth.Truncate(t.Artist, 24, "..."),
			strings.Join(t.Moods, ", "),
		)
	}
	return w.Flush()
}
