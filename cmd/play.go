package cmd

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/chzyer/readline"
	"github.com/jfmyers9/moodplayer/internal/audio"
	"github.com/jfmyers9/moodplayer/internal/config"
	"github.com/jfmyers9/moodplayer/internal/media"
	"github.com/jfmyers9/moodplayer/internal/player"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var playMood string

// playCmd represents the play command
var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Start an interactive playback session",
	Long: `Start an interactive playback session.

The session will:
- Import the configured manifest and re-import it whenever it changes
- Keep the playlist in step with the catalog, scoped to the current mood
- Restore the last track (paused) and volume from the previous session
- Record plays that meet the listening threshold (50% or 4 minutes)
- Handle graceful shutdown on SIGINT/SIGTERM

Type "help" at the prompt for the list of commands.`,
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().StringVarP(&playMood, "mood", "m", "", "Only play tracks tagged with this mood (default: config mood, else the last one used)")
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if playMood != "" {
		cfg.Mood = playMood
	}

	// The session is built after the prompt so that console logs go
	// through readline and do not garble the input line
	var current atomic.Pointer[player.Session]
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "♪ ",
		HistoryFile:     cfg.Path("shell_history"),
		AutoComplete:    shellCompleter(current.Load),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("failed to start prompt: %w", err)
	}
	defer rl.Close()

	logger := setupLogger(cfg.Log)
	if cfg.Log.File == "" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: rl.Stderr(), TimeFormat: time.Kitchen})
	}

	logger.Info().
		Str("version", version).
		Str("data_dir", cfg.DataDir).
		Msg("Starting moodplayer")

	session, err := player.NewSession(sessionOptions(cfg), logger)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	current.Store(session)
	defer func() {
		if err := session.Close(); err != nil {
			logger.Error().Err(err).Msg("Error during shutdown")
		}
	}()

	out := rl.Stdout()
	shell := player.NewShell(session.Controller(), session.Playlist(), session.Engine(), session, out)

	unsub := session.Engine().OnRejected(func(r media.PlaybackRejected) {
		fmt.Fprintf(out, "cannot play %s: %v\n", r.Source, r.Err)
	})
	defer unsub()

	if err := session.Run(cmd.Context(), func(ctx context.Context) error {
		return shell.Run(ctx, rl)
	}); err != nil {
		return fmt.Errorf("session error: %w", err)
	}

	logger.Info().Msg("Session stopped")
	return nil
}

// sessionOptions maps configuration onto the session
func sessionOptions(cfg *config.Config) player.Options {
	a := audio.DefaultConfig()
	a.Command = cfg.Player.Command
	a.Args = cfg.Player.Args
	a.VolumeFlag = cfg.Player.VolumeFlag
	a.StartFlag = cfg.Player.StartFlag
	a.ProbeCommand = cfg.Player.ProbeCommand

	return player.Options{
		CatalogDB:    cfg.Path(cfg.CatalogDB),
		HistoryDB:    cfg.Path(cfg.HistoryDB),
		StateFile:    cfg.Path(cfg.StateFile),
		Manifest:     cfg.Manifest,
		PollInterval: cfg.PollEvery(),
		Volume:       cfg.Volume,
		Mood:         cfg.Mood,
		Audio:        a,
	}
}

// shellCompleter completes command names, track ids and moods. The
// session is looked up lazily because it is created after the prompt.
func shellCompleter(current func() *player.Session) *readline.PrefixCompleter {
	trackIDs := func(string) []string {
		s := current()
		if s == nil {
			return nil
		}
		var ids []string
		for _, t := range s.Playlist().Tracks() {
			ids = append(ids, t.ID)
		}
		return ids
	}

	moods := func(string) []string {
		s := current()
		if s == nil {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		counts, err := s.Catalog().Moods(ctx)
		if err != nil {
			return nil
		}
		names := []string{"all"}
		for _, m := range counts {
			names = append(names, m.Mood)
		}
		return names
	}

	return readline.NewPrefixCompleter(
		readline.PcItem("play", readline.PcItemDynamic(trackIDs)),
		readline.PcItem("toggle"),
		readline.PcItem("next"),
		readline.PcItem("prev"),
		readline.PcItem("seek"),
		readline.PcItem("vol"),
		readline.PcItem("mood", readline.PcItemDynamic(moods)),
		readline.PcItem("list"),
		readline.PcItem("status"),
		readline.PcItem("stop"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
}
