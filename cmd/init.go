package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/jfmyers9/moodplayer/internal/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create or update the configuration file",
	Long: `Create or update ~/.config/moodplayer/config.yaml.

This command walks through the settings that usually need changing:
1. The track manifest to import and watch
2. The external player command (mpv, ffplay, ...)
3. The starting volume and mood

Press Enter to keep the value shown in brackets.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	rl, err := readline.NewEx(&readline.Config{Prompt: ">> "})
	if err != nil {
		return fmt.Errorf("failed to start prompt: %w", err)
	}
	defer rl.Close()

	fmt.Println("moodplayer setup")
	fmt.Println("================")
	fmt.Println()

	cfg.Manifest, err = ask(rl, "Track manifest (TOML, empty for none)", cfg.Manifest)
	if err != nil {
		return err
	}
	if cfg.Manifest != "" {
		if abs, err := filepath.Abs(cfg.Manifest); err == nil {
			cfg.Manifest = abs
		}
		if _, err := os.Stat(cfg.Manifest); err != nil {
			fmt.Printf("  [!] %s does not exist yet; it will be imported once created\n", cfg.Manifest)
		}
	}

	cfg.Player.Command, err = ask(rl, "Player command", cfg.Player.Command)
	if err != nil {
		return err
	}
	if _, err := exec.LookPath(cfg.Player.Command); err != nil {
		fmt.Printf("  [!] %s not found in PATH\n", cfg.Player.Command)
	}

	for {
		v, err := ask(rl, "Starting volume (0-100)", strconv.Itoa(int(cfg.Volume*100+0.5)))
		if err != nil {
			return err
		}
		n, err := strconv.Atoi(strings.TrimSuffix(v, "%"))
		if err == nil && n >= 0 && n <= 100 {
			cfg.Volume = float64(n) / 100
			break
		}
		fmt.Println("  [!] Enter a number between 0 and 100")
	}

	cfg.Mood, err = ask(rl, "Default mood (empty for all tracks)", cfg.Mood)
	if err != nil {
		return err
	}

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("\n✓ Configuration saved to %s\n", filepath.Join(config.GetConfigDir(), "config.yaml"))
	fmt.Println("\nRun 'moodplayer play' to start listening.")
	return nil
}

// ask prompts for a value, returning def when the answer is empty
func ask(rl *readline.Instance, label, def string) (string, error) {
	rl.SetPrompt(fmt.Sprintf("%s [%s]: ", label, def))
	line, err := rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
		return "", errors.New("setup cancelled")
	}
	if err != nil {
		return "", err
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return def, nil
	}
	return line, nil
}
