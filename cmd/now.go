package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/jfmyers9/moodplayer/internal/media"
	"github.com/jfmyers9/moodplayer/internal/player"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

// staleGrace is how far past the end of a track a "playing" snapshot may
// be before it is treated as left behind by a player that died
const staleGrace = 30 * time.Second

// nowCmd represents the now command
var nowCmd = &cobra.Command{
	Use:   "now",
	Short: "Display the currently playing track",
	Long: `Display the track the running play session is playing.

The output format can be customized in ~/.config/moodplayer/config.yaml
using a Go template. Available fields: .Title, .Artist, .Mood, .State,
.Position, .Duration, .Progress, .Volume

Exit codes:
  0 - Track is currently playing
  1 - No track playing, paused, or no session running`,
	RunE: runNow,
}

func init() {
	rootCmd.AddCommand(nowCmd)

	// Add format flag to override config
	nowCmd.Flags().StringP("format", "f", "", "Output format template (overrides config)")
	// Add width flag to set fixed output width
	nowCmd.Flags().IntP("width", "w", 0, "Fixed output width (0=disabled, overrides config)")
	// Add marquee flag to enable scrolling
	nowCmd.Flags().Bool("marquee", false, "Enable marquee scrolling for long text (overrides config)")
}

// nowView is the data the output template sees
type nowView struct {
	Title    string
	Artist   string
	Mood     string
	State    string
	Position string
	Duration string
	Progress string
	Volume   int
}

func runNow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Check for format flag override
	formatFlag, _ := cmd.Flags().GetString("format")
	if formatFlag != "" {
		cfg.OutputFormat = formatFlag
	}

	snap, err := player.ReadSnapshot(cfg.Path(cfg.StateFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read player state: %w", err)
	}

	view, ok := viewSnapshot(snap, time.Now())
	if !ok {
		os.Exit(1)
		return nil
	}

	output, err := formatNow(view, cfg.OutputFormat)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	width, _ := cmd.Flags().GetInt("width")
	if width == 0 {
		width = cfg.OutputWidth
	}

	marquee, _ := cmd.Flags().GetBool("marquee")
	if !cmd.Flags().Changed("marquee") {
		marquee = cfg.MarqueeEnabled
	}

	if width > 0 {
		if marquee {
			output = marqueeText(output, width, cfg.MarqueeSpeed, cfg.MarqueeSeparator, time.Now())
		} else {
			output = padToWidth(output, width)
		}
	}

	fmt.Println(output)
	return nil
}

// viewSnapshot turns a persisted snapshot into template data. Progress is
// persisted at intervals, so the position is advanced by the time since
// the snapshot was written. It reports false unless a track is playing.
func viewSnapshot(snap player.Snapshot, now time.Time) (nowView, bool) {
	if snap.TrackID == "" || !snap.Playing() {
		return nowView{}, false
	}

	p := snap.Progress()
	if !snap.UpdatedAt.IsZero() && now.After(snap.UpdatedAt) {
		p.Position += now.Sub(snap.UpdatedAt)
	}
	if p.DurationKnown() {
		if p.Position > p.Duration+staleGrace {
			return nowView{}, false
		}
		p.Position = min(p.Position, p.Duration)
	}

	dur := "-:--"
	if p.DurationKnown() {
		dur = media.FormatClock(p.Duration)
	}

	return nowView{
		Title:    snap.Title,
		Artist:   snap.Artist,
		Mood:     snap.Mood,
		State:    snap.State,
		Position: media.FormatClock(p.Position),
		Duration: dur,
		Progress: p.String(),
		Volume:   int(snap.Volume*100 + 0.5),
	}, true
}

// formatNow applies the template to the view
func formatNow(view nowView, templateStr string) (string, error) {
	tmpl, err := template.New("output").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("invalid template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}

	return buf.String(), nil
}

// padToWidth pads or truncates text to exactly width display columns,
// marking truncation with "...". Width <= 0 leaves text unchanged.
func padToWidth(text string, width int) string {
	if width <= 0 {
		return text
	}

	const ellipsis = "..."
	if runewidth.StringWidth(text) > width {
		if width <= runewidth.StringWidth(ellipsis) {
			return runewidth.Truncate(ellipsis, width, "")
		}
		text = runewidth.Truncate(text, width, ellipsis)
	}
	return runewidth.FillRight(text, width)
}

// marqueeText scrolls text that does not fit in width. The window position
// is derived from the clock (speed columns per second) so repeated calls
// from a status bar animate without keeping any state.
func marqueeText(text string, width, speed int, separator string, now time.Time) string {
	if width <= 0 {
		return text
	}
	if runewidth.StringWidth(text) <= width {
		return padToWidth(text, width)
	}

	loop := []rune(text + separator + text)
	start := int(now.Unix()*int64(speed)) % len(loop)
	if start < 0 {
		start += len(loop)
	}

	var b strings.Builder
	used := 0
	for i := 0; i < len(loop); i++ {
		r := loop[(start+i)%len(loop)]
		rw := runewidth.RuneWidth(r)
		if used+rw > width {
			break
		}
		b.WriteRune(r)
		used += rw
	}

	return runewidth.FillRight(b.String(), width)
}
