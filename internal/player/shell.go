package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/jfmyers9/moodplayer/internal/media"
	"github.com/jfmyers9/moodplayer/internal/playback"
	"github.com/jfmyers9/moodplayer/internal/playlist"
	"github.com/mattn/go-runewidth"
)

// ErrUnknownCommand is returned for input the shell does not understand
var ErrUnknownCommand = errors.New("unknown command")

// Command is one parsed line of shell input
type Command struct {
	Name string
	Arg  string
}

var aliases = map[string]string{
	"p":      "toggle",
	"pause":  "toggle",
	"space":  "toggle",
	"n":      "next",
	"b":      "prev",
	"back":   "prev",
	"ls":     "list",
	"l":      "list",
	"st":     "status",
	"s":      "status",
	"v":      "vol",
	"volume": "vol",
	"q":      "quit",
	"exit":   "quit",
	"?":      "help",
	"close":  "stop",
}

var commands = []string{"play", "toggle", "next", "prev", "seek", "vol", "mood", "list", "status", "stop", "help", "quit"}

// ParseCommand splits a line into a command name and its argument
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, nil
	}

	name, arg, _ := strings.Cut(line, " ")
	name = strings.ToLower(name)
	if full, ok := aliases[name]; ok {
		name = full
	}

	for _, c := range commands {
		if c == name {
			return Command{Name: name, Arg: strings.TrimSpace(arg)}, nil
		}
	}
	return Command{}, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
}

// StatusSource is the read side of the engine the shell reports on
type StatusSource interface {
	State() media.State
	Progress() media.Progress
	TrackID() string
}

// MoodScope changes which tracks the playlist holds
type MoodScope interface {
	Mood() string
	SetMood(mood string)
}

// Shell is the interactive command line. Every command goes through the
// playback controller.
type Shell struct {
	controller *playback.Controller
	playlist   *playlist.Store
	engine     StatusSource
	moods      MoodScope
	out        io.Writer
}

// NewShell creates a Shell writing its output to out
func NewShell(c *playback.Controller, pl *playlist.Store, engine StatusSource, moods MoodScope, out io.Writer) *Shell {
	return &Shell{controller: c, playlist: pl, engine: engine, moods: moods, out: out}
}

// Run reads commands until quit, end of input or context cancellation
func (sh *Shell) Run(ctx context.Context, rl *readline.Instance) error {
	go func() {
		<-ctx.Done()
		rl.Close()
	}()

	fmt.Fprintln(sh.out, `moodplayer: type "help" for commands`)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if err != nil {
			// io.EOF, or the instance was closed on shutdown
			return nil
		}

		quit, err := sh.Exec(line)
		if err != nil {
			fmt.Fprintf(sh.out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

// Exec parses and runs one line. It reports whether the shell should exit.
func (sh *Shell) Exec(line string) (bool, error) {
	cmd, err := ParseCommand(line)
	if err != nil {
		return false, err
	}

	switch cmd.Name {
	case "":
		return false, nil
	case "quit":
		return true, nil
	case "help":
		sh.help()
	case "play":
		return false, sh.play(cmd.Arg)
	case "toggle":
		sh.controller.TogglePlayPause()
	case "next":
		if !sh.controller.Next() {
			fmt.Fprintln(sh.out, "nothing to skip to")
		}
	case "prev":
		if !sh.controller.Prev() {
			fmt.Fprintln(sh.out, "nothing to go back to")
		}
	case "seek":
		return false, sh.seek(cmd.Arg)
	case "vol":
		return false, sh.volume(cmd.Arg)
	case "mood":
		sh.mood(cmd.Arg)
	case "list":
		sh.list()
	case "status":
		fmt.Fprintln(sh.out, sh.Status())
	case "stop":
		sh.controller.Clear()
	}
	return false, nil
}

// play selects a track by 1-based list position or by id. Without an
// argument it resumes.
func (sh *Shell) play(arg string) error {
	if arg == "" {
		if sh.controller.Intent().HasTrack() {
			sh.controller.SetPlaying(true)
		} else {
			sh.controller.TogglePlayPause()
		}
		return nil
	}

	if n, err := strconv.Atoi(arg); err == nil {
		track, ok := sh.playlist.At(n - 1)
		if !ok {
			return fmt.Errorf("no track at position %d", n)
		}
		sh.controller.SelectTrack(track.ID)
		return nil
	}

	// An unknown id is still selected: it starts once the feed delivers it
	if _, ok := sh.playlist.Find(arg); !ok {
		fmt.Fprintf(sh.out, "%s is not in the playlist yet, it will play once it arrives\n", arg)
	}
	sh.controller.SelectTrack(arg)
	return nil
}

// seek accepts seconds ("90"), clock time ("1:30") or an offset from the
// current position ("+10", "-10")
func (sh *Shell) seek(arg string) error {
	if arg == "" {
		return errors.New("usage: seek <seconds|m:ss|+n|-n>")
	}

	relative := arg[0] == '+' || arg[0] == '-'
	d, err := parseClock(strings.TrimLeft(arg, "+-"))
	if err != nil {
		return err
	}

	if relative {
		pos := sh.engine.Progress().Position
		if arg[0] == '-' {
			d = pos - d
		} else {
			d = pos + d
		}
	}
	sh.controller.Seek(d)
	return nil
}

// volume accepts 0..1 or a percentage ("60%")
func (sh *Shell) volume(arg string) error {
	if arg == "" {
		fmt.Fprintf(sh.out, "volume %d%%\n", percent(sh.controller.Intent().Volume))
		return nil
	}

	pct := strings.HasSuffix(arg, "%")
	v, err := strconv.ParseFloat(strings.TrimSuffix(arg, "%"), 64)
	if err != nil {
		return fmt.Errorf("invalid volume %q", arg)
	}
	if pct {
		v /= 100
	}
	sh.controller.SetVolume(v)
	return nil
}

func (sh *Shell) mood(arg string) {
	switch strings.ToLower(arg) {
	case "":
		m := sh.moods.Mood()
		if m == "" {
			m = "all"
		}
		fmt.Fprintf(sh.out, "mood %s\n", m)
		return
	case "all", "-", "any":
		arg = ""
	}
	sh.moods.SetMood(arg)
}

func (sh *Shell) list() {
	tracks := sh.playlist.Tracks()
	if len(tracks) == 0 {
		fmt.Fprintln(sh.out, "playlist is empty")
		return
	}

	current := sh.controller.Intent().TrackID
	for i, t := range tracks {
		marker := " "
		if t.ID == current {
			marker = "▶"
		}
		fmt.Fprintf(sh.out, "%s %3d  %s  %s\n",
			marker,
			i+1,
			runewidth.FillRight(runewidth.Truncate(t.Title, 32, "..."), 32),
			runewidth.Truncate(t.Artist, 24, "..."),
		)
	}
}

// Status renders the current track, progress, volume and mood on one line
func (sh *Shell) Status() string {
	in := sh.controller.Intent()
	mood := sh.moods.Mood()
	if mood == "" {
		mood = "all"
	}
	tail := fmt.Sprintf("vol %d%%  mood %s", percent(in.Volume), mood)

	track, ok := sh.playlist.Find(sh.engine.TrackID())
	if !ok {
		return "stopped  " + tail
	}

	name := track.Title
	if track.Artist != "" {
		name = track.Artist + " - " + track.Title
	}
	return fmt.Sprintf("%s %s  %s  %s", stateIcon(sh.engine.State()), name, sh.engine.Progress(), tail)
}

func (sh *Shell) help() {
	fmt.Fprint(sh.out, `commands:
  play [n|id]     play track n of the list (or by id), or resume
  toggle          play/pause (p)
  next, prev      skip forward/back (n, b)
  seek <pos>      seek to seconds, m:ss, or +n/-n
  vol [v]         show or set volume, 0..1 or 60%
  mood [name]     show or set mood ("all" for every track)
  list            show the playlist (ls)
  status          show what is playing (st)
  stop            close the player
  quit            exit (q)
`)
}

func stateIcon(st media.State) string {
	switch st {
	case media.StatePlaying:
		return "▶"
	case media.StatePaused:
		return "⏸"
	case media.StateLoading:
		return "…"
	default:
		return "■"
	}
}

func percent(v float64) int {
	return int(v*100 + 0.5)
}

// parseClock parses "90", "1:30" or "1:02:03" into a duration
func parseClock(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid position %q", s)
	}

	var total float64
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid position %q", s)
		}
		total = total*60 + v
	}
	return time.Duration(total * float64(time.Second)), nil
}
