// Package audio implements the audio primitive on top of an external
// command line player such as mpv or ffplay.
package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jfmyers9/moodplayer/internal/media"
	"github.com/rs/zerolog"
)

// ErrNoSource is returned by Play when no source is loaded
var ErrNoSource = errors.New("no source loaded")

// Config describes how the external player is invoked
type Config struct {
	Command      string        // Player binary, e.g. "mpv"
	Args         []string      // Arguments placed before the source
	VolumeFlag   string        // Pattern taking volume 0-100, e.g. "--volume=%d" (empty disables)
	StartFlag    string        // Pattern taking seconds, e.g. "--start=%.3f" (empty disables)
	ProbeCommand string        // ffprobe-compatible binary for durations (empty disables)
	TickInterval time.Duration // Cadence of time updates while playing
}

// DefaultConfig returns settings for mpv and ffprobe
func DefaultConfig() Config {
	return Config{
		Command:      "mpv",
		Args:         []string{"--no-video", "--really-quiet", "--no-terminal"},
		VolumeFlag:   "--volume=%d",
		StartFlag:    "--start=%.3f",
		ProbeCommand: "ffprobe",
		TickInterval: time.Second,
	}
}

// Player runs one external player process per playback segment. Pausing
// suspends the process; seeking restarts it at the new offset. Volume is
// passed at process start, so a change takes effect on the next segment.
type Player struct {
	cfg    Config
	logger zerolog.Logger

	mu        sync.Mutex
	source    string
	volume    float64
	offset    time.Duration // Position at which the current segment started
	started   time.Time     // Wall clock start of the current segment
	proc      *os.Process
	run       uint64 // Identity of the current process
	suspended bool
	loadID    uint64
	duration  time.Duration
	known     bool
	ctx       context.Context // Context of the last Play, reused by seeks
	cb        media.Callbacks

	done      chan struct{}
	closeOnce sync.Once
}

var _ media.Primitive = (*Player)(nil)

// NewPlayer creates a Player and starts its time update ticker
func NewPlayer(cfg Config, logger zerolog.Logger) *Player {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}

	p := &Player{
		cfg:    cfg,
		logger: logger.With().Str("component", "audio").Logger(),
		volume: 1,
		ctx:    context.Background(),
		done:   make(chan struct{}),
	}
	go p.tick()
	return p
}

// SetSource stops any running process and replaces the source
func (p *Player) SetSource(uri string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	p.source = uri
	p.offset = 0
	p.duration = 0
	p.known = false
	p.loadID++
}

// Source returns the loaded source
func (p *Player) Source() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source
}

// Load probes the source duration in the background and reports it
// through OnMetadataLoaded. Metadata is reported even when probing fails,
// with an unknown duration.
func (p *Player) Load() {
	p.mu.Lock()
	p.loadID++
	id := p.loadID
	src := p.source
	p.mu.Unlock()

	if src == "" {
		return
	}
	go p.probe(id, src)
}

// Play starts a process for the source, or resumes a suspended one
func (p *Player) Play(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.source == "" {
		return ErrNoSource
	}

	if p.proc != nil {
		if !p.suspended {
			return nil
		}
		if err := resume(p.proc); err == nil {
			p.suspended = false
			p.started = time.Now()
			return nil
		}
		p.stopLocked()
	}

	p.ctx = ctx
	return p.startLocked(ctx)
}

// Pause suspends the running process, or kills it when suspension is not
// supported. Either way the position is kept.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.proc == nil || p.suspended {
		return
	}

	p.offset += time.Since(p.started)
	p.started = time.Time{}
	if err := suspend(p.proc); err != nil {
		p.stopLocked()
		return
	}
	p.suspended = true
}

// CurrentTime returns the estimated playback position
func (p *Player) CurrentTime() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos := p.offset
	if p.proc != nil && !p.suspended && !p.started.IsZero() {
		pos += time.Since(p.started)
	}
	if p.known && pos > p.duration {
		pos = p.duration
	}
	return pos
}

// SetCurrentTime moves the position, restarting the process if it was
// playing
func (p *Player) SetCurrentTime(pos time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pos < 0 {
		pos = 0
	}
	playing := p.proc != nil && !p.suspended
	p.stopLocked()
	p.offset = pos

	if !playing || p.source == "" {
		return
	}
	if err := p.startLocked(p.ctx); err != nil {
		p.logger.Warn().Err(err).Msg("Failed to restart player after seek")
		if cb := p.cb.OnError; cb != nil {
			go cb(err)
		}
	}
}

// Duration returns the probed duration
func (p *Player) Duration() (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration, p.known
}

// SetVolume stores the volume for the next process start
func (p *Player) SetVolume(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = v
}

// SetCallbacks installs the event handlers
func (p *Player) SetCallbacks(cb media.Callbacks) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cb = cb
}

// Close stops the ticker and any running process
func (p *Player) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		p.mu.Lock()
		p.stopLocked()
		p.mu.Unlock()
	})
	return nil
}

// startLocked launches a process for the current source and offset.
// Must be called with lock held.
func (p *Player) startLocked(ctx context.Context) error {
	args := buildArgs(p.cfg, p.volume, p.offset, p.source)
	cmd := exec.CommandContext(ctx, p.cfg.Command, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", p.cfg.Command, err)
	}

	p.run++
	p.proc = cmd.Process
	p.suspended = false
	p.started = time.Now()

	p.logger.Debug().
		Str("source", p.source).
		Dur("offset", p.offset).
		Int("pid", cmd.Process.Pid).
		Msg("Started player process")

	go p.wait(p.run, cmd, ctx)
	return nil
}

// stopLocked kills the running process. Its exit is ignored because the
// run identity moves on. Must be called with lock held.
func (p *Player) stopLocked() {
	if p.proc == nil {
		return
	}
	p.run++
	if err := p.proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.Debug().Err(err).Msg("Failed to kill player process")
	}
	p.proc = nil
	p.suspended = false
	p.started = time.Time{}
}

// wait reaps a process and reports its end, unless it was superseded
func (p *Player) wait(id uint64, cmd *exec.Cmd, ctx context.Context) {
	err := cmd.Wait()

	p.mu.Lock()
	if id != p.run {
		p.mu.Unlock()
		return
	}
	p.proc = nil
	p.suspended = false
	p.started = time.Time{}
	if err == nil && p.known {
		p.offset = p.duration
	}
	src := p.source
	onEnded, onError := p.cb.OnEnded, p.cb.OnError
	p.mu.Unlock()

	// Killed because the owner shut down
	if ctx.Err() != nil {
		return
	}

	if err != nil {
		p.logger.Debug().Err(err).Msg("Player process failed")
		if onError != nil {
			onError(fmt.Errorf("%s exited: %w", p.cfg.Command, err))
		}
		return
	}
	if onEnded != nil {
		onEnded(src)
	}
}

func (p *Player) probe(id uint64, src string) {
	var d time.Duration
	ok := false

	if p.cfg.ProbeCommand != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var err error
		d, err = probeDuration(ctx, p.cfg.ProbeCommand, src)
		if err != nil {
			p.logger.Debug().Err(err).Str("source", src).Msg("Duration probe failed")
		} else {
			ok = true
		}
	}

	p.mu.Lock()
	if id != p.loadID {
		p.mu.Unlock()
		return
	}
	p.duration, p.known = d, ok
	cb := p.cb.OnMetadataLoaded
	p.mu.Unlock()

	if cb != nil {
		cb()
	}
}

func (p *Player) tick() {
	ticker := time.NewTicker(p.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.mu.Lock()
			active := p.proc != nil && !p.suspended
			cb := p.cb.OnTimeUpdate
			p.mu.Unlock()

			if active && cb != nil {
				cb()
			}
		}
	}
}

// buildArgs assembles the player command line
func buildArgs(cfg Config, volume float64, offset time.Duration, source string) []string {
	args := append([]string(nil), cfg.Args...)
	if cfg.VolumeFlag != "" {
		args = append(args, fmt.Sprintf(cfg.VolumeFlag, int(math.Round(volume*100))))
	}
	if cfg.StartFlag != "" && offset > 0 {
		args = append(args, fmt.Sprintf(cfg.StartFlag, offset.Seconds()))
	}
	return append(args, source)
}

// probeDuration asks an ffprobe-compatible command for the duration
func probeDuration(ctx context.Context, command, src string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, command,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		src,
	)
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return 0, fmt.Errorf("%s error: %s", command, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return 0, fmt.Errorf("failed to execute %s: %w", command, err)
	}
	return parseProbeOutput(string(output))
}

// parseProbeOutput parses a duration printed in seconds
func parseProbeOutput(output string) (time.Duration, error) {
	s := strings.TrimSpace(output)
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", s, err)
	}
	if secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return secondsToDuration(secs), nil
}

// secondsToDuration converts seconds (as float) to time.Duration
func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
