package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mgpai22/shadowplay/internal/clock"
	"github.com/mgpai22/shadowplay/internal/cueindex"
	"github.com/mgpai22/shadowplay/internal/logging"
	"github.com/mgpai22/shadowplay/internal/metrics"
	"github.com/mgpai22/shadowplay/internal/player"
	"github.com/mgpai22/shadowplay/internal/session"
	"github.com/mgpai22/shadowplay/internal/subtitle"
	"github.com/mgpai22/shadowplay/internal/terminal"
	"github.com/mgpai22/shadowplay/internal/timecode"
	"github.com/mgpai22/shadowplay/internal/video"
)

const reloadDebounce = 300 * time.Millisecond

var errQuit = errors.New("quit")

var playCmd = &cobra.Command{
	Use:   "play [media_file]",
	Short: "Practice a video with sentence looping",
	Long: `Open a video in mpv and control it from this terminal.

Keys:
  space, k   play or pause
  j, l       previous or next subtitle cue
  w, e       toggle a start or end mark at the current position
  left/right skip 10 seconds, u/o skip half a second
  up/down    volume (above 100% amplifies)
  p          pass mode (no looping until toggled off)
  r          remove the next mark within a minute
  [, ]       playback speed
  :          edit a mark, e.g. ":end 00:01:02.300 00:01:02.800"
  q, ctrl-c  quit

A subtitle file next to the video is used when --subs is not given.

Examples:
  shadowplay play episode.mkv
  shadowplay play lecture.mp4 --subs lecture.en.vtt --watch
  shadowplay play clip.mp4 --attach --socket /tmp/mpv.sock`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().
		StringP("subs", "s", "", "Subtitle file (srt, vtt, ass)")
	playCmd.Flags().
		String("socket", "", "mpv IPC socket path")
	playCmd.Flags().
		Bool("attach", false, "Attach to an mpv already listening on --socket")
	playCmd.Flags().
		String("metrics-addr", "", "Serve Prometheus metrics on this address")
	playCmd.Flags().
		Bool("watch", false, "Reload subtitles when the file changes")
	playCmd.Flags().
		Bool("no-autoplay", false, "Start paused")
}

func runPlay(cmd *cobra.Command, args []string) error {
	mediaPath := args[0]

	subsPath, _ := cmd.Flags().GetString("subs")
	socket, _ := cmd.Flags().GetString("socket")
	attach, _ := cmd.Flags().GetBool("attach")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	watch, _ := cmd.Flags().GetBool("watch")
	noAutoplay, _ := cmd.Flags().GetBool("no-autoplay")

	if socket == "" {
		socket = cfg.Player.Socket
	}
	if metricsAddr == "" {
		metricsAddr = cfg.Metrics.Addr
	}
	if attach && socket == "" {
		return errors.New("--attach requires --socket")
	}
	if !attach {
		if _, err := os.Stat(mediaPath); os.IsNotExist(err) {
			return fmt.Errorf("file not found: %s", mediaPath)
		}
		if !video.IsMediaFile(mediaPath) {
			return fmt.Errorf("unsupported file type: %s (expected audio or video file)", filepath.Ext(mediaPath))
		}
	}
	if subsPath == "" {
		if found, ok := video.FindSubtitle(mediaPath); ok {
			subsPath = found
		}
	}

	cues, err := loadCues(subsPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.With("session_id", uuid.NewString())
	log.Infow("Starting practice session",
		"media", mediaPath,
		"subtitle", subsPath,
		"cues", cues.Len(),
		"storage", cfg.Storage.Backend,
	)

	kv, err := openStore()
	if err != nil {
		return err
	}
	defer kv.Close()

	var mpv *player.MPV
	if attach {
		mpv, err = player.Dial(ctx, socket, log)
	} else {
		mpv, err = player.Launch(ctx, player.LaunchOptions{
			Binary:   cfg.Player.MPVBinary,
			Media:    mediaPath,
			Subtitle: subsPath,
			Socket:   socket,
			Args:     cfg.Player.ExtraArgs,
		}, log)
	}
	if err != nil {
		return fmt.Errorf("failed to start player: %w", err)
	}
	defer mpv.Close()

	bindings, err := cfg.Bindings()
	if err != nil {
		return err
	}

	runner := session.NewRunner(log)
	sess := session.New(mpv, mpv, kv, runner.Clock(clock.Real{}), session.Options{
		Loop:         cfg.LoopConfig(),
		Pulse:        cfg.Pulse(),
		Command:      cfg.CommandOptions(),
		Bindings:     bindings,
		Volume:       cfg.VolumeOptions(),
		RemoveWindow: float64(cfg.Loop.RemoveWindowSecs),
	}, log)
	key := markKey(mediaPath, subsPath)
	sess.Load(ctx, key.Video, key.Subtitle, cues)

	term, err := terminal.Open(os.Stdin, os.Stdout)
	if err != nil {
		if !errors.Is(err, terminal.ErrNotTerminal) {
			return err
		}
		log.Warnw("Keyboard control disabled", "reason", err)
		term = nil
	}
	defer term.Restore()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runner.Run(gctx, sess, mpv.Events())
	})

	if cfg.Playback.Autoplay && !noAutoplay {
		if err := runner.Submit(gctx, func(s *session.Session) { s.Autoplay() }); err != nil {
			return err
		}
	}

	if metricsAddr != "" {
		log.Infow("Serving metrics", "addr", metricsAddr)
		g.Go(func() error { return metrics.Serve(gctx, metricsAddr) })
	}

	if watch && subsPath != "" {
		g.Go(func() error { return watchSubtitle(gctx, subsPath, runner, log) })
	}

	if term != nil {
		renderer := terminal.NewRenderer(term.Output(), terminal.DefaultRefresh, term.Width)
		snaps, unsubscribe := sess.Subscribe()
		defer unsubscribe()

		inputs := make(chan terminal.Input, 16)
		// the blocked read cannot be interrupted, so it stays outside the group
		go func() {
			if err := term.ReadInputs(gctx, inputs); err != nil {
				log.Debugw("Terminal input stopped", "error", err)
			}
		}()

		g.Go(func() error { return renderStatus(gctx, renderer, snaps) })
		g.Go(func() error { return handleInputs(gctx, runner, renderer, inputs) })
		defer renderer.Clear()
	}

	err = g.Wait()
	switch {
	case err == nil, errors.Is(err, errQuit), errors.Is(err, session.ErrPlayerGone):
		log.Infow("Practice session ended", "marks", len(sess.Marks().Segments()))
		return nil
	default:
		return err
	}
}

func loadCues(subsPath string) (*cueindex.Index, error) {
	if subsPath == "" {
		return nil, nil
	}
	f, err := subtitle.Open(subsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read subtitles: %w", err)
	}
	return cueindex.FromSubtitle(f.Subtitle()), nil
}

func renderStatus(ctx context.Context, r *terminal.Renderer, snaps <-chan session.Snapshot) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-snaps:
			if !ok {
				return nil
			}
			r.Draw(snap)
		}
	}
}

func handleInputs(ctx context.Context, runner *session.Runner, r *terminal.Renderer, inputs <-chan terminal.Input) error {
	var prompt terminal.Prompt
	for {
		var in terminal.Input
		select {
		case <-ctx.Done():
			return nil
		case in = <-inputs:
		}

		if !prompt.Active() {
			switch {
			case in.Key == terminal.Interrupt, in.Rune == 'q':
				return errQuit
			case in.Rune == terminal.PromptPrefix:
				prompt.Open()
				r.SetPrompt(string(terminal.PromptPrefix))
				if err := setTextFocus(ctx, runner, true); err != nil {
					return err
				}
				continue
			}
		}

		var err error
		if in.Key != "" {
			err = runner.Key(ctx, in.Key)
		} else {
			err = runner.Gesture(ctx)
		}
		if err != nil {
			return ignoreStopped(err)
		}

		if !prompt.Active() {
			continue
		}
		line, submitted := prompt.Feed(in)
		if prompt.Active() {
			r.SetPrompt(string(terminal.PromptPrefix) + prompt.Text())
			continue
		}
		r.SetPrompt("")
		if err := setTextFocus(ctx, runner, false); err != nil {
			return err
		}
		if submitted {
			applyEdit(ctx, runner, line)
		}
		r.Flush()
	}
}

func setTextFocus(ctx context.Context, runner *session.Runner, focused bool) error {
	err := runner.Submit(ctx, func(s *session.Session) { s.SetTextFocus(focused) })
	return ignoreStopped(err)
}

func applyEdit(ctx context.Context, runner *session.Runner, line string) {
	edit, err := terminal.ParseEdit(line)
	_ = runner.Call(ctx, func(s *session.Session) error {
		if err != nil {
			s.Notify("%v", err)
			return nil
		}
		if !s.EditMark(ctx, edit.Kind, edit.From, edit.To) {
			s.Notify("no %s mark at %s, or invalid time %q", edit.Kind, timecode.Format(edit.From), edit.To)
		}
		return nil
	})
}

func ignoreStopped(err error) error {
	if errors.Is(err, session.ErrStopped) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// watchSubtitle reloads cues when subsPath changes. The directory is watched
// so editors that replace the file by rename are seen.
func watchSubtitle(ctx context.Context, subsPath string, runner *session.Runner, log *logging.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	target, err := filepath.Abs(subsPath)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch subtitles: %w", err)
	}
	log.Infow("Watching subtitles", "path", target)

	reload := make(chan struct{}, 1)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(reloadDebounce, func() {
					select {
					case reload <- struct{}{}:
					default:
					}
				})
			}

		case <-reload:
			cues, err := loadCues(target)
			if err != nil {
				log.Warnw("Subtitle reload failed", "path", target, "error", err)
				continue
			}
			log.Infow("Subtitles reloaded", "cues", cues.Len())
			if err := runner.ReloadCues(ctx, cues); err != nil {
				return ignoreStopped(err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warnw("Subtitle watcher error", "error", err)
		}
	}
}
