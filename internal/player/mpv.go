package player

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mgpai22/shadowplay/internal/binaries"
	"github.com/mgpai22/shadowplay/internal/logging"
)

const (
	defaultCommandTimeout = 2 * time.Second
	defaultDialTimeout    = 10 * time.Second
	dialRetryDelay        = 50 * time.Millisecond
	eventBuffer           = 256
	maxMessageSize        = 1 << 20

	// MaxAmplification is the largest multiplier Amplify accepts.
	MaxAmplification = 4.0
)

// observed property ids
const (
	obsTimePos = iota + 1
	obsPause
	obsDuration
	obsSpeed
	obsVolume
	obsMute
)

var observed = map[int]string{
	obsTimePos:  "time-pos",
	obsPause:    "pause",
	obsDuration: "duration",
	obsSpeed:    "speed",
	obsVolume:   "volume",
	obsMute:     "mute",
}

type request struct {
	Command   []interface{} `json:"command"`
	RequestID int64         `json:"request_id"`
}

type message struct {
	Event     string          `json:"event"`
	ID        int             `json:"id"`
	Name      string          `json:"name"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	RequestID *int64          `json:"request_id"`
	Reason    string          `json:"reason"`
}

// MPV drives an mpv process over its JSON IPC socket. Property getters
// return values cached from mpv's property-change notifications.
type MPV struct {
	conn    net.Conn
	logger  *logging.Logger
	timeout time.Duration

	writeMu sync.Mutex
	nextID  atomic.Int64

	mu       sync.Mutex
	pending  map[int64]chan message
	position float64
	duration float64
	paused   bool
	speed    float64
	native   float64
	amp      float64
	muted    bool

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once

	cmd    *exec.Cmd
	socket string
	owned  bool
}

var (
	_ Playback  = (*MPV)(nil)
	_ Amplifier = (*MPV)(nil)
)

// NewMPV wraps an established IPC connection and starts observing playback.
func NewMPV(conn net.Conn, logger *logging.Logger) (*MPV, error) {
	m := &MPV{
		conn:    conn,
		logger:  logging.OrNop(logger).Named("mpv"),
		timeout: defaultCommandTimeout,
		pending: make(map[int64]chan message),
		paused:  true,
		speed:   1,
		native:  1,
		amp:     1,
		events:  make(chan Event, eventBuffer),
		done:    make(chan struct{}),
	}
	go m.readLoop()

	for id := obsTimePos; id <= obsMute; id++ {
		if _, err := m.command("observe_property", id, observed[id]); err != nil {
			_ = m.Close()
			return nil, fmt.Errorf("observe %s: %w", observed[id], err)
		}
	}
	if _, err := m.command("set_property", "volume-max", MaxAmplification*100); err != nil {
		m.logger.Warnw("Failed to raise volume-max, amplification limited", "error", err)
	}
	return m, nil
}

// Dial connects to an mpv instance already listening on socket.
func Dial(ctx context.Context, socket string, logger *logging.Logger) (*MPV, error) {
	conn, err := dialRetry(ctx, socket)
	if err != nil {
		return nil, err
	}
	return NewMPV(conn, logger)
}

func dialRetry(ctx context.Context, socket string) (net.Conn, error) {
	var d net.Dialer
	for {
		conn, err := d.DialContext(ctx, "unix", socket)
		if err == nil {
			return conn, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect to mpv at %s: %w", socket, err)
		case <-time.After(dialRetryDelay):
		}
	}
}

// LaunchOptions configure a new mpv process.
type LaunchOptions struct {
	Binary   string // resolved with binaries.MPV when empty
	Media    string
	Subtitle string
	Socket   string // a temp path when empty
	Args     []string
}

// Launch starts mpv paused on opts.Media and connects to its IPC socket.
func Launch(ctx context.Context, opts LaunchOptions, logger *logging.Logger) (*MPV, error) {
	bin := opts.Binary
	if bin == "" {
		var err error
		if bin, err = binaries.Lookup(binaries.MPV); err != nil {
			return nil, err
		}
	}
	socket := opts.Socket
	if socket == "" {
		socket = filepath.Join(os.TempDir(), "shadowplay-"+uuid.NewString()+".sock")
	}

	args := []string{
		"--input-ipc-server=" + socket,
		"--pause",
		"--keep-open=yes",
		"--really-quiet",
		fmt.Sprintf("--volume-max=%d", int(MaxAmplification*100)),
	}
	if opts.Subtitle != "" {
		args = append(args, "--sub-file="+opts.Subtitle)
	}
	args = append(args, opts.Args...)
	args = append(args, "--", opts.Media)

	cmd := exec.CommandContext(ctx, bin, args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start mpv: %w", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()
	conn, err := dialRetry(dialCtx, socket)
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}

	m, err := NewMPV(conn, logger)
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}
	m.cmd = cmd
	m.socket = socket
	m.owned = true
	m.logger.Debugw("Launched mpv", "pid", cmd.Process.Pid, "socket", socket)
	return m, nil
}

// Events delivers playback observations. The channel closes when the
// connection ends. TimeUpdate events are dropped when the buffer is full.
func (m *MPV) Events() <-chan Event { return m.events }

// Done is closed once the connection has ended.
func (m *MPV) Done() <-chan struct{} { return m.done }

func (m *MPV) readLoop() {
	defer close(m.events)
	defer m.shutdown()

	scanner := bufio.NewScanner(m.conn)
	scanner.Buffer(make([]byte, 64*1024), maxMessageSize)
	for scanner.Scan() {
		var msg message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			m.logger.Debugw("Skipping malformed mpv message", "error", err)
			continue
		}
		if msg.Event != "" {
			m.handleEvent(msg)
			continue
		}
		if msg.RequestID != nil {
			m.mu.Lock()
			ch, ok := m.pending[*msg.RequestID]
			delete(m.pending, *msg.RequestID)
			m.mu.Unlock()
			if ok {
				ch <- msg
			}
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		m.logger.Debugw("mpv connection ended", "error", err)
	}
}

func (m *MPV) handleEvent(msg message) {
	switch msg.Event {
	case "property-change":
		m.handleProperty(msg)
	case "seek":
		m.emit(Event{Kind: Seeking, Position: m.CurrentTime()})
	case "playback-restart":
		m.emit(Event{Kind: Seeked, Position: m.CurrentTime()})
	case "end-file":
		m.emit(Event{Kind: Ended, Position: m.CurrentTime()})
	}
}

func (m *MPV) handleProperty(msg message) {
	if len(msg.Data) == 0 || string(msg.Data) == "null" {
		return
	}
	switch msg.ID {
	case obsTimePos:
		var v float64
		if json.Unmarshal(msg.Data, &v) != nil {
			return
		}
		m.mu.Lock()
		m.position = v
		m.mu.Unlock()
		m.emit(Event{Kind: TimeUpdate, Position: v})
	case obsPause:
		var v bool
		if json.Unmarshal(msg.Data, &v) != nil {
			return
		}
		m.mu.Lock()
		changed := m.paused != v
		m.paused = v
		pos := m.position
		m.mu.Unlock()
		if !changed {
			return
		}
		if v {
			m.emit(Event{Kind: Pause, Position: pos})
		} else {
			m.emit(Event{Kind: Play, Position: pos})
		}
	case obsDuration:
		var v float64
		if json.Unmarshal(msg.Data, &v) != nil {
			return
		}
		m.mu.Lock()
		m.duration = v
		m.mu.Unlock()
		m.emit(Event{Kind: DurationChange, Position: v})
	case obsSpeed:
		var v float64
		if json.Unmarshal(msg.Data, &v) == nil {
			m.mu.Lock()
			m.speed = v
			m.mu.Unlock()
		}
	case obsVolume:
		var v float64
		if json.Unmarshal(msg.Data, &v) == nil {
			m.mu.Lock()
			m.native, m.amp = splitVolume(v, m.amp)
			m.mu.Unlock()
		}
	case obsMute:
		var v bool
		if json.Unmarshal(msg.Data, &v) == nil {
			m.mu.Lock()
			m.muted = v
			m.mu.Unlock()
		}
	}
}

// splitVolume maps an mpv volume percentage onto native volume and gain. The
// current gain is kept while the native share fits in [0, 1]; only a level
// past that ceiling raises the gain.
func splitVolume(percent, amp float64) (native, gain float64) {
	if amp < 1 || math.IsNaN(amp) {
		amp = 1
	}
	native = percent / (100 * amp)
	if native <= 1 {
		return math.Max(native, 0), amp
	}
	return 1, math.Min(percent/100, MaxAmplification)
}

func (m *MPV) emit(ev Event) {
	if ev.Kind == TimeUpdate {
		select {
		case m.events <- ev:
		default:
		}
		return
	}
	select {
	case m.events <- ev:
	case <-m.done:
	}
}

func (m *MPV) command(args ...interface{}) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	return m.CommandContext(ctx, args...)
}

// CommandContext sends a raw mpv command and waits for its reply.
func (m *MPV) CommandContext(ctx context.Context, args ...interface{}) (json.RawMessage, error) {
	id := m.nextID.Add(1)
	ch := make(chan message, 1)

	select {
	case <-m.done:
		return nil, ErrClosed
	default:
	}
	m.mu.Lock()
	m.pending[id] = ch
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.pending, id)
		m.mu.Unlock()
	}()

	line, err := json.Marshal(request{Command: args, RequestID: id})
	if err != nil {
		return nil, fmt.Errorf("encode mpv command: %w", err)
	}
	m.writeMu.Lock()
	_, err = m.conn.Write(append(line, '\n'))
	m.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("write mpv command: %w", err)
	}

	select {
	case msg := <-ch:
		if msg.Error != "" && msg.Error != "success" {
			return nil, fmt.Errorf("mpv %v: %s", args[0], msg.Error)
		}
		return msg.Data, nil
	case <-m.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *MPV) setProperty(name string, value interface{}) error {
	_, err := m.command("set_property", name, value)
	return err
}

func (m *MPV) CurrentTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

func (m *MPV) Seek(t float64) error {
	if t < 0 || math.IsNaN(t) {
		t = 0
	}
	if _, err := m.command("seek", t, "absolute"); err != nil {
		return err
	}
	m.mu.Lock()
	m.position = t
	m.mu.Unlock()
	return nil
}

func (m *MPV) Duration() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duration
}

func (m *MPV) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

func (m *MPV) Play() error  { return m.setProperty("pause", false) }
func (m *MPV) Pause() error { return m.setProperty("pause", true) }

func (m *MPV) PlaybackRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speed
}

func (m *MPV) SetPlaybackRate(rate float64) error {
	if !ValidRate(rate) {
		return fmt.Errorf("%w: %v", ErrInvalidRate, rate)
	}
	return m.setProperty("speed", rate)
}

func (m *MPV) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.native
}

func (m *MPV) SetVolume(v float64) error {
	v = math.Min(math.Max(v, 0), 1)
	m.mu.Lock()
	m.native = v
	percent := v * m.amp * 100
	m.mu.Unlock()
	return m.setProperty("volume", percent)
}

func (m *MPV) SetMuted(muted bool) error {
	return m.setProperty("mute", muted)
}

// Amplify sets the gain multiplier applied on top of native volume.
func (m *MPV) Amplify(multiplier float64) error {
	if multiplier < 1 || multiplier > MaxAmplification || math.IsNaN(multiplier) {
		return fmt.Errorf("amplification %v outside [1, %v]", multiplier, MaxAmplification)
	}
	m.mu.Lock()
	m.amp = multiplier
	percent := m.native * multiplier * 100
	m.mu.Unlock()
	return m.setProperty("volume", percent)
}

// Amplification returns the gain multiplier currently applied.
func (m *MPV) Amplification() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.amp
}

func (m *MPV) shutdown() {
	m.closeOnce.Do(func() { close(m.done) })
}

// Close ends the connection. A launched mpv is asked to quit and reaped.
func (m *MPV) Close() error {
	if m.owned {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		_, _ = m.CommandContext(ctx, "quit")
		cancel()
	}
	m.shutdown()
	err := m.conn.Close()
	if m.cmd != nil {
		waited := make(chan struct{})
		go func() {
			_ = m.cmd.Wait()
			close(waited)
		}()
		select {
		case <-waited:
		case <-time.After(2 * time.Second):
			_ = m.cmd.Process.Kill()
			<-waited
		}
		_ = os.Remove(m.socket)
	}
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
