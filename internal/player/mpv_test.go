package player

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"reflect"
	"sync"
	"testing"
	"time"
)

// fakeServer answers mpv IPC requests on one end of a pipe.
type fakeServer struct {
	conn net.Conn

	writeMu sync.Mutex
	mu      sync.Mutex
	cmds    [][]interface{}
	fail    map[string]string // command name → error reply
}

func newFakeServer(t *testing.T) (*fakeServer, *MPV) {
	t.Helper()
	client, server := net.Pipe()
	f := &fakeServer{conn: server, fail: map[string]string{}}
	go f.serve()

	m, err := NewMPV(client, nil)
	if err != nil {
		t.Fatalf("NewMPV failed: %v", err)
	}
	t.Cleanup(func() {
		_ = m.Close()
		_ = server.Close()
	})
	return f, m
}

func (f *fakeServer) serve() {
	scanner := bufio.NewScanner(f.conn)
	for scanner.Scan() {
		var req request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			continue
		}
		f.mu.Lock()
		f.cmds = append(f.cmds, req.Command)
		name, _ := req.Command[0].(string)
		reply := "success"
		if msg, ok := f.fail[name]; ok {
			reply = msg
		}
		f.mu.Unlock()

		out, _ := json.Marshal(map[string]interface{}{
			"request_id": req.RequestID,
			"error":      reply,
			"data":       nil,
		})
		f.write(string(out))
	}
}

func (f *fakeServer) write(line string) {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	_, _ = f.conn.Write([]byte(line + "\n"))
}

func (f *fakeServer) last() []interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cmds[len(f.cmds)-1]
}

func (f *fakeServer) commands() [][]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]interface{}(nil), f.cmds...)
}

func nextEvent(t *testing.T, m *MPV) Event {
	t.Helper()
	select {
	case ev, ok := <-m.Events():
		if !ok {
			t.Fatal("event channel closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestMPVObservesProperties(t *testing.T) {
	f, _ := newFakeServer(t)
	cmds := f.commands()
	if len(cmds) != 7 {
		t.Fatalf("expected 6 observations and volume-max, got %v", cmds)
	}
	if !reflect.DeepEqual(cmds[0], []interface{}{"observe_property", 1.0, "time-pos"}) {
		t.Errorf("unexpected first command %v", cmds[0])
	}
	if !reflect.DeepEqual(cmds[6], []interface{}{"set_property", "volume-max", 400.0}) {
		t.Errorf("unexpected volume-max command %v", cmds[6])
	}
}

func TestMPVEvents(t *testing.T) {
	f, m := newFakeServer(t)

	go f.write(`{"event":"property-change","id":1,"name":"time-pos","data":12.5}`)
	if ev := nextEvent(t, m); ev.Kind != TimeUpdate || ev.Position != 12.5 {
		t.Errorf("unexpected event %+v", ev)
	}
	if m.CurrentTime() != 12.5 {
		t.Errorf("expected cached position 12.5, got %v", m.CurrentTime())
	}

	go f.write(`{"event":"property-change","id":2,"name":"pause","data":false}`)
	if ev := nextEvent(t, m); ev.Kind != Play {
		t.Errorf("expected play, got %v", ev.Kind)
	}
	if m.Paused() {
		t.Error("expected unpaused")
	}

	go f.write(`{"event":"seek"}`)
	if ev := nextEvent(t, m); ev.Kind != Seeking || ev.Position != 12.5 {
		t.Errorf("expected seeking at 12.5, got %+v", ev)
	}
	go f.write(`{"event":"playback-restart"}`)
	if ev := nextEvent(t, m); ev.Kind != Seeked {
		t.Errorf("expected seeked, got %v", ev.Kind)
	}

	go f.write(`{"event":"property-change","id":3,"name":"duration","data":90}`)
	if ev := nextEvent(t, m); ev.Kind != DurationChange || m.Duration() != 90 {
		t.Errorf("expected duration 90, got %+v / %v", ev, m.Duration())
	}
}

func TestMPVCommands(t *testing.T) {
	f, m := newFakeServer(t)

	if err := m.Seek(10.05); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(f.last(), []interface{}{"seek", 10.05, "absolute"}) {
		t.Errorf("unexpected seek command %v", f.last())
	}
	if m.CurrentTime() != 10.05 {
		t.Errorf("expected optimistic position update, got %v", m.CurrentTime())
	}

	if err := m.Pause(); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(f.last(), []interface{}{"set_property", "pause", true}) {
		t.Errorf("unexpected pause command %v", f.last())
	}

	if err := m.Amplify(2); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(f.last(), []interface{}{"set_property", "volume", 200.0}) {
		t.Errorf("unexpected amplify command %v", f.last())
	}
	if err := m.SetVolume(0.5); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(f.last(), []interface{}{"set_property", "volume", 100.0}) {
		t.Errorf("expected volume 0.5 x2 = 100, got %v", f.last())
	}

	if err := m.Amplify(5); err == nil {
		t.Error("expected error for amplification above 4")
	}
	if err := m.SetPlaybackRate(3); !errors.Is(err, ErrInvalidRate) {
		t.Errorf("expected ErrInvalidRate, got %v", err)
	}
	if err := m.SetPlaybackRate(1.5); err != nil {
		t.Fatal(err)
	}
}

func TestMPVErrorReply(t *testing.T) {
	f, m := newFakeServer(t)
	f.mu.Lock()
	f.fail["seek"] = "property unavailable"
	f.mu.Unlock()

	if err := m.Seek(3); err == nil {
		t.Error("expected error reply to surface")
	}
}

func TestMPVCloseEndsEvents(t *testing.T) {
	_, m := newFakeServer(t)
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("done not closed")
	}
	for range m.Events() {
	}
	if err := m.Play(); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after close, got %v", err)
	}
}
