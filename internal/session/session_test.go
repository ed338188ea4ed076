package session

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestSessionHappyPath(t *testing.T) {
	s := New()

	steps := []State{StateScanning, StateDecoded, StateResolving, StateResolved, StateFormEditing, StateSubmitting, StatePersisted}
	for _, step := range steps {
		if err := s.Transition(step); err != nil {
			t.Fatalf("unexpected error on transition to %s: %v", step, err)
		}
	}

	if s.Alive() {
		t.Error("expected session to be closed after persisting")
	}

	expected := append([]State{StateIdle}, steps...)
	if !reflect.DeepEqual(s.History(), expected) {
		t.Errorf("expected history %v, but got %v", expected, s.History())
	}
}

func TestSessionInvalidTransition(t *testing.T) {
	tests := []struct {
		name  string
		setup []State
		to    State
	}{
		{name: "idle_to_resolving", to: StateResolving},
		{name: "scanning_to_submitting", setup: []State{StateScanning}, to: StateSubmitting},
		{name: "resolved_to_persisted", setup: []State{StateScanning, StateDecoded, StateResolving, StateResolved}, to: StatePersisted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			for _, step := range tt.setup {
				if err := s.Transition(step); err != nil {
					t.Fatalf("unexpected setup error: %v", err)
				}
			}

			err := s.Transition(tt.to)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("expected ErrInvalidTransition, but got %v", err)
			}
		})
	}
}

func TestSessionFail(t *testing.T) {
	tests := []struct {
		name          string
		manualInput   bool
		setup         []State
		expectedState State
	}{
		{name: "decode_failure_without_input", setup: []State{StateScanning}, expectedState: StateIdle},
		{name: "lookup_failure_without_input", setup: []State{StateScanning, StateDecoded, StateResolving}, expectedState: StateIdle},
		{name: "decode_failure_with_input", manualInput: true, setup: []State{StateFormEditing, StateScanning}, expectedState: StateFormEditing},
		{name: "lookup_failure_with_input", manualInput: true, setup: []State{StateScanning, StateDecoded}, expectedState: StateFormEditing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			if tt.manualInput {
				s.MarkManualInput()
			}
			for _, step := range tt.setup {
				if err := s.Transition(step); err != nil {
					t.Fatalf("unexpected setup error: %v", err)
				}
			}

			cause := errors.New("bad signature")
			state, err := s.Fail(cause)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if state != tt.expectedState {
				t.Errorf("expected state %s, but got %s", tt.expectedState, state)
			}
			if !errors.Is(s.Err(), cause) {
				t.Errorf("expected last error to be recorded, but got %v", s.Err())
			}
			history := s.History()
			if history[len(history)-2] != StateFailed {
				t.Errorf("expected failed state before %s, but got %v", tt.expectedState, history)
			}
		})
	}
}

func TestSessionFailNotAllowedFromForm(t *testing.T) {
	s := New()
	if err := s.Transition(StateFormEditing); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := s.Fail(errors.New("boom")); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, but got %v", err)
	}
}

func TestSessionAbort(t *testing.T) {
	s := New()
	if err := s.Transition(StateScanning); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !s.Abort() {
		t.Fatal("expected abort to succeed")
	}
	if s.Abort() {
		t.Error("expected second abort to be a no-op")
	}

	// поздний результат после закрытия
	if err := s.Transition(StateDecoded); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, but got %v", err)
	}
	if _, err := s.Fail(errors.New("late")); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, but got %v", err)
	}
}

// Mock для Camera
type mockCamera struct {
	mu      sync.Mutex
	onFrame func(raw string)
	starts  int
	stops   int
	running bool
	err     error
}

func (m *mockCamera) Start(onFrame func(raw string)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.running {
		panic("camera started twice without stop")
	}
	m.starts++
	m.running = true
	m.onFrame = onFrame
	return nil
}

func (m *mockCamera) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	m.running = false
	return nil
}

func (m *mockCamera) frame(raw string) {
	m.mu.Lock()
	onFrame := m.onFrame
	m.mu.Unlock()
	onFrame(raw)
}

func TestManagerDeliversSingleFrame(t *testing.T) {
	camera := &mockCamera{}
	manager := NewManager(camera, zaptest.NewLogger(t))

	var received []string
	s, err := manager.Start(func(s *Session, raw string) {
		received = append(received, raw)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.State() != StateScanning {
		t.Errorf("expected scanning state, but got %s", s.State())
	}

	camera.frame("first")
	camera.frame("second")

	if !reflect.DeepEqual(received, []string{"first"}) {
		t.Errorf("expected only the first frame, but got %v", received)
	}
	if camera.stops != 1 || camera.running {
		t.Errorf("expected camera to stop after first frame, stops=%d running=%t", camera.stops, camera.running)
	}
}

func TestManagerReleasesPreviousSession(t *testing.T) {
	camera := &mockCamera{}
	manager := NewManager(camera, zaptest.NewLogger(t))

	first, err := manager.Start(func(s *Session, raw string) {})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	firstFrame := camera.onFrame

	second, err := manager.Start(func(s *Session, raw string) {
		t.Errorf("unexpected frame for second session: %s", raw)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.State() != StateAborted {
		t.Errorf("expected first session to be aborted, but got %s", first.State())
	}
	if camera.starts != 2 || camera.stops != 1 {
		t.Errorf("expected 2 starts and 1 stop, got starts=%d stops=%d", camera.starts, camera.stops)
	}
	if manager.Active() != second {
		t.Error("expected second session to be active")
	}

	// кадр, пришедший в закрытую сессию, игнорируется
	firstFrame("late")

	manager.Close()
	if second.State() != StateAborted {
		t.Errorf("expected second session to be aborted on close, but got %s", second.State())
	}
	if camera.running {
		t.Error("expected camera to be released on close")
	}
}

func TestManagerCameraStartError(t *testing.T) {
	camera := &mockCamera{err: errors.New("permission denied")}
	manager := NewManager(camera, zaptest.NewLogger(t))

	if _, err := manager.Start(func(s *Session, raw string) {}); err == nil {
		t.Error("expected error, but got nil")
	}
	if manager.Active() != nil {
		t.Error("expected no active session")
	}
	if camera.stops != 0 {
		t.Errorf("expected no stop for a camera that never started, got %d", camera.stops)
	}
}
