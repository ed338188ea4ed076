package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

type State string

const (
	StateIdle        State = "idle"
	StateScanning    State = "scanning"
	StateDecoded     State = "decoded"
	StateResolving   State = "resolving"
	StateResolved    State = "resolved"
	StateFormEditing State = "form_editing"
	StateSubmitting  State = "submitting"
	StatePersisted   State = "persisted"
	StateRolledBack  State = "rolled_back"
	StateAborted     State = "aborted"
	StateFailed      State = "failed"
)

var (
	ErrSessionClosed     = errors.New("scan session is closed")
	ErrInvalidTransition = errors.New("invalid scan session transition")
)

// переходы цепочки scan → decode → resolve → form → submit
var transitions = map[State][]State{
	StateIdle:        {StateScanning, StateFormEditing},
	StateScanning:    {StateDecoded, StateFailed},
	StateDecoded:     {StateResolving, StateFailed},
	StateResolving:   {StateResolved, StateFailed},
	StateResolved:    {StateFormEditing},
	StateFormEditing: {StateSubmitting, StateScanning},
	StateSubmitting:  {StatePersisted, StateRolledBack},
}

func (s State) Terminal() bool {
	return s == StatePersisted || s == StateRolledBack || s == StateAborted
}

func canTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Session одна попытка добавить участника: от сканирования до сохранения.
// После закрытия поздние результаты сетевых вызовов игнорируются.
type Session struct {
	id string

	mu          sync.Mutex
	state       State
	manualInput bool
	frameTaken  bool
	lastErr     error
	history     []State
	release     func()
	releaseOnce sync.Once
}

func New() *Session {
	return &Session{
		id:      uuid.New().String(),
		state:   StateIdle,
		history: []State{StateIdle},
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) History() []State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]State, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Alive false после достижения конечного состояния
func (s *Session) Alive() bool {
	return !s.State().Terminal()
}

// MarkManualInput отмечает, что пользователь уже что-то ввёл вручную:
// после ошибки сессия вернётся в форму, а не в Idle
func (s *Session) MarkManualInput() {
	s.mu.Lock()
	s.manualInput = true
	s.mu.Unlock()
}

func (s *Session) Transition(to State) error {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if !canTransition(s.state, to) {
		from := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if to == StateScanning {
		s.frameTaken = false
	}
	s.setState(to)
	terminal := to.Terminal()
	s.mu.Unlock()

	if terminal {
		s.releaseResources()
	}
	return nil
}

// Fail переводит сессию в Failed и сразу возвращает управление:
// в FormEditing при наличии ручного ввода, иначе в Idle
func (s *Session) Fail(err error) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return s.state, ErrSessionClosed
	}
	if !canTransition(s.state, StateFailed) {
		return s.state, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, StateFailed)
	}

	s.lastErr = err
	s.setState(StateFailed)
	if s.manualInput {
		s.setState(StateFormEditing)
	} else {
		s.setState(StateIdle)
	}
	return s.state, nil
}

// Abort закрывает сессию из любого незавершённого состояния
func (s *Session) Abort() bool {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return false
	}
	s.setState(StateAborted)
	s.mu.Unlock()

	s.releaseResources()
	return true
}

// takeFrame пропускает только первый кадр с камеры
func (s *Session) takeFrame() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frameTaken || s.state != StateScanning {
		return false
	}
	s.frameTaken = true
	return true
}

func (s *Session) setState(to State) {
	s.state = to
	s.history = append(s.history, to)
}

func (s *Session) bind(release func()) {
	s.mu.Lock()
	s.release = release
	s.mu.Unlock()
}

// releaseResources освобождает камеру ровно один раз
func (s *Session) releaseResources() {
	s.mu.Lock()
	release := s.release
	s.mu.Unlock()

	if release == nil {
		return
	}
	s.releaseOnce.Do(release)
}
