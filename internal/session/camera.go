package session

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Camera источник отсканированного текста: камера в браузере, киоск через NATS.
// Start не должен вызывать onFrame синхронно.
type Camera interface {
	Start(onFrame func(raw string)) error
	Stop() error
}

// Manager владеет камерой эксклюзивно: новая сессия сначала освобождает предыдущую
type Manager struct {
	camera Camera
	logger *zap.Logger

	mu     sync.Mutex
	active *Session
}

func NewManager(camera Camera, logger *zap.Logger) *Manager {
	return &Manager{
		camera: camera,
		logger: logger,
	}
}

// Start открывает сессию сканирования. onScan получает первый кадр,
// после чего камера останавливается.
func (m *Manager) Start(onScan func(s *Session, raw string)) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		if m.active.Abort() {
			m.logger.Info("previous scan session aborted", zap.String("session_id", m.active.ID()))
		}
		m.active.releaseResources()
		m.active = nil
	}

	s := New()
	if err := s.Transition(StateScanning); err != nil {
		return nil, err
	}

	s.bind(func() {
		if err := m.camera.Stop(); err != nil {
			m.logger.Warn("failed to stop camera", zap.Error(err), zap.String("session_id", s.ID()))
		}
	})

	err := m.camera.Start(func(raw string) {
		if !s.takeFrame() {
			m.logger.Debug("late frame ignored", zap.String("session_id", s.ID()))
			return
		}
		s.releaseResources()
		onScan(s, raw)
	})
	if err != nil {
		s.bind(nil)
		s.Abort()
		return nil, fmt.Errorf("failed to start camera: %w", err)
	}

	m.active = s
	m.logger.Debug("scan session started", zap.String("session_id", s.ID()))
	return s, nil
}

func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Close прерывает активную сессию и освобождает камеру
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return
	}
	m.active.Abort()
	m.active.releaseResources()
	m.active = nil
}
