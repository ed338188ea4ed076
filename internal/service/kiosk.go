package service

import (
	"context"
	"errors"

	"qrcode_dashboard/internal/messaging"
	"qrcode_dashboard/internal/session"

	"go.uber.org/zap"
)

// ResultPublisher получатель результатов сканирования с киосков
type ResultPublisher interface {
	PublishScanResult(ctx context.Context, result *messaging.ScanResultMessage) error
}

// KioskFlow обрабатывает сканы киосков: одна сессия на кадр, после каждого
// скана камера запускается заново
type KioskFlow struct {
	manager *session.Manager
	scans   ScanService
	results ResultPublisher
	logger  *zap.Logger
}

func NewKioskFlow(camera session.Camera, scans ScanService, results ResultPublisher, logger *zap.Logger) *KioskFlow {
	return &KioskFlow{
		manager: session.NewManager(camera, logger),
		scans:   scans,
		results: results,
		logger:  logger,
	}
}

// Run блокируется до отмены ctx
func (k *KioskFlow) Run(ctx context.Context) error {
	if err := k.start(ctx); err != nil {
		return err
	}
	k.logger.Info("kiosk scan flow started")

	<-ctx.Done()
	k.manager.Close()
	k.logger.Info("kiosk scan flow stopped")
	return nil
}

func (k *KioskFlow) start(ctx context.Context) error {
	_, err := k.manager.Start(func(s *session.Session, raw string) {
		k.handle(ctx, s, raw)
		if ctx.Err() != nil {
			return
		}
		if err := k.start(ctx); err != nil {
			k.logger.Error("failed to restart kiosk camera", zap.Error(err))
		}
	})
	return err
}

func (k *KioskFlow) handle(ctx context.Context, s *session.Session, raw string) {
	draft, err := k.scans.ProcessScan(ctx, s, SourceKiosk, raw)
	if errors.Is(err, session.ErrSessionClosed) {
		return
	}

	result := &messaging.ScanResultMessage{SessionID: s.ID()}
	if err != nil {
		result.Status = messaging.ScanStatusFailed
		result.Error = UserMessage(err)
	} else {
		result.Status = messaging.ScanStatusResolved
		result.Member = draft.Member
	}

	if err := k.results.PublishScanResult(ctx, result); err != nil {
		k.logger.Warn("failed to publish kiosk scan result", zap.Error(err), zap.String("session_id", s.ID()))
	}
}

// Active текущая сессия киоска, nil если камера не запущена
func (k *KioskFlow) Active() *session.Session {
	return k.manager.Active()
}
