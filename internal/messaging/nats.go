package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"qrcode_dashboard/graph/model"
	"qrcode_dashboard/internal/config"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

type NATSClient interface {
	PublishScanResult(ctx context.Context, result *ScanResultMessage) error
	PublishMemberEvent(ctx context.Context, event *model.MemberEvent) error
	KioskCamera() *KioskCamera
	Close()
}

type subscription interface {
	Unsubscribe() error
}

// Интерфейс для nats.Conn
type natsConnection interface {
	Publish(subj string, data []byte) error
	Subscribe(subj string, cb nats.MsgHandler) (subscription, error)
	Close()
}

type conn struct {
	*nats.Conn
}

func (c conn) Subscribe(subj string, cb nats.MsgHandler) (subscription, error) {
	sub, err := c.Conn.Subscribe(subj, cb)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

type natsClient struct {
	conn     natsConnection
	subjects config.NATSConfig
	logger   *zap.Logger
	camera   *KioskCamera
}

func NewNATSClient(cfg config.NATSConfig, logger *zap.Logger) (NATSClient, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info("connected to NATS", zap.String("url", cfg.URL))
	return newNATSClient(conn{nc}, cfg, logger), nil
}

func newNATSClient(c natsConnection, cfg config.NATSConfig, logger *zap.Logger) *natsClient {
	return &natsClient{
		conn:     c,
		subjects: cfg,
		logger:   logger,
		camera: &KioskCamera{
			conn:    c,
			subject: cfg.ScanSubject,
			logger:  logger,
		},
	}
}

const (
	ScanStatusResolved = "resolved"
	ScanStatusFailed   = "failed"
)

// ScanResultMessage итог обработки скана с киоска
type ScanResultMessage struct {
	SessionID string          `json:"session_id"`
	Status    string          `json:"status"`
	Member    *model.Identity `json:"member,omitempty"`
	Error     string          `json:"error,omitempty"`
}

func (c *natsClient) PublishScanResult(ctx context.Context, result *ScanResultMessage) error {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("failed to marshal scan result", zap.Error(err))
		return fmt.Errorf("failed to marshal scan result: %w", err)
	}

	err = c.conn.Publish(c.subjects.ResultSubject, data)
	if err != nil {
		c.logger.Error("failed to publish scan result", zap.Error(err), zap.String("session_id", result.SessionID))
		return fmt.Errorf("failed to publish scan result: %w", err)
	}

	c.logger.Info("scan result published", zap.String("session_id", result.SessionID), zap.String("status", result.Status))
	return nil
}

func (c *natsClient) PublishMemberEvent(ctx context.Context, event *model.MemberEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		c.logger.Error("failed to marshal member event", zap.Error(err))
		return fmt.Errorf("failed to marshal member event: %w", err)
	}

	err = c.conn.Publish(c.subjects.EventSubject, data)
	if err != nil {
		c.logger.Error("failed to publish member event", zap.Error(err), zap.String("member_id", event.MemberID))
		return fmt.Errorf("failed to publish member event: %w", err)
	}

	c.logger.Info("member event published", zap.String("member_id", event.MemberID), zap.String("type", string(event.Type)))
	return nil
}

func (c *natsClient) KioskCamera() *KioskCamera {
	return c.camera
}

func (c *natsClient) Close() {
	if c.conn != nil {
		if err := c.camera.Stop(); err != nil {
			c.logger.Warn("failed to stop kiosk camera", zap.Error(err))
		}
		c.conn.Close()
		c.logger.Info("NATS connection closed")
	}
}

var ErrCameraBusy = errors.New("kiosk camera is already started")

// KioskCamera источник сканов от киосков: каждое сообщение в subject сканирования
// считается одним кадром с текстом QR-кода
type KioskCamera struct {
	conn    natsConnection
	subject string
	logger  *zap.Logger

	mu  sync.Mutex
	sub subscription
}

func (k *KioskCamera) Start(onFrame func(raw string)) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.sub != nil {
		return ErrCameraBusy
	}

	sub, err := k.conn.Subscribe(k.subject, func(msg *nats.Msg) {
		if len(msg.Data) == 0 {
			k.logger.Warn("empty scan message ignored", zap.String("subject", msg.Subject))
			return
		}
		onFrame(string(msg.Data))
	})
	if err != nil {
		k.logger.Error("failed to subscribe to kiosk scans", zap.Error(err), zap.String("subject", k.subject))
		return fmt.Errorf("failed to subscribe to kiosk scans: %w", err)
	}

	k.sub = sub
	k.logger.Debug("kiosk camera started", zap.String("subject", k.subject))
	return nil
}

func (k *KioskCamera) Stop() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.sub == nil {
		return nil
	}
	sub := k.sub
	k.sub = nil

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("failed to unsubscribe from kiosk scans: %w", err)
	}
	k.logger.Debug("kiosk camera stopped", zap.String("subject", k.subject))
	return nil
}
