package service

import (
	"context"
	"errors"
	"fmt"

	"qrcode_dashboard/graph/model"
	"qrcode_dashboard/internal/assembler"
	"qrcode_dashboard/internal/decoder"
	"qrcode_dashboard/internal/metrics"
	"qrcode_dashboard/internal/qrcode"
	"qrcode_dashboard/internal/session"

	"go.uber.org/zap"
)

// Source откуда пришёл текст QR-кода
type Source string

const (
	SourceCamera Source = "camera"
	SourceFile   Source = "file"
	SourceKiosk  Source = "kiosk"
)

type ScanService interface {
	// Scan открывает новую сессию и обрабатывает один скан
	Scan(ctx context.Context, source Source, raw string) (*model.MemberDraft, error)
	ProcessScan(ctx context.Context, s *session.Session, source Source, raw string) (*model.MemberDraft, error)
	RegenerateFromScan(ctx context.Context, raw string) (*model.QRImage, error)
	SubmitForm(ctx context.Context, s *session.Session, form *model.MemberForm) (*model.MemberDetails, error)
}

type ScanOptions struct {
	// StrictIDs требует, чтобы id в QR-коде был UUID v4
	StrictIDs bool
}

type scanService struct {
	qr      qrcode.Client
	members MemberService
	opts    ScanOptions
	logger  *zap.Logger
}

func NewScanService(qr qrcode.Client, members MemberService, opts ScanOptions, logger *zap.Logger) ScanService {
	return &scanService{
		qr:      qr,
		members: members,
		opts:    opts,
		logger:  logger,
	}
}

func (s *scanService) Scan(ctx context.Context, source Source, raw string) (*model.MemberDraft, error) {
	sess := session.New()
	if err := sess.Transition(session.StateScanning); err != nil {
		return nil, err
	}
	return s.ProcessScan(ctx, sess, source, raw)
}

// ProcessScan проводит сессию через decode → resolve и возвращает черновик формы.
// Если сессия закрылась, пока шёл запрос, результат отбрасывается.
func (s *scanService) ProcessScan(ctx context.Context, sess *session.Session, source Source, raw string) (*model.MemberDraft, error) {
	log := s.logger.With(zap.String("session_id", sess.ID()), zap.String("source", string(source)))

	payload, err := decoder.Decode(raw)
	if err == nil && s.opts.StrictIDs {
		err = decoder.ValidateID(payload.ID)
	}
	if err != nil {
		log.Info("scan payload rejected", zap.Error(err))
		return nil, s.fail(sess, source, metrics.OutcomeRejected, err)
	}

	if err := sess.Transition(session.StateDecoded); err != nil {
		return nil, s.closed(source, err)
	}
	if err := sess.Transition(session.StateResolving); err != nil {
		return nil, s.closed(source, err)
	}

	identity, err := s.qr.Resolve(ctx, payload)
	if err != nil {
		log.Warn("scan lookup failed", zap.Error(err), zap.String("qr_id", payload.ID))
		outcome := metrics.OutcomeError
		var lookupErr *qrcode.LookupError
		if errors.As(err, &lookupErr) && lookupErr.Kind == qrcode.LookupRejected {
			outcome = metrics.OutcomeRejected
		}
		return nil, s.fail(sess, source, outcome, err)
	}

	if err := sess.Transition(session.StateResolved); err != nil {
		log.Info("late lookup result ignored", zap.String("qr_id", payload.ID))
		return nil, s.closed(source, err)
	}
	if err := sess.Transition(session.StateFormEditing); err != nil {
		return nil, s.closed(source, err)
	}

	metrics.ScansTotal.WithLabelValues(string(source), metrics.OutcomeSuccess).Inc()
	log.Info("scan resolved", zap.String("qr_id", identity.ID), zap.String("version", string(identity.Version)))

	return &model.MemberDraft{
		SessionID:    sess.ID(),
		Subscription: model.SubscriptionTierSimple,
		Member:       identity,
	}, nil
}

func (s *scanService) fail(sess *session.Session, source Source, outcome string, cause error) error {
	if _, err := sess.Fail(cause); err != nil {
		return s.closed(source, err)
	}
	metrics.ScansTotal.WithLabelValues(string(source), outcome).Inc()
	return cause
}

func (s *scanService) closed(source Source, err error) error {
	metrics.ScansTotal.WithLabelValues(string(source), metrics.OutcomeDiscarded).Inc()
	return err
}

func (s *scanService) RegenerateFromScan(ctx context.Context, raw string) (*model.QRImage, error) {
	payload, err := decoder.Decode(raw)
	if err != nil {
		return nil, err
	}

	image, err := s.qr.Regenerate(ctx, payload.RegenerateParams())
	if err != nil {
		s.logger.Error("failed to regenerate qr code", zap.Error(err), zap.String("qr_id", payload.ID))
		return nil, &ImageError{Err: err}
	}
	return image, nil
}

// SubmitForm собирает запрос из формы и сохраняет участника.
// Ошибка проверки оставляет сессию в форме, ошибка записи закрывает её как RolledBack.
func (s *scanService) SubmitForm(ctx context.Context, sess *session.Session, form *model.MemberForm) (*model.MemberDetails, error) {
	if form == nil {
		return nil, &assembler.ValidationError{Reason: assembler.ReasonNoCredentials}
	}
	if sess.State() != session.StateFormEditing {
		return nil, fmt.Errorf("%w: submit from %s", session.ErrInvalidTransition, sess.State())
	}
	sess.MarkManualInput()

	guests := assembler.NewGuestList(form.Subscription)
	for _, guest := range form.Guests {
		if refusal := guests.Refusal(guest); refusal != nil {
			return nil, refusal
		}
		guests.Add(guest)
	}

	req, err := assembler.Assemble(form.Name, form.Subscription, form.Member, guests.Guests())
	if err != nil {
		return nil, err
	}

	if err := sess.Transition(session.StateSubmitting); err != nil {
		return nil, err
	}

	details, err := s.members.CreateMember(ctx, req)
	if err != nil {
		// откат не удался: в базе могли остаться записи, сессия остаётся в Submitting
		var persistenceErr *PersistenceError
		if errors.As(err, &persistenceErr) && persistenceErr.RollbackErr != nil {
			s.logger.Error("member rollback failed, session left open",
				zap.Error(persistenceErr.RollbackErr),
				zap.String("session_id", sess.ID()))
			return nil, err
		}
		if terr := sess.Transition(session.StateRolledBack); terr != nil {
			s.logger.Warn("failed to close session after rollback", zap.Error(terr), zap.String("session_id", sess.ID()))
		}
		return nil, err
	}

	if err := sess.Transition(session.StatePersisted); err != nil {
		s.logger.Warn("failed to close session after persist", zap.Error(err), zap.String("session_id", sess.ID()))
	}
	return details, nil
}

// NewFormSession сессия для ручного ввода без сканирования
func NewFormSession() *session.Session {
	sess := session.New()
	sess.MarkManualInput()
	// из Idle в форму переход разрешён всегда
	_ = sess.Transition(session.StateFormEditing)
	return sess
}
