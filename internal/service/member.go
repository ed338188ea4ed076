package service

import (
	"context"
	"errors"
	"fmt"

	"qrcode_dashboard/graph/model"
	"qrcode_dashboard/internal/assembler"
	"qrcode_dashboard/internal/metrics"
	"qrcode_dashboard/internal/qrcode"
	"qrcode_dashboard/internal/repository"

	"go.uber.org/zap"
)

type MemberService interface {
	CreateMember(ctx context.Context, req *model.MemberCreationRequest) (*model.MemberDetails, error)
	GetMember(ctx context.Context, id string) (*model.MemberDetails, error)
	ListMembers(ctx context.Context) ([]*model.Member, error)
	ListCredentials(ctx context.Context) ([]*model.Credential, error)
	DeleteMember(ctx context.Context, id string) error
	MemberQRCode(ctx context.Context, memberID string) (*model.QRImage, error)
	CredentialQRCode(ctx context.Context, credentialID string) (*model.QRImage, error)
}

// EventPublisher получатель событий об изменении списка участников
type EventPublisher interface {
	PublishMemberEvent(ctx context.Context, event *model.MemberEvent) error
}

type memberService struct {
	repo   repository.MemberRepository
	cache  repository.DirectoryCache
	qr     qrcode.Client
	events EventPublisher
	logger *zap.Logger
}

func NewMemberService(repo repository.MemberRepository, cache repository.DirectoryCache, qr qrcode.Client, events EventPublisher, logger *zap.Logger) MemberService {
	return &memberService{
		repo:   repo,
		cache:  cache,
		qr:     qr,
		events: events,
		logger: logger,
	}
}

// CreateMember сохраняет участника и его QR-коды по порядку. Если какой-то
// QR-код не сохранился, уже созданные записи удаляются.
func (s *memberService) CreateMember(ctx context.Context, req *model.MemberCreationRequest) (*model.MemberDetails, error) {
	if req == nil || len(req.Credentials) == 0 {
		return nil, &assembler.ValidationError{Reason: assembler.ReasonNoCredentials}
	}

	member, err := s.repo.CreateMember(ctx, req.Name, req.Subscription)
	if err != nil {
		metrics.MemberMutationsTotal.WithLabelValues("create", metrics.OutcomeError).Inc()
		return nil, &PersistenceError{Op: OpCreateMember, Err: err}
	}

	details := &model.MemberDetails{Member: member}
	for _, seed := range req.Credentials {
		credential, err := s.repo.CreateCredential(ctx, member.ID, seed.Identity, seed.Type)
		if err != nil {
			s.logger.Error("failed to create credential, rolling back member",
				zap.Error(err), zap.String("member_id", member.ID), zap.String("qr_id", seed.ID))

			rollbackErr := s.rollback(ctx, member.ID)
			s.refresh(ctx)

			if rollbackErr != nil {
				metrics.MemberMutationsTotal.WithLabelValues("create", metrics.OutcomeError).Inc()
				return nil, &PersistenceError{Op: OpCreateMember, Err: err, RollbackErr: rollbackErr}
			}
			metrics.MemberMutationsTotal.WithLabelValues("create", metrics.OutcomeRolledBack).Inc()
			return nil, &PersistenceError{Op: OpCreateMember, Err: err, RolledBack: true}
		}

		if credential.Type == model.CredentialTypeMember {
			details.Credential = credential
		} else {
			details.Guests = append(details.Guests, credential)
		}
	}

	s.refresh(ctx)
	metrics.MemberMutationsTotal.WithLabelValues("create", metrics.OutcomeSuccess).Inc()

	s.publish(ctx, &model.MemberEvent{
		Type:         model.MemberEventCreated,
		MemberID:     member.ID,
		Name:         member.Name,
		Subscription: member.Subscription,
		Credentials:  len(req.Credentials),
	})

	s.logger.Info("member created", zap.String("member_id", member.ID), zap.Int("credentials", len(req.Credentials)))
	return details, nil
}

// rollback не зависит от отмены исходного запроса
func (s *memberService) rollback(ctx context.Context, memberID string) error {
	ctx = context.WithoutCancel(ctx)

	if err := s.repo.DeleteCredentialsByMember(ctx, memberID); err != nil {
		s.logger.Error("rollback: failed to delete credentials", zap.Error(err), zap.String("member_id", memberID))
		return err
	}
	if err := s.repo.DeleteMember(ctx, memberID); err != nil {
		s.logger.Error("rollback: failed to delete member", zap.Error(err), zap.String("member_id", memberID))
		return err
	}

	s.logger.Warn("member creation rolled back", zap.String("member_id", memberID))
	return nil
}

func (s *memberService) GetMember(ctx context.Context, id string) (*model.MemberDetails, error) {
	if id == "" {
		return nil, fmt.Errorf("member id cannot be empty")
	}

	member, err := s.repo.GetMember(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get member %s: %w", id, err)
	}

	credentials, err := s.repo.ListCredentialsByMember(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get member credentials: %w", err)
	}

	details := &model.MemberDetails{Member: member}
	for _, credential := range credentials {
		switch credential.Type {
		case model.CredentialTypeMember:
			if details.Credential == nil {
				details.Credential = credential
			}
		case model.CredentialTypeGuest:
			// гостевые коды видны только при абонементе Ultimate
			if member.Subscription.AllowsGuests() {
				details.Guests = append(details.Guests, credential)
			}
		}
	}

	return details, nil
}

func (s *memberService) ListMembers(ctx context.Context) ([]*model.Member, error) {
	return s.cache.Members(ctx)
}

func (s *memberService) ListCredentials(ctx context.Context) ([]*model.Credential, error) {
	return s.cache.Credentials(ctx)
}

// DeleteMember удаляет сначала QR-коды, затем самого участника
func (s *memberService) DeleteMember(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("member id cannot be empty")
	}

	if err := s.repo.DeleteCredentialsByMember(ctx, id); err != nil {
		metrics.MemberMutationsTotal.WithLabelValues("delete", metrics.OutcomeError).Inc()
		return &PersistenceError{Op: OpDeleteMember, Err: err}
	}
	if err := s.repo.DeleteMember(ctx, id); err != nil {
		metrics.MemberMutationsTotal.WithLabelValues("delete", metrics.OutcomeError).Inc()
		s.refresh(ctx)
		return &PersistenceError{Op: OpDeleteMember, Err: err}
	}

	s.refresh(ctx)
	metrics.MemberMutationsTotal.WithLabelValues("delete", metrics.OutcomeSuccess).Inc()
	s.publish(ctx, &model.MemberEvent{Type: model.MemberEventDeleted, MemberID: id})

	s.logger.Info("member deleted", zap.String("member_id", id))
	return nil
}

// MemberQRCode изображение основного QR-кода участника
func (s *memberService) MemberQRCode(ctx context.Context, memberID string) (*model.QRImage, error) {
	credentials, err := s.repo.ListCredentialsByMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to get member credentials: %w", err)
	}

	for _, credential := range credentials {
		if credential.Type == model.CredentialTypeMember {
			return s.credentialImage(ctx, credential)
		}
	}
	return nil, fmt.Errorf("member %s has no primary qr code: %w", memberID, repository.ErrNotFound)
}

// CredentialQRCode изображение любого QR-кода, в том числе гостевого
func (s *memberService) CredentialQRCode(ctx context.Context, credentialID string) (*model.QRImage, error) {
	credential, err := s.repo.GetCredential(ctx, credentialID)
	if err != nil {
		return nil, fmt.Errorf("failed to get credential %s: %w", credentialID, err)
	}

	if credential.Type == model.CredentialTypeGuest {
		member, err := s.repo.GetMember(ctx, credential.MemberID)
		if err != nil {
			return nil, fmt.Errorf("failed to get credential owner: %w", err)
		}
		if !member.Subscription.AllowsGuests() {
			return nil, ErrGuestsHidden
		}
	}

	return s.credentialImage(ctx, credential)
}

func (s *memberService) credentialImage(ctx context.Context, credential *model.Credential) (*model.QRImage, error) {
	image, err := s.qr.Generate(ctx, credential.Identity().GenerateParams())
	if err != nil {
		s.logger.Error("failed to generate qr code", zap.Error(err), zap.String("qr_id", credential.ID))
		return nil, &ImageError{Guest: credential.Type == model.CredentialTypeGuest, Err: err}
	}

	if err := s.repo.TouchCredential(ctx, credential.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("failed to update credential last use", zap.Error(err), zap.String("qr_id", credential.ID))
	}
	return image, nil
}

// refresh сбрасывает локальный снимок и перечитывает его целиком
func (s *memberService) refresh(ctx context.Context) {
	s.cache.Invalidate()
	if err := s.cache.Reload(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn("failed to reload directory cache", zap.Error(err))
	}
}

func (s *memberService) publish(ctx context.Context, event *model.MemberEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishMemberEvent(ctx, event); err != nil {
		s.logger.Warn("failed to publish member event", zap.Error(err), zap.String("member_id", event.MemberID))
	}
}
