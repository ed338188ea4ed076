package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"qrcode_dashboard/graph/model"
	"qrcode_dashboard/types"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// DB подмножество pgxpool.Pool, которое нужно репозиторию
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var ErrNotFound = errors.New("not found")

type MemberRepository interface {
	CreateMember(ctx context.Context, name string, subscription model.SubscriptionTier) (*model.Member, error)
	CreateCredential(ctx context.Context, memberID string, identity model.Identity, credentialType model.CredentialType) (*model.Credential, error)
	GetMember(ctx context.Context, id string) (*model.Member, error)
	GetCredential(ctx context.Context, id string) (*model.Credential, error)
	ListMembers(ctx context.Context) ([]*model.Member, error)
	ListCredentials(ctx context.Context) ([]*model.Credential, error)
	ListCredentialsByMember(ctx context.Context, memberID string) ([]*model.Credential, error)
	TouchCredential(ctx context.Context, id string) error
	DeleteCredentialsByMember(ctx context.Context, memberID string) error
	DeleteMember(ctx context.Context, id string) error
}

type memberRepository struct {
	db     DB
	logger *zap.Logger
}

func NewMemberRepository(db DB, logger *zap.Logger) MemberRepository {
	return &memberRepository{
		db:     db,
		logger: logger,
	}
}

const (
	memberColumns     = `id, name, subscription, created_at`
	credentialColumns = `id, member_id, number, version, type, created_at, last_used`
)

func (r *memberRepository) CreateMember(ctx context.Context, name string, subscription model.SubscriptionTier) (*model.Member, error) {
	query := `
		INSERT INTO members (id, name, subscription, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING ` + memberColumns

	var row types.MemberRow
	err := r.db.QueryRow(ctx, query, uuid.New().String(), name, string(subscription)).
		Scan(&row.ID, &row.Name, &row.Subscription, &row.CreatedAt)
	if err != nil {
		r.logger.Error("failed to create member", zap.Error(err), zap.String("name", name))
		return nil, fmt.Errorf("failed to create member: %w", err)
	}

	r.logger.Debug("member created", zap.String("member_id", row.ID))
	return memberFromRow(row), nil
}

func (r *memberRepository) CreateCredential(ctx context.Context, memberID string, identity model.Identity, credentialType model.CredentialType) (*model.Credential, error) {
	if identity.Number == "" {
		return nil, fmt.Errorf("credential %s has no number", identity.ID)
	}

	query := `
		INSERT INTO qr_codes (id, member_id, number, version, type, created_at, last_used)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING ` + credentialColumns

	var row types.CredentialRow
	err := r.db.QueryRow(ctx, query, identity.ID, memberID, identity.Number, string(identity.Version), string(credentialType)).
		Scan(&row.ID, &row.MemberID, &row.Number, &row.Version, &row.Type, &row.CreatedAt, &row.LastUsed)
	if err != nil {
		r.logger.Error("failed to create credential", zap.Error(err), zap.String("member_id", memberID), zap.String("qr_id", identity.ID))
		return nil, fmt.Errorf("failed to create credential %s: %w", identity.ID, err)
	}

	return credentialFromRow(row), nil
}

func (r *memberRepository) GetMember(ctx context.Context, id string) (*model.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE id = $1`

	var row types.MemberRow
	err := r.db.QueryRow(ctx, query, id).Scan(&row.ID, &row.Name, &row.Subscription, &row.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("failed to get member", zap.Error(err), zap.String("member_id", id))
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return memberFromRow(row), nil
}

func (r *memberRepository) GetCredential(ctx context.Context, id string) (*model.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM qr_codes WHERE id = $1`

	var row types.CredentialRow
	err := r.db.QueryRow(ctx, query, id).
		Scan(&row.ID, &row.MemberID, &row.Number, &row.Version, &row.Type, &row.CreatedAt, &row.LastUsed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("failed to get credential", zap.Error(err), zap.String("qr_id", id))
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	return credentialFromRow(row), nil
}

func (r *memberRepository) ListMembers(ctx context.Context) ([]*model.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.Error("failed to list members", zap.Error(err))
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*model.Member
	for rows.Next() {
		var row types.MemberRow
		if err := rows.Scan(&row.ID, &row.Name, &row.Subscription, &row.CreatedAt); err != nil {
			r.logger.Error("failed to scan member", zap.Error(err))
			continue
		}
		members = append(members, memberFromRow(row))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	return members, nil
}

func (r *memberRepository) ListCredentials(ctx context.Context) ([]*model.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM qr_codes ORDER BY created_at DESC`
	return r.queryCredentials(ctx, query)
}

func (r *memberRepository) ListCredentialsByMember(ctx context.Context, memberID string) ([]*model.Credential, error) {
	// гостевые коды выводятся в порядке добавления: Invité #1, #2, ...
	query := `SELECT ` + credentialColumns + ` FROM qr_codes WHERE member_id = $1 ORDER BY created_at, id`
	return r.queryCredentials(ctx, query, memberID)
}

func (r *memberRepository) queryCredentials(ctx context.Context, query string, args ...any) ([]*model.Credential, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to list credentials", zap.Error(err))
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	var credentials []*model.Credential
	for rows.Next() {
		var row types.CredentialRow
		if err := rows.Scan(&row.ID, &row.MemberID, &row.Number, &row.Version, &row.Type, &row.CreatedAt, &row.LastUsed); err != nil {
			r.logger.Error("failed to scan credential", zap.Error(err))
			continue
		}
		credentials = append(credentials, credentialFromRow(row))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	return credentials, nil
}

func (r *memberRepository) TouchCredential(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `UPDATE qr_codes SET last_used = now() WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("failed to update credential last use", zap.Error(err), zap.String("qr_id", id))
		return fmt.Errorf("failed to update credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *memberRepository) DeleteCredentialsByMember(ctx context.Context, memberID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM qr_codes WHERE member_id = $1`, memberID)
	if err != nil {
		r.logger.Error("failed to delete credentials", zap.Error(err), zap.String("member_id", memberID))
		return fmt.Errorf("failed to delete credentials: %w", err)
	}

	r.logger.Debug("credentials deleted", zap.String("member_id", memberID), zap.Int64("count", tag.RowsAffected()))
	return nil
}

func (r *memberRepository) DeleteMember(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM members WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("failed to delete member", zap.Error(err), zap.String("member_id", id))
		return fmt.Errorf("failed to delete member: %w", err)
	}
	return nil
}

func memberFromRow(row types.MemberRow) *model.Member {
	return &model.Member{
		ID:           row.ID,
		Name:         row.Name,
		Subscription: model.SubscriptionTier(row.Subscription),
		CreatedAt:    row.CreatedAt.Format(time.RFC3339),
	}
}

func credentialFromRow(row types.CredentialRow) *model.Credential {
	return &model.Credential{
		ID:        row.ID,
		MemberID:  row.MemberID,
		Number:    row.Number,
		Version:   model.QRVersion(row.Version),
		Type:      model.CredentialType(row.Type),
		CreatedAt: row.CreatedAt.Format(time.RFC3339),
		LastUsed:  row.LastUsed.Format(time.RFC3339),
	}
}
