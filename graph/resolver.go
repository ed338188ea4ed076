package graph

import (
	"context"
	"errors"

	"qrcode_dashboard/graph/model"
	"qrcode_dashboard/internal/service"

	"go.uber.org/zap"
)

// Resolver зависимости GraphQL-резолверов
type Resolver struct {
	MemberService service.MemberService
	ScanService   service.ScanService
	Logger        *zap.Logger
}

func (r *Resolver) Query() *queryResolver {
	return &queryResolver{r}
}

func (r *Resolver) Mutation() *mutationResolver {
	return &mutationResolver{r}
}

// userError отдаёт клиенту текст для пользователя, исходная ошибка остаётся в логе
func userError(err error) error {
	return errors.New(service.UserMessage(err))
}

type queryResolver struct{ *Resolver }

func (r *queryResolver) Members(ctx context.Context) ([]*model.Member, error) {
	members, err := r.MemberService.ListMembers(ctx)
	if err != nil {
		r.Logger.Error("failed to list members", zap.Error(err))
		return nil, userError(err)
	}
	return members, nil
}

func (r *queryResolver) Member(ctx context.Context, id string) (*model.MemberDetails, error) {
	r.Logger.Info("query member", zap.String("id", id))

	details, err := r.MemberService.GetMember(ctx, id)
	if err != nil {
		r.Logger.Error("failed to get member", zap.Error(err), zap.String("id", id))
		return nil, userError(err)
	}
	return details, nil
}

func (r *queryResolver) Credentials(ctx context.Context) ([]*model.Credential, error) {
	credentials, err := r.MemberService.ListCredentials(ctx)
	if err != nil {
		r.Logger.Error("failed to list credentials", zap.Error(err))
		return nil, userError(err)
	}
	return credentials, nil
}

type mutationResolver struct{ *Resolver }

func (r *mutationResolver) CreateMember(ctx context.Context, form *model.MemberForm) (*model.MemberDetails, error) {
	r.Logger.Info("create member", zap.String("subscription", string(form.Subscription)), zap.Int("guests", len(form.Guests)))

	details, err := r.ScanService.SubmitForm(ctx, service.NewFormSession(), form)
	if err != nil {
		r.Logger.Error("failed to create member", zap.Error(err))
		return nil, userError(err)
	}
	return details, nil
}

func (r *mutationResolver) DeleteMember(ctx context.Context, id string) (bool, error) {
	r.Logger.Info("delete member", zap.String("id", id))

	if err := r.MemberService.DeleteMember(ctx, id); err != nil {
		r.Logger.Error("failed to delete member", zap.Error(err), zap.String("id", id))
		return false, userError(err)
	}
	return true, nil
}

func (r *mutationResolver) Scan(ctx context.Context, data string) (*model.MemberDraft, error) {
	draft, err := r.ScanService.Scan(ctx, service.SourceCamera, data)
	if err != nil {
		r.Logger.Warn("scan failed", zap.Error(err))
		return nil, userError(err)
	}
	return draft, nil
}
