package repository

import (
	"context"
	"fmt"
	"sync"

	"qrcode_dashboard/graph/model"

	"go.uber.org/zap"
)

// DirectoryCache локальный снимок списков участников и QR-кодов.
// После каждой мутации снимок сбрасывается и перечитывается целиком.
type DirectoryCache interface {
	Members(ctx context.Context) ([]*model.Member, error)
	Credentials(ctx context.Context) ([]*model.Credential, error)
	Invalidate()
	Reload(ctx context.Context) error
}

type directoryCache struct {
	repo   MemberRepository
	logger *zap.Logger

	// reloadMu держится от чтения списков до замены снимка,
	// чтобы более ранняя перезагрузка не затёрла более позднюю
	reloadMu sync.Mutex

	mu          sync.RWMutex
	loaded      bool
	members     []*model.Member
	credentials []*model.Credential
}

func NewDirectoryCache(repo MemberRepository, logger *zap.Logger) DirectoryCache {
	return &directoryCache{
		repo:   repo,
		logger: logger,
	}
}

// Members возвращает участников, при пустом кэше сначала загружает их
func (c *directoryCache) Members(ctx context.Context) ([]*model.Member, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*model.Member, len(c.members))
	copy(out, c.members)
	return out, nil
}

func (c *directoryCache) Credentials(ctx context.Context) ([]*model.Credential, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*model.Credential, len(c.credentials))
	copy(out, c.credentials)
	return out, nil
}

func (c *directoryCache) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.members = nil
	c.credentials = nil
	c.mu.Unlock()

	c.logger.Debug("directory cache invalidated")
}

func (c *directoryCache) Reload(ctx context.Context) error {
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()

	members, err := c.repo.ListMembers(ctx)
	if err != nil {
		return fmt.Errorf("failed to reload members: %w", err)
	}

	credentials, err := c.repo.ListCredentials(ctx)
	if err != nil {
		return fmt.Errorf("failed to reload credentials: %w", err)
	}

	c.mu.Lock()
	c.members = members
	c.credentials = credentials
	c.loaded = true
	c.mu.Unlock()

	c.logger.Debug("directory cache reloaded", zap.Int("members", len(members)), zap.Int("credentials", len(credentials)))
	return nil
}

func (c *directoryCache) ensureLoaded(ctx context.Context) error {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()

	if loaded {
		return nil
	}
	return c.Reload(ctx)
}
