package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"qrcode_dashboard/graph/model"

	"go.uber.org/zap/zaptest"
)

// Mock для MemberRepository, нужны только списки
type mockListRepository struct {
	MemberRepository
	listMembersFunc     func(ctx context.Context) ([]*model.Member, error)
	listCredentialsFunc func(ctx context.Context) ([]*model.Credential, error)
}

func (m *mockListRepository) ListMembers(ctx context.Context) ([]*model.Member, error) {
	if m.listMembersFunc != nil {
		return m.listMembersFunc(ctx)
	}
	return nil, nil
}

func (m *mockListRepository) ListCredentials(ctx context.Context) ([]*model.Credential, error) {
	if m.listCredentialsFunc != nil {
		return m.listCredentialsFunc(ctx)
	}
	return nil, nil
}

func TestDirectoryCacheLoadsOnce(t *testing.T) {
	memberCalls := 0
	repo := &mockListRepository{
		listMembersFunc: func(ctx context.Context) ([]*model.Member, error) {
			memberCalls++
			return []*model.Member{{ID: "member-1", Name: "Ana"}}, nil
		},
		listCredentialsFunc: func(ctx context.Context) ([]*model.Credential, error) {
			return []*model.Credential{{ID: "qr-1", MemberID: "member-1"}}, nil
		},
	}

	cache := NewDirectoryCache(repo, zaptest.NewLogger(t))

	for i := 0; i < 3; i++ {
		members, err := cache.Members(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(members) != 1 {
			t.Fatalf("expected 1 member, but got %d", len(members))
		}
	}

	credentials, err := cache.Credentials(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(credentials) != 1 {
		t.Errorf("expected 1 credential, but got %d", len(credentials))
	}

	if memberCalls != 1 {
		t.Errorf("expected a single load, but got %d", memberCalls)
	}
}

func TestDirectoryCacheInvalidateAndReload(t *testing.T) {
	stored := []*model.Member{{ID: "member-1"}}
	repo := &mockListRepository{
		listMembersFunc: func(ctx context.Context) ([]*model.Member, error) {
			return stored, nil
		},
	}

	cache := NewDirectoryCache(repo, zaptest.NewLogger(t))

	if _, err := cache.Members(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// мутация в хранилище не видна до сброса кэша
	stored = []*model.Member{{ID: "member-2"}, {ID: "member-1"}}

	members, _ := cache.Members(context.Background())
	if len(members) != 1 {
		t.Errorf("expected stale snapshot with 1 member, but got %d", len(members))
	}

	cache.Invalidate()
	if err := cache.Reload(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	members, _ = cache.Members(context.Background())
	if len(members) != 2 || members[0].ID != "member-2" {
		t.Errorf("expected reloaded snapshot, but got %+v", members)
	}
}

func TestDirectoryCacheOverlappingReloads(t *testing.T) {
	oldState := []*model.Member{{ID: "member-1"}}
	newState := []*model.Member{{ID: "member-2"}, {ID: "member-1"}}

	var (
		mu    sync.Mutex
		calls int
	)
	entered := make(chan struct{})
	release := make(chan struct{})

	repo := &mockListRepository{
		listMembersFunc: func(ctx context.Context) ([]*model.Member, error) {
			mu.Lock()
			calls++
			call := calls
			mu.Unlock()

			// первая перезагрузка читает старое состояние и зависает
			if call == 1 {
				close(entered)
				<-release
				return oldState, nil
			}
			return newState, nil
		},
	}

	cache := NewDirectoryCache(repo, zaptest.NewLogger(t))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := cache.Reload(context.Background()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}()
	<-entered

	go func() {
		defer wg.Done()
		if err := cache.Reload(context.Background()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}()

	// даём второй перезагрузке дойти до репозитория, если она не ждёт первую
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	members, err := cache.Members(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(members) != 2 || members[0].ID != "member-2" {
		t.Errorf("expected newest snapshot with 2 members, but got %+v", members)
	}
}

func TestDirectoryCacheReloadError(t *testing.T) {
	tests := []struct {
		name          string
		membersErr    error
		credentialErr error
		expectedError string
	}{
		{
			name:          "members_error",
			membersErr:    errors.New("database connection failed"),
			expectedError: "failed to reload members: database connection failed",
		},
		{
			name:          "credentials_error",
			credentialErr: errors.New("database connection failed"),
			expectedError: "failed to reload credentials: database connection failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockListRepository{
				listMembersFunc: func(ctx context.Context) ([]*model.Member, error) {
					return nil, tt.membersErr
				},
				listCredentialsFunc: func(ctx context.Context) ([]*model.Credential, error) {
					return nil, tt.credentialErr
				},
			}

			cache := NewDirectoryCache(repo, zaptest.NewLogger(t))

			_, err := cache.Members(context.Background())
			if err == nil {
				t.Fatalf("expected error '%s', but got nil", tt.expectedError)
			}
			if err.Error() != tt.expectedError {
				t.Errorf("expected error '%s', but got '%s'", tt.expectedError, err.Error())
			}
		})
	}
}
