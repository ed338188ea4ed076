package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"qrcode_dashboard/graph/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap/zaptest"
)

// Mock для pgxpool.Pool
type mockDB struct {
	execFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	queryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
}

func (m *mockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if m.execFunc != nil {
		return m.execFunc(ctx, sql, args...)
	}
	return pgconn.NewCommandTag("OK 0"), nil
}

func (m *mockDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, sql, args...)
	}
	return &mockRows{}, nil
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if m.queryRowFunc != nil {
		return m.queryRowFunc(ctx, sql, args...)
	}
	return &mockRow{}
}

// Mock для pgx.Row
type mockRow struct {
	values []any
	err    error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	return assign(dest, m.values)
}

// Mock для pgx.Rows
type mockRows struct {
	data   [][]any
	idx    int
	err    error
	closed bool
}

func (m *mockRows) Close()                                       { m.closed = true }
func (m *mockRows) Err() error                                   { return m.err }
func (m *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (m *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (m *mockRows) RawValues() [][]byte                          { return nil }
func (m *mockRows) Conn() *pgx.Conn                              { return nil }

func (m *mockRows) Next() bool {
	if m.idx < len(m.data) {
		m.idx++
		return true
	}
	return false
}

func (m *mockRows) Scan(dest ...any) error {
	return assign(dest, m.data[m.idx-1])
}

func (m *mockRows) Values() ([]any, error) {
	return m.data[m.idx-1], nil
}

func assign(dest []any, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("expected %d destinations, got %d", len(values), len(dest))
	}
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		value := reflect.ValueOf(values[i])
		if !value.Type().AssignableTo(target.Type()) {
			return fmt.Errorf("cannot scan %T into %T", values[i], d)
		}
		target.Set(value)
	}
	return nil
}

var testTime = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func memberValues(id, name, subscription string) []any {
	return []any{id, name, subscription, testTime}
}

func credentialValues(id, memberID, number, version, credentialType string) []any {
	return []any{id, memberID, number, version, credentialType, testTime, testTime}
}

func TestCreateMember(t *testing.T) {
	var capturedArgs []any
	db := &mockDB{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			if !strings.Contains(sql, "INSERT INTO members") {
				t.Errorf("unexpected query: %s", sql)
			}
			capturedArgs = args
			return &mockRow{values: memberValues(args[0].(string), args[1].(string), args[2].(string))}
		},
	}

	repo := NewMemberRepository(db, zaptest.NewLogger(t))

	member, err := repo.CreateMember(context.Background(), "Ana", model.SubscriptionTierUltimate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(capturedArgs) != 3 {
		t.Fatalf("expected 3 query args, but got %d", len(capturedArgs))
	}
	if id, _ := capturedArgs[0].(string); len(id) != 36 {
		t.Errorf("expected generated uuid, but got '%v'", capturedArgs[0])
	}
	if member.Name != "Ana" || member.Subscription != model.SubscriptionTierUltimate {
		t.Errorf("unexpected member %+v", member)
	}
	if member.CreatedAt != "2025-03-14T09:30:00Z" {
		t.Errorf("expected created at '2025-03-14T09:30:00Z', but got '%s'", member.CreatedAt)
	}
}

func TestCreateMemberError(t *testing.T) {
	db := &mockDB{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return &mockRow{err: errors.New("database connection failed")}
		},
	}

	repo := NewMemberRepository(db, zaptest.NewLogger(t))

	_, err := repo.CreateMember(context.Background(), "Ana", model.SubscriptionTierSimple)
	if err == nil || !strings.Contains(err.Error(), "failed to create member") {
		t.Errorf("expected 'failed to create member' error, but got %v", err)
	}
}

func TestCreateCredential(t *testing.T) {
	tests := []struct {
		name          string
		identity      model.Identity
		rowErr        error
		expectedError string
	}{
		{
			name:     "successful_insert",
			identity: model.Identity{ID: "qr-1", Number: "0042817", Version: model.QRVersionQR2},
		},
		{
			name:          "empty_number",
			identity:      model.Identity{ID: "qr-1", Version: model.QRVersionQR2},
			expectedError: "credential qr-1 has no number",
		},
		{
			name:          "duplicate_id",
			identity:      model.Identity{ID: "qr-1", Number: "1", Version: model.QRVersionQR1},
			rowErr:        errors.New("duplicate key value violates unique constraint"),
			expectedError: "failed to create credential qr-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			db := &mockDB{
				queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
					called = true
					if tt.rowErr != nil {
						return &mockRow{err: tt.rowErr}
					}
					return &mockRow{values: credentialValues(args[0].(string), args[1].(string), args[2].(string), args[3].(string), args[4].(string))}
				},
			}

			repo := NewMemberRepository(db, zaptest.NewLogger(t))

			credential, err := repo.CreateCredential(context.Background(), "member-1", tt.identity, model.CredentialTypeMember)

			if tt.expectedError != "" {
				if err == nil || !strings.Contains(err.Error(), tt.expectedError) {
					t.Errorf("expected error containing '%s', but got %v", tt.expectedError, err)
				}
				if tt.identity.Number == "" && called {
					t.Error("expected no insert for credential without number")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if credential.Identity() != tt.identity {
				t.Errorf("expected identity %+v, but got %+v", tt.identity, credential.Identity())
			}
			if credential.MemberID != "member-1" || credential.Type != model.CredentialTypeMember {
				t.Errorf("unexpected credential %+v", credential)
			}
		})
	}
}

func TestGetMember(t *testing.T) {
	tests := []struct {
		name          string
		row           *mockRow
		expectedError error
	}{
		{
			name: "found",
			row:  &mockRow{values: memberValues("member-1", "Ana", "Simple")},
		},
		{
			name:          "not_found",
			row:           &mockRow{err: pgx.ErrNoRows},
			expectedError: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &mockDB{
				queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
					return tt.row
				},
			}

			repo := NewMemberRepository(db, zaptest.NewLogger(t))

			member, err := repo.GetMember(context.Background(), "member-1")

			if tt.expectedError != nil {
				if !errors.Is(err, tt.expectedError) {
					t.Errorf("expected %v, but got %v", tt.expectedError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if member.ID != "member-1" {
				t.Errorf("expected member-1, but got %s", member.ID)
			}
		})
	}
}

func TestListMembers(t *testing.T) {
	rows := &mockRows{
		data: [][]any{
			memberValues("member-2", "Bruno", "Ultimate"),
			{"broken"},
			memberValues("member-1", "Ana", "Simple"),
		},
	}
	db := &mockDB{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			if !strings.Contains(sql, "ORDER BY created_at DESC") {
				t.Errorf("expected newest first ordering, got query: %s", sql)
			}
			return rows, nil
		},
	}

	repo := NewMemberRepository(db, zaptest.NewLogger(t))

	members, err := repo.ListMembers(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(members) != 2 {
		t.Fatalf("expected 2 members (broken row skipped), but got %d", len(members))
	}
	if members[0].ID != "member-2" || members[1].ID != "member-1" {
		t.Errorf("expected order member-2, member-1, but got %s, %s", members[0].ID, members[1].ID)
	}
	if !rows.closed {
		t.Error("expected rows to be closed")
	}
}

func TestListCredentialsByMember(t *testing.T) {
	db := &mockDB{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			if len(args) != 1 || args[0] != "member-1" {
				t.Errorf("expected member-1 argument, got %v", args)
			}
			return &mockRows{
				data: [][]any{
					credentialValues("qr-m", "member-1", "1", "QR2", "member"),
					credentialValues("qr-g1", "member-1", "2", "QR1", "guest"),
				},
			}, nil
		},
	}

	repo := NewMemberRepository(db, zaptest.NewLogger(t))

	credentials, err := repo.ListCredentialsByMember(context.Background(), "member-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(credentials) != 2 {
		t.Fatalf("expected 2 credentials, but got %d", len(credentials))
	}
	if credentials[1].Type != model.CredentialTypeGuest {
		t.Errorf("expected guest credential, but got %s", credentials[1].Type)
	}
}

func TestListCredentialsQueryError(t *testing.T) {
	db := &mockDB{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			return nil, errors.New("database connection failed")
		},
	}

	repo := NewMemberRepository(db, zaptest.NewLogger(t))

	if _, err := repo.ListCredentials(context.Background()); err == nil {
		t.Error("expected error, but got nil")
	}
}

func TestDeleteOrderIsCallerDriven(t *testing.T) {
	var statements []string
	db := &mockDB{
		execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			statements = append(statements, sql)
			return pgconn.NewCommandTag("DELETE 1"), nil
		},
	}

	repo := NewMemberRepository(db, zaptest.NewLogger(t))

	if err := repo.DeleteCredentialsByMember(context.Background(), "member-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.DeleteMember(context.Background(), "member-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(statements) != 2 {
		t.Fatalf("expected 2 statements, but got %d", len(statements))
	}
	if !strings.Contains(statements[0], "DELETE FROM qr_codes") || !strings.Contains(statements[1], "DELETE FROM members") {
		t.Errorf("unexpected statements: %v", statements)
	}
}

func TestTouchCredential(t *testing.T) {
	tests := []struct {
		name          string
		tag           string
		expectedError error
	}{
		{name: "updated", tag: "UPDATE 1"},
		{name: "missing", tag: "UPDATE 0", expectedError: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &mockDB{
				execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
					return pgconn.NewCommandTag(tt.tag), nil
				},
			}

			repo := NewMemberRepository(db, zaptest.NewLogger(t))

			err := repo.TouchCredential(context.Background(), "qr-1")
			if !errors.Is(err, tt.expectedError) {
				t.Errorf("expected %v, but got %v", tt.expectedError, err)
			}
		})
	}
}
