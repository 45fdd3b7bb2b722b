package cleanup

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

type fakeResult struct {
	rowsAffected int64
}

func (r *fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r *fakeResult) RowsAffected() (int64, error) { return r.rowsAffected, nil }

// Executor インターフェースに対するモック実装
type mockExecutor struct {
	queries []string
	args    [][]interface{}
	results []sql.Result
	errs    []error
}

func (m *mockExecutor) ExecContext(_ context.Context, query string, args ...interface{}) (sql.Result, error) {
	call := len(m.queries)
	m.queries = append(m.queries, query)
	m.args = append(m.args, args)
	if call < len(m.errs) && m.errs[call] != nil {
		return nil, m.errs[call]
	}
	if call < len(m.results) {
		return m.results[call], nil
	}
	return &fakeResult{}, nil
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestNewCleanupJob_SetsRetentionDays(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockExecutor{}, newTestLogger(&buf))

	if job.RetentionDays != 180 {
		t.Errorf("RetentionDays = %d, want 180", job.RetentionDays)
	}
}

func TestCleanupJob_Run_DeletesTokensAndSessions(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{
		results: []sql.Result{
			&fakeResult{rowsAffected: 42},
			&fakeResult{rowsAffected: 7},
		},
	}
	job := NewCleanupJob(mock, newTestLogger(&buf))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(mock.queries) != 2 {
		t.Fatalf("queries executed = %d, want 2", len(mock.queries))
	}
	if !strings.Contains(mock.queries[0], "DELETE FROM login_tokens") {
		t.Errorf("first query = %q, want login_tokens delete", mock.queries[0])
	}
	if !strings.Contains(mock.queries[1], "DELETE FROM sessions") {
		t.Errorf("second query = %q, want sessions delete", mock.queries[1])
	}
	// 有効なセッションを誤って削除しない条件が含まれていること
	if !strings.Contains(mock.queries[1], "revoked_at IS NOT NULL OR expires_at < now()") {
		t.Errorf("session query should exclude active sessions, got %q", mock.queries[1])
	}

	for i, args := range mock.args {
		if len(args) != 1 || args[0] != "180 days" {
			t.Errorf("query %d args = %v, want [180 days]", i, args)
		}
	}
}

func TestCleanupJob_Run_CustomRetention(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{}
	job := NewCleanupJob(mock, newTestLogger(&buf))
	job.RetentionDays = 30

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if mock.args[0][0] != "30 days" {
		t.Errorf("args = %v, want [30 days]", mock.args[0])
	}
}

func TestCleanupJob_Run_LogsDeletedCounts(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{
		results: []sql.Result{
			&fakeResult{rowsAffected: 42},
			&fakeResult{rowsAffected: 7},
		},
	}
	job := NewCleanupJob(mock, newTestLogger(&buf))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}
	if entry["tokens_deleted"] != float64(42) {
		t.Errorf("tokens_deleted = %v, want 42", entry["tokens_deleted"])
	}
	if entry["sessions_deleted"] != float64(7) {
		t.Errorf("sessions_deleted = %v, want 7", entry["sessions_deleted"])
	}
}

func TestCleanupJob_Run_TokenDeleteFails(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{
		errs: []error{fmt.Errorf("connection refused")},
	}
	job := NewCleanupJob(mock, newTestLogger(&buf))

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(mock.queries) != 1 {
		t.Errorf("queries executed = %d, want 1 (stop on first failure)", len(mock.queries))
	}
}

func TestCleanupJob_Run_SessionDeleteFails(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{
		errs: []error{nil, fmt.Errorf("connection refused")},
	}
	job := NewCleanupJob(mock, newTestLogger(&buf))

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(mock.queries) != 2 {
		t.Errorf("queries executed = %d, want 2", len(mock.queries))
	}
}

func TestCleanupJob_Run_NoRowsIsSuccess(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockExecutor{}, newTestLogger(&buf))

	if err := job.Run(context.Background()); err != nil {
		t.Errorf("Run with zero deletions should succeed, got %v", err)
	}
}
