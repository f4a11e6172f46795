package repo_test

import (
	"context"
	"strings"
	"testing"

	"caseline/internal/db"
	"caseline/internal/domain"
	"caseline/internal/migrate"
	"caseline/internal/repo"
)

func newTestRepo(t *testing.T) (repo.Repo, context.Context) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo.Repo{DB: conn}, context.Background()
}

func insertCase(t *testing.T, r repo.Repo, ctx context.Context, c domain.Case) {
	t.Helper()
	tx, err := r.DB.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()
	if err := r.InsertCaseTx(ctx, tx, c); err != nil {
		t.Fatalf("insert case: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestGetCaseCommitteeRoundTrip(t *testing.T) {
	r, ctx := newTestRepo(t)
	insertCase(t, r, ctx, domain.Case{
		ID:           "case_1",
		CaseNumber:   "010/2025",
		CaseType:     "PAD",
		Summary:      "Apuração",
		CurrentStage: "Autuado",
		Committee: []domain.CommitteeMember{
			{Name: "Ana Souza", Role: "Presidente"},
			{Name: "João Lima", Role: "Membro"},
		},
		OpenedAt:  "2025-06-01T12:00:00Z",
		CreatedAt: "2025-06-01T12:00:00Z",
		UpdatedAt: "2025-06-01T12:00:00Z",
	})
	got, err := r.GetCase(ctx, "case_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Committee) != 2 || got.Committee[0].Name != "Ana Souza" {
		t.Fatalf("unexpected committee: %+v", got.Committee)
	}
}

func TestGetCaseRejectsCorruptCommittee(t *testing.T) {
	r, ctx := newTestRepo(t)
	insertCase(t, r, ctx, domain.Case{
		ID:           "case_1",
		CaseNumber:   "011/2025",
		CaseType:     "PAD",
		Summary:      "Apuração",
		CurrentStage: "Autuado",
		OpenedAt:     "2025-06-01T12:00:00Z",
		CreatedAt:    "2025-06-01T12:00:00Z",
		UpdatedAt:    "2025-06-01T12:00:00Z",
	})
	if _, err := r.DB.ExecContext(ctx, `UPDATE cases SET committee_json = '{broken' WHERE id = ?`, "case_1"); err != nil {
		t.Fatalf("corrupt column: %v", err)
	}
	_, err := r.GetCase(ctx, "case_1")
	if err == nil {
		t.Fatal("expected a decode error for corrupt committee_json")
	}
	if !strings.Contains(err.Error(), "decode committee") {
		t.Fatalf("unexpected error: %v", err)
	}
}
