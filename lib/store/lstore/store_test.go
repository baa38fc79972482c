package lstore

import (
	"context"
	"testing"

	"github.com/ValentinKolb/scired/lib/store"
)

func stmt(kind store.StatementKind, table string) store.Statement {
	return store.Statement{Kind: kind, Keyspace: "scired", Table: table}
}

// TestLocalSession tests the emulated select and upsert statements
func TestLocalSession(t *testing.T) {
	ctx := context.Background()
	sess := NewLocalSession("scired.strings")
	defer sess.Close()

	t.Run("unknown table fails to prepare", func(t *testing.T) {
		if _, err := sess.Prepare(ctx, stmt(store.StatementSelectValue, "missing")); err == nil {
			t.Fatal("Expected error for unknown table")
		}
	})

	sel, err := sess.Prepare(ctx, stmt(store.StatementSelectValue, "strings"))
	if err != nil {
		t.Fatalf("Failed to prepare select: %v", err)
	}
	ups, err := sess.Prepare(ctx, stmt(store.StatementUpsertValue, "strings"))
	if err != nil {
		t.Fatalf("Failed to prepare upsert: %v", err)
	}

	t.Run("select missing key yields no rows", func(t *testing.T) {
		rows, err := sel.Execute(ctx, "nope")
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		var v string
		if rows.Scan(&v) {
			t.Errorf("Expected no row, got %q", v)
		}
		if err := rows.Close(); err != nil {
			t.Errorf("Close returned %v", err)
		}
	})

	t.Run("upsert then select", func(t *testing.T) {
		rows, err := ups.Execute(ctx, "a", "1")
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if err := rows.Close(); err != nil {
			t.Fatalf("Close returned %v", err)
		}

		rows, err = sel.Execute(ctx, "a")
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		var v []byte
		if !rows.Scan(&v) {
			t.Fatal("Expected a row")
		}
		if string(v) != "1" {
			t.Errorf("Expected '1', got %q", v)
		}
		if rows.Scan(&v) {
			t.Error("Expected exactly one row")
		}
	})

	t.Run("scan into string pointer", func(t *testing.T) {
		rows, err := ups.Execute(ctx, "empty", "")
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		_ = rows.Close()

		rows, err = sel.Execute(ctx, "empty")
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		var v *string
		if !rows.Scan(&v) {
			t.Fatal("Expected a row")
		}
		if v == nil || *v != "" {
			t.Errorf("Expected pointer to empty string, got %v", v)
		}
	})

	t.Run("wrong arity is an execution error", func(t *testing.T) {
		if _, err := ups.Execute(ctx, "only-key"); err == nil {
			t.Error("Expected error for missing value")
		}
	})

	t.Run("bad scan destination surfaces on close", func(t *testing.T) {
		rows, err := sel.Execute(ctx, "a")
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		var n int
		if rows.Scan(&n) {
			t.Error("Expected scan into int to fail")
		}
		if err := rows.Close(); err == nil {
			t.Error("Expected error from Close")
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := sel.Execute(cctx, "a"); err == nil {
			t.Error("Expected error for canceled context")
		}
	})
}
