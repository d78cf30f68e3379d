package rank

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryStore_GetReturnsNilWhenAbsent(t *testing.T) {
	store := NewInMemoryStore()
	rec, err := store.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get error = %v", err)
	}
	if rec != nil {
		t.Errorf("Get() = %+v, want nil for unranked property", rec)
	}
}

func TestInMemoryStore_UpsertOverallScore(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	if err := store.UpsertOverallScore(ctx, "prop-1", 42.5); err != nil {
		t.Fatalf("UpsertOverallScore error = %v", err)
	}

	rec, err := store.Get(ctx, "prop-1")
	if err != nil {
		t.Fatalf("Get error = %v", err)
	}
	if rec == nil {
		t.Fatal("expected record after upsert")
	}
	if rec.OverallScore != 42.5 {
		t.Errorf("OverallScore = %v, want 42.5", rec.OverallScore)
	}
	if rec.Rank != 0 {
		t.Errorf("Rank = %d, want 0 for a never-ranked record", rec.Rank)
	}

	// Updating an existing record must not disturb its rank.
	lr := 3
	if err := store.ApplyRanks(ctx, []Record{{PropertyID: "prop-1", Rank: 2, OverallScore: 42.5, LastRank: &lr}}); err != nil {
		t.Fatalf("ApplyRanks error = %v", err)
	}
	if err := store.UpsertOverallScore(ctx, "prop-1", 50); err != nil {
		t.Fatalf("UpsertOverallScore error = %v", err)
	}
	rec, err = store.Get(ctx, "prop-1")
	if err != nil {
		t.Fatalf("Get error = %v", err)
	}
	if rec.Rank != 2 || rec.LastRank == nil || *rec.LastRank != 3 {
		t.Errorf("record = %+v, want rank 2 and last_rank 3 untouched", rec)
	}
	if rec.OverallScore != 50 {
		t.Errorf("OverallScore = %v, want 50", rec.OverallScore)
	}
}

func TestInMemoryStore_ApplyRanksReplacesWholesale(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	if err := store.ApplyRanks(ctx, []Record{
		{PropertyID: "a", Rank: 1, OverallScore: 10},
		{PropertyID: "b", Rank: 2, OverallScore: 5},
	}); err != nil {
		t.Fatalf("ApplyRanks error = %v", err)
	}

	// Second application omits "b", which must disappear.
	if err := store.ApplyRanks(ctx, []Record{
		{PropertyID: "a", Rank: 1, OverallScore: 10},
	}); err != nil {
		t.Fatalf("ApplyRanks error = %v", err)
	}

	rec, err := store.Get(ctx, "b")
	if err != nil {
		t.Fatalf("Get error = %v", err)
	}
	if rec != nil {
		t.Errorf("record for b survived a replace that omitted it: %+v", rec)
	}

	all, err := store.All(ctx)
	if err != nil {
		t.Fatalf("All error = %v", err)
	}
	if len(all) != 1 {
		t.Errorf("len(All()) = %d, want 1", len(all))
	}
}

func TestInMemoryStore_CopiesAreIndependent(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	lr := 5
	if err := store.ApplyRanks(ctx, []Record{{PropertyID: "a", Rank: 1, LastRank: &lr}}); err != nil {
		t.Fatalf("ApplyRanks error = %v", err)
	}

	rec, err := store.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get error = %v", err)
	}
	*rec.LastRank = 99
	rec.Rank = 99

	again, err := store.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get error = %v", err)
	}
	if again.Rank != 1 || *again.LastRank != 5 {
		t.Errorf("stored record mutated through a returned copy: %+v", again)
	}
}

func TestInMemoryStore_Delete(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	if err := store.UpsertOverallScore(ctx, "a", 1); err != nil {
		t.Fatalf("UpsertOverallScore error = %v", err)
	}
	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete error = %v", err)
	}
	rec, err := store.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get error = %v", err)
	}
	if rec != nil {
		t.Error("record should be gone after Delete")
	}

	// Deleting an absent record is a no-op.
	if err := store.Delete(ctx, "a"); err != nil {
		t.Errorf("Delete of absent record error = %v", err)
	}
}

func TestInMemoryStore_ApplyRanksSetsUpdatedAt(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	before := time.Now()
	if err := store.ApplyRanks(ctx, []Record{{PropertyID: "a", Rank: 1}}); err != nil {
		t.Fatalf("ApplyRanks error = %v", err)
	}
	rec, err := store.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get error = %v", err)
	}
	if rec.UpdatedAt.Before(before) {
		t.Errorf("UpdatedAt = %v, want >= %v", rec.UpdatedAt, before)
	}
}
