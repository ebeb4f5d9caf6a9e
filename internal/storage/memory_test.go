package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestMemoryStoreRoundTrips(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	run := sampleMutationRun("m1", "2024-01-01T00:00:00Z")
	if err := store.SaveMutationRun(ctx, run); err != nil {
		t.Fatalf("save mutation run: %v", err)
	}
	run.Mutations[0].Position = 99
	loaded, ok, err := store.GetMutationRun(ctx, "m1")
	if err != nil || !ok {
		t.Fatalf("get mutation run: ok=%v err=%v", ok, err)
	}
	if loaded.Mutations[0].Position != 4 {
		t.Fatal("expected stored run to be isolated from caller mutation")
	}

	growth := sampleGrowthRun("g1", "2024-01-01T00:00:00Z")
	if err := store.SaveGrowthRun(ctx, growth); err != nil {
		t.Fatalf("save growth run: %v", err)
	}
	loadedGrowth, ok, err := store.GetGrowthRun(ctx, "g1")
	if err != nil || !ok || !reflect.DeepEqual(loadedGrowth, growth) {
		t.Fatalf("unexpected growth run: ok=%v err=%v %+v", ok, err, loadedGrowth)
	}

	report := sampleReport("r1", "2024-01-01T00:00:00Z")
	if err := store.SaveResistanceReport(ctx, report); err != nil {
		t.Fatalf("save report: %v", err)
	}
	loadedReport, ok, err := store.GetResistanceReport(ctx, "r1")
	if err != nil || !ok || !reflect.DeepEqual(loadedReport, report) {
		t.Fatalf("unexpected report: ok=%v err=%v %+v", ok, err, loadedReport)
	}

	if _, ok, err := store.GetGrowthRun(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing growth run, ok=%v err=%v", ok, err)
	}
}

func TestMemoryStoreListIDsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	for _, run := range []struct{ id, created string }{
		{"old", "2024-01-01T00:00:00Z"},
		{"new", "2024-03-01T00:00:00Z"},
		{"mid", "2024-02-01T00:00:00Z"},
	} {
		if err := store.SaveGrowthRun(ctx, sampleGrowthRun(run.id, run.created)); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	ids, err := store.ListIDs(ctx, KindGrowthRun)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"new", "mid", "old"}) {
		t.Fatalf("unexpected order %v", ids)
	}
	if ids, _ := store.ListIDs(ctx, KindMutationRun); len(ids) != 0 {
		t.Fatalf("expected no mutation runs, got %v", ids)
	}
	if _, err := store.ListIDs(ctx, "bogus"); err == nil {
		t.Fatal("expected unsupported kind error")
	}
}

func TestMemoryStoreValidatesRecords(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.SaveMutationRun(ctx, sampleMutationRun("m1", "")); err == nil {
		t.Fatal("expected error before init")
	}
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := store.SaveMutationRun(ctx, sampleMutationRun("", "")); err == nil {
		t.Fatal("expected missing id error")
	}
	stale := sampleReport("r1", "")
	stale.CodecVersion = 0
	if err := store.SaveResistanceReport(ctx, stale); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
}
