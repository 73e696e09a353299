package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"lureingest/internal/adapter/memstore"
	"lureingest/internal/domain"
	"lureingest/internal/infra"
)

func testEnv(databaseURL string) *env {
	return &env{cfg: &infra.Config{DatabaseURL: databaseURL}, logger: zerolog.Nop()}
}

func TestOpenStoresMemory(t *testing.T) {
	ctx := context.Background()
	st, err := openStores(ctx, testEnv("memory"))
	if err != nil {
		t.Fatalf("openStores: %v", err)
	}
	defer st.close()
	if st.driver != infra.DriverMemory {
		t.Fatalf("driver = %q", st.driver)
	}
	if _, err := st.admin.Enqueue(ctx, domain.WorkItem{Source: "megabass", URL: "https://example.com/p/1"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	items, err := st.queue.ListPending(ctx, 0)
	if err != nil || len(items) != 1 {
		t.Fatalf("ListPending = %v, %v", items, err)
	}
}

func TestOpenStoresSQLiteMigratesOnOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "lures.db")
	st, err := openStores(ctx, testEnv("sqlite://"+path))
	if err != nil {
		t.Fatalf("openStores: %v", err)
	}
	defer st.close()

	if err := st.migrate(ctx); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	id, err := st.admin.Enqueue(ctx, domain.WorkItem{Source: "jackall", URL: "https://example.com/p/2"})
	if err != nil || id == "" {
		t.Fatalf("Enqueue = %q, %v", id, err)
	}
	counts, err := st.admin.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if counts[domain.WorkStatusPending] != 1 {
		t.Fatalf("pending = %d, want 1", counts[domain.WorkStatusPending])
	}
}

func TestOpenStoresRejectsUnknownScheme(t *testing.T) {
	if _, err := openStores(context.Background(), testEnv("mysql://db")); err == nil {
		t.Fatalf("expected error for mysql url")
	}
}

func TestReadOnlyQueueDropsTransitions(t *testing.T) {
	ctx := context.Background()
	q := memstore.NewQueue()
	id, _ := q.Enqueue(ctx, domain.WorkItem{Source: "s", URL: "https://example.com/p"})

	ro := readOnlyQueue{TaskQueue: q}
	if err := ro.SetStatus(ctx, id, domain.WorkStatusInProgress, ""); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	got, _ := q.Get(id)
	if got.Status != domain.WorkStatusPending {
		t.Fatalf("status = %q, want pending", got.Status)
	}
	items, _ := ro.ListPending(ctx, 0)
	if len(items) != 1 {
		t.Fatalf("ListPending through wrapper = %d items", len(items))
	}
}

func TestNewWorkItem(t *testing.T) {
	item, err := newWorkItem(" megabass ", " https://example.com/p/vision-110 ", " Vision 110 ")
	if err != nil {
		t.Fatalf("newWorkItem: %v", err)
	}
	if item.Source != "megabass" || item.URL != "https://example.com/p/vision-110" || item.Name != "Vision 110" {
		t.Fatalf("item = %+v", item)
	}
	for _, bad := range [][2]string{{"", "https://example.com"}, {"s", ""}, {"s", "/relative/path"}, {"s", "example.com/p"}} {
		if _, err := newWorkItem(bad[0], bad[1], ""); err == nil {
			t.Fatalf("newWorkItem(%q, %q) should fail", bad[0], bad[1])
		}
	}
}

func TestCheckSourceKnown(t *testing.T) {
	dir := t.TempDir()
	if err := checkSourceKnown(filepath.Join(dir, "missing.yaml"), "anything"); err != nil {
		t.Fatalf("missing file should skip the check: %v", err)
	}

	path := filepath.Join(dir, "sources.yaml")
	data := "sources:\n  - id: megabass\n    adapter: jsonld\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write sources: %v", err)
	}
	if err := checkSourceKnown(path, "megabass"); err != nil {
		t.Fatalf("known source rejected: %v", err)
	}
	err := checkSourceKnown(path, "duo")
	if err == nil || !strings.Contains(err.Error(), "megabass") {
		t.Fatalf("unknown source error = %v", err)
	}
}

func TestNewSchedulerValidatesSpec(t *testing.T) {
	if _, err := newScheduler("@every 30m", zerolog.Nop(), func() {}); err != nil {
		t.Fatalf("valid spec rejected: %v", err)
	}
	if _, err := newScheduler("every thirty minutes", zerolog.Nop(), func() {}); err == nil {
		t.Fatalf("invalid spec accepted")
	}
}
