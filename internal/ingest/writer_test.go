package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"lureingest/internal/adapter/memstore"
	"lureingest/internal/domain"
)

func rowsFor(colors ...string) []domain.CanonicalRow {
	out := make([]domain.CanonicalRow, 0, len(colors))
	for _, c := range colors {
		out = append(out, domain.CanonicalRow{Source: "s", Slug: "abc", ColorName: c})
	}
	return out
}

func TestWriteIsIdempotent(t *testing.T) {
	catalog := memstore.NewCatalog()
	w := NewWriter(catalog, zerolog.Nop())
	rows := rowsFor("Red", "Blue", "Gold")

	first, err := w.Write(context.Background(), rows)
	if err != nil {
		t.Fatalf("first write: %v", err)
	}
	if first != (Counts{Attempted: 3, Inserted: 3}) {
		t.Fatalf("first counts = %+v", first)
	}
	second, err := w.Write(context.Background(), rows)
	if err != nil {
		t.Fatalf("second write: %v", err)
	}
	if second != (Counts{Attempted: 3, Skipped: 3}) {
		t.Fatalf("second counts = %+v", second)
	}
	if got := len(catalog.Rows()); got != 3 {
		t.Fatalf("catalog rows = %d, want 3", got)
	}
}

func TestWriteRowFailureDoesNotAbort(t *testing.T) {
	catalog := memstore.NewCatalog()
	catalog.InsertErr = func(r domain.CanonicalRow) error {
		if r.ColorName == "Blue" {
			return errors.New("value too long for type character varying(64)")
		}
		return nil
	}
	c, err := NewWriter(catalog, zerolog.Nop()).Write(context.Background(), rowsFor("Red", "Blue", "Gold"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != (Counts{Attempted: 3, Inserted: 2, Failed: 1}) {
		t.Fatalf("counts = %+v", c)
	}
	if c.AllFailed() {
		t.Fatalf("AllFailed should be false")
	}
}

func TestWriteAllFailed(t *testing.T) {
	catalog := memstore.NewCatalog()
	catalog.InsertErr = func(domain.CanonicalRow) error { return errors.New("check constraint") }
	c, err := NewWriter(catalog, zerolog.Nop()).Write(context.Background(), rowsFor("Red", "Blue"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.AllFailed() {
		t.Fatalf("counts = %+v, want all failed", c)
	}
}

type flakyCatalog struct {
	existsCalls int
	downAfter   int
	inserted    int
}

func (f *flakyCatalog) Exists(ctx context.Context, key domain.DedupKey) (bool, error) {
	f.existsCalls++
	if f.existsCalls > f.downAfter {
		return false, errors.New("dial tcp 10.0.0.5:5432: connect: connection refused")
	}
	return false, nil
}

func (f *flakyCatalog) Insert(ctx context.Context, row domain.CanonicalRow) error {
	f.inserted++
	return nil
}

func TestWriteConnectivityFailureAborts(t *testing.T) {
	catalog := &flakyCatalog{downAfter: 1}
	c, err := NewWriter(catalog, zerolog.Nop()).Write(context.Background(), rowsFor("Red", "Blue", "Gold"))
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
	if c.Inserted != 1 || catalog.existsCalls != 2 {
		t.Fatalf("counts = %+v exists calls = %d", c, catalog.existsCalls)
	}
}

func TestWriteInsertConnectivityFailureAborts(t *testing.T) {
	catalog := memstore.NewCatalog()
	catalog.InsertErr = func(domain.CanonicalRow) error {
		return domain.Unavailable("catalog insert", errors.New("conn closed"))
	}
	_, err := NewWriter(catalog, zerolog.Nop()).Write(context.Background(), rowsFor("Red", "Blue"))
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
}
