package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"lureingest/internal/domain"
)

func TestClassify(t *testing.T) {
	if classify("op", nil) != nil {
		t.Fatalf("nil error should stay nil")
	}

	pgErr := &pgconn.PgError{Code: "23514", Message: "check constraint"}
	got := classify("catalog insert", fmt.Errorf("exec: %w", pgErr))
	if errors.Is(got, domain.ErrStoreUnavailable) {
		t.Fatalf("statement error classified as unavailable: %v", got)
	}

	for _, err := range []error{errors.New("dial tcp: connection refused"), context.DeadlineExceeded} {
		got := classify("catalog exists", err)
		if !errors.Is(got, domain.ErrStoreUnavailable) || !errors.Is(got, err) {
			t.Fatalf("classify(%v) = %v, want unavailable wrapping cause", err, got)
		}
	}
}
