package sqlinline

import (
	"testing"

	"lureingest/internal/infra"
)

func TestStatementsCarryUniqueMarkers(t *testing.T) {
	stmts := map[string]string{
		"QQueueListPending":   QQueueListPending,
		"QQueueSetStatus":     QQueueSetStatus,
		"QQueueEnqueue":       QQueueEnqueue,
		"QQueueReset":         QQueueReset,
		"QQueueCountByStatus": QQueueCountByStatus,
		"QCatalogExists":      QCatalogExists,
		"QCatalogInsert":      QCatalogInsert,
		"QSchemaPostgres":     QSchemaPostgres,
		"QLiteSchema":         QLiteSchema,
		"QLiteListPending":    QLiteListPending,
		"QLiteSetStatus":      QLiteSetStatus,
		"QLiteEnqueue":        QLiteEnqueue,
		"QLiteReset":          QLiteReset,
		"QLiteCountByStatus":  QLiteCountByStatus,
		"QLiteCatalogExists":  QLiteCatalogExists,
		"QLiteCatalogInsert":  QLiteCatalogInsert,
	}
	seen := map[string]string{}
	for name, q := range stmts {
		marker, _, err := infra.ExtractMarker(q)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if other, dup := seen[marker]; dup {
			t.Fatalf("%s reuses the marker of %s", name, other)
		}
		seen[marker] = name
	}
}
