package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpost/internal/core/entity"
	"stockpost/internal/core/id"
)

type sampleDocument struct {
	entity.BaseDocument
	Reference string   `db:"reference_number"`
	Note      *string  `db:"note"`
	Lines     []string `db:"-"`
	internal  int
}

func TestExtractDBColumns_EmbeddedFirst(t *testing.T) {
	cols := ExtractDBColumns[sampleDocument]()

	assert.Equal(t, []string{
		"id", "tenant_id", "version",
		"created_at", "updated_at", "created_by", "updated_by",
		"reference_number", "note",
	}, cols)
}

func TestStructToMap_ReadsEmbeddedAndPointerFields(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	note := "cycle count"
	doc := &sampleDocument{
		BaseDocument: entity.BaseDocument{
			BaseEntity: entity.BaseEntity{ID: id.New(), TenantID: "acme", Version: 3},
			CreatedAt:  now,
			CreatedBy:  "alice",
		},
		Reference: "ADJ-2026-000001",
		Note:      &note,
		Lines:     []string{"ignored"},
		internal:  7,
	}

	m := StructToMap(doc)
	require.Len(t, m, 9)
	assert.Equal(t, doc.ID, m["id"])
	assert.Equal(t, "acme", m["tenant_id"])
	assert.Equal(t, 3, m["version"])
	assert.Equal(t, now, m["created_at"])
	assert.Equal(t, "ADJ-2026-000001", m["reference_number"])
	assert.Equal(t, &note, m["note"])
	assert.NotContains(t, m, "-")
}

func TestStructToMap_NonStruct(t *testing.T) {
	assert.Nil(t, StructToMap(42))
}

func TestWithoutAndPickColumns(t *testing.T) {
	cols := Without([]string{"id", "tenant_id", "version", "status"}, "id", "version")
	assert.Equal(t, []string{"tenant_id", "status"}, cols)

	picked := PickColumns(map[string]any{"tenant_id": "acme", "status": "draft", "extra": 1}, cols)
	assert.Equal(t, map[string]any{"tenant_id": "acme", "status": "draft"}, picked)
}
