// Package entity holds the fields shared by tenant-owned records.
package entity

import (
	"time"

	"stockpost/internal/core/id"
	"stockpost/internal/core/tenant"
)

// BaseEntity contains the identity of every tenant-owned row.
type BaseEntity struct {
	// ID is the primary key (UUIDv7)
	ID id.ID `db:"id" json:"id"`

	// TenantID scopes the row; every query filters on it.
	TenantID string `db:"tenant_id" json:"-"`

	// Version for optimistic locking (incremented on each update)
	Version int `db:"version" json:"version"`
}

// NewBaseEntity creates a new BaseEntity with generated ID.
func NewBaseEntity(tenantID string) BaseEntity {
	return BaseEntity{
		ID:       id.New(),
		TenantID: tenantID,
		Version:  1,
	}
}

// BelongsTo reports whether the row is owned by the tenant of tc.
func (b *BaseEntity) BelongsTo(tc tenant.Context) bool {
	return b.TenantID == tc.TenantID
}

// BaseDocument extends BaseEntity with audit fields for documents.
type BaseDocument struct {
	BaseEntity

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
	CreatedBy string    `db:"created_by" json:"createdBy,omitempty"`
	UpdatedBy string    `db:"updated_by" json:"updatedBy,omitempty"`
}

// NewBaseDocument creates a new BaseDocument stamped with the acting user.
func NewBaseDocument(tc tenant.Context) BaseDocument {
	now := time.Now().UTC()
	return BaseDocument{
		BaseEntity: NewBaseEntity(tc.TenantID),
		CreatedAt:  now,
		UpdatedAt:  now,
		CreatedBy:  tc.ActorID,
		UpdatedBy:  tc.ActorID,
	}
}

// Touch stamps the modification and increments version.
func (b *BaseDocument) Touch(actorID string) {
	b.UpdatedAt = time.Now().UTC()
	b.UpdatedBy = actorID
	b.Version++
}
