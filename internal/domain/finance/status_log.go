package finance

import (
	"time"

	"github.com/google/uuid"
)

// EntityType names the kind of record a status change applies to
type EntityType string

const (
	EntityTypeInstallment EntityType = "installment"
	EntityTypeContract    EntityType = "contract"
)

// StatusChangeLog records a manual status override. Written in the same
// transaction as the override itself.
type StatusChangeLog struct {
	ID         uuid.UUID  `json:"id"`
	EntityType EntityType `json:"entity_type"`
	EntityID   uuid.UUID  `json:"entity_id"`
	OldStatus  string     `json:"old_status"`
	NewStatus  string     `json:"new_status"`
	Reason     string     `json:"reason,omitempty"`
	ActorID    *uuid.UUID `json:"actor_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewStatusChangeLog creates a log entry stamped now
func NewStatusChangeLog(entityType EntityType, entityID uuid.UUID, oldStatus, newStatus, reason string, actorID *uuid.UUID) *StatusChangeLog {
	return &StatusChangeLog{
		ID:         uuid.New(),
		EntityType: entityType,
		EntityID:   entityID,
		OldStatus:  oldStatus,
		NewStatus:  newStatus,
		Reason:     reason,
		ActorID:    actorID,
		CreatedAt:  time.Now(),
	}
}
