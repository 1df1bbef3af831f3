package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"example.com/tri/internal/domain"
	"example.com/tri/internal/events"
)

// SyncTrigger runs a reconciliation pass for an owner.
type SyncTrigger interface {
	Trigger(ctx context.Context, ownerID string) error
}

// DeltaHandler reacts to wellness-gateway delta notifications by triggering a
// reconciliation pass for the affected owner. Notifications for owners with
// sync disabled are acknowledged and dropped.
type DeltaHandler struct {
	trigger  SyncTrigger
	profiles domain.ProfileRepository
}

// NewDeltaHandler constructs a DeltaHandler.
func NewDeltaHandler(trigger SyncTrigger, profiles domain.ProfileRepository) *DeltaHandler {
	return &DeltaHandler{trigger: trigger, profiles: profiles}
}

// Handle decodes the notification and triggers a sync pass.
func (h *DeltaHandler) Handle(ctx context.Context, msg Message) error {
	var notice events.DeltaAvailable
	if err := json.Unmarshal(msg.Payload, &notice); err != nil {
		return fmt.Errorf("decode delta notification: %w", err)
	}

	ownerID := notice.OwnerID
	if ownerID == "" {
		ownerID = msg.OwnerID
	}
	if ownerID == "" {
		return fmt.Errorf("delta notification without owner (topic=%s offset=%d)", msg.Topic, msg.Offset)
	}

	profile, err := h.profiles.Load(ctx, ownerID)
	if err != nil {
		return err
	}
	if !profile.HealthSyncEnabled {
		recordSkippedDisabled(msg.Topic)
		return nil
	}

	return h.trigger.Trigger(ctx, ownerID)
}
