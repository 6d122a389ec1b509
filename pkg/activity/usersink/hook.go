package usersink

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-draft/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook adapts draft activity events to a go-users ActivitySink.
type Hook struct {
	Sink usertypes.ActivitySink
	// TenantID is applied when events carry none.
	TenantID string
}

// Notify maps the event into an ActivityRecord and forwards it to the sink.
// The draft storage key travels as ObjectID and is echoed into Data["key"].
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}

	normalized := activity.NormalizeEvent(event)
	if normalized.Verb == "" || normalized.ObjectType == "" || normalized.ObjectID == "" {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	tenant := normalized.TenantID
	if tenant == "" {
		tenant = h.TenantID
	}

	data := normalized.Metadata
	if data == nil {
		data = map[string]any{}
	}
	data["key"] = normalized.ObjectID

	record := usertypes.ActivityRecord{
		ActorID:    parseUUID(normalized.ActorID),
		UserID:     parseUUID(normalized.UserID),
		TenantID:   parseUUID(tenant),
		Verb:       normalized.Verb,
		ObjectType: normalized.ObjectType,
		ObjectID:   normalized.ObjectID,
		Channel:    normalized.Channel,
		Data:       data,
		OccurredAt: normalized.OccurredAt,
	}
	if record.OccurredAt.IsZero() {
		record.OccurredAt = time.Now()
	}

	return h.Sink.Log(ctx, record)
}

func parseUUID(input string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return uuid.Nil
	}
	return id
}
