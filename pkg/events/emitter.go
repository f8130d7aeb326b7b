// Package events handles event emission for account lifecycle changes
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	appctx "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Publisher is implemented by kafka.Producer
type Publisher interface {
	PublishAccountEvent(ctx context.Context, event *kafka.AccountEvent) error
}

// Emitter handles event emission for Clover. A nil publisher disables emission.
type Emitter struct {
	publisher Publisher
	logger    ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(publisher Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		logger:    logger,
	}
}

// EmitAccountMerged emits an account.merged event for a committed merge
func (e *Emitter) EmitAccountMerged(ctx context.Context, result *models.MergeResult, mergedBy string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitAccountMerged")
	defer span.End()

	if e.publisher == nil {
		e.logger.WithContext(ctx).Debug("Event publishing disabled, skipping account.merged")
		return nil
	}

	event := AccountMergedEvent{
		BaseEvent: BaseEvent{
			EventType:     EventTypeAccountMerged,
			SchemaVersion: SchemaVersion,
			Timestamp:     time.Now().UTC(),
			CorrelationID: appctx.GetRequestID(ctx),
		},
		TargetID:    result.Target.ID,
		SourceID:    result.DeletedSourceID,
		SourceEmail: result.DeletedSourceEmail,
		MergedBy:    mergedBy,
		AuditNoteID: result.AuditNoteID,
		Stats:       result.Stats,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal account.merged event: %w", err)
	}

	if err := e.publisher.PublishAccountEvent(ctx, &kafka.AccountEvent{
		EventType: string(EventTypeAccountMerged),
		AccountID: result.Target.ID,
		Data:      data,
		Timestamp: event.Timestamp,
	}); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit account.merged event")
		return err
	}

	return nil
}
