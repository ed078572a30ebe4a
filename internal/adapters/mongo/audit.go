package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/seatmap-engine/internal/domain"
	"github.com/robertarktes/seatmap-engine/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditLog struct {
	ID        string    `bson:"_id"`
	Action    string    `bson:"action"`
	UserID    string    `bson:"user_id,omitempty"`
	EventID   string    `bson:"event_id"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

func (a *AuditLogger) LogEvent(ctx context.Context, action string, userID string, eventID uuid.UUID, data map[string]interface{}) error {
	log := AuditLog{
		ID:        uuid.New().String(),
		Action:    action,
		UserID:    userID,
		EventID:   eventID.String(),
		Timestamp: time.Now().UTC(),
		Data:      bson.M(data),
	}
	_, err := a.coll.InsertOne(ctx, log)
	if err != nil {
		a.logger.Error("failed to insert audit log", err)
		return err
	}
	return nil
}

// Record stores a seat change as an audit entry.
func (a *AuditLogger) Record(ctx context.Context, ev domain.SeatEvent) error {
	data := map[string]interface{}{
		"seats": ev.Seats,
		"at":    ev.At,
	}
	if ev.HoldUntil != nil {
		data["hold_until"] = ev.HoldUntil.Format(time.RFC3339)
	}
	return a.LogEvent(ctx, string(ev.Type), ev.Holder, ev.EventID, data)
}
