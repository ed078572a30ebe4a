package mongo

import (
	"context"
	"regexp"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/seatmap-engine/internal/domain"
	"github.com/robertarktes/seatmap-engine/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// seat ids become document field paths; anything else would let a caller
// address arbitrary fields.
var seatIDPattern = regexp.MustCompile(`^[A-Z][1-9][0-9]{0,2}$`)

// SeatMapStore keeps one document per event in the seat_maps collection.
// Every seat transition is a single UpdateOne whose filter carries the
// transition's precondition, so MongoDB's per-document atomicity makes it a
// compare-and-set on that seat.
type SeatMapStore struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewSeatMapStore(db *mongo.Database, logger observability.Logger) *SeatMapStore {
	return &SeatMapStore{
		coll:   db.Collection("seat_maps"),
		logger: logger,
	}
}

type SeatMapDoc struct {
	EventID   string             `bson:"_id"`
	VenueID   string             `bson:"venue_id"`
	Rows      int                `bson:"rows"`
	Cols      int                `bson:"cols"`
	Seats     map[string]SeatDoc `bson:"seats"`
	CreatedAt time.Time          `bson:"created_at"`
}

type SeatDoc struct {
	Status    string     `bson:"status"`
	HeldBy    *string    `bson:"held_by"`
	HoldUntil *time.Time `bson:"hold_until"`
}

func toDoc(m *domain.SeatMap) SeatMapDoc {
	seats := make(map[string]SeatDoc, len(m.Seats))
	for id, s := range m.Seats {
		d := SeatDoc{Status: string(s.Status), HoldUntil: s.HoldUntil}
		if s.HeldBy != "" {
			holder := s.HeldBy
			d.HeldBy = &holder
		}
		seats[id] = d
	}
	return SeatMapDoc{
		EventID:   m.EventID.String(),
		VenueID:   m.VenueID.String(),
		Rows:      m.Rows,
		Cols:      m.Cols,
		Seats:     seats,
		CreatedAt: time.Now().UTC(),
	}
}

func (d SeatMapDoc) toDomain() (*domain.SeatMap, error) {
	eventID, err := uuid.Parse(d.EventID)
	if err != nil {
		return nil, errors.Wrapf(err, "seat map %q: bad event id", d.EventID)
	}
	venueID, err := uuid.Parse(d.VenueID)
	if err != nil {
		return nil, errors.Wrapf(err, "seat map %q: bad venue id", d.EventID)
	}
	seats := make(map[string]domain.Seat, len(d.Seats))
	for id, s := range d.Seats {
		seat := domain.Seat{Status: domain.SeatStatus(s.Status), HoldUntil: s.HoldUntil}
		if s.HeldBy != nil {
			seat.HeldBy = *s.HeldBy
		}
		seats[id] = seat
	}
	return &domain.SeatMap{EventID: eventID, VenueID: venueID, Rows: d.Rows, Cols: d.Cols, Seats: seats}, nil
}

func (s *SeatMapStore) Create(ctx context.Context, m *domain.SeatMap) error {
	_, err := s.coll.InsertOne(ctx, toDoc(m))
	if mongo.IsDuplicateKeyError(err) {
		return errors.Wrapf(domain.ErrDuplicateSeatMap, "event %s", m.EventID)
	}
	if err != nil {
		s.logger.Error("failed to create seat map", err)
		return errors.Wrap(err, "insert seat map")
	}
	return nil
}

func (s *SeatMapStore) Get(ctx context.Context, eventID uuid.UUID) (*domain.SeatMap, error) {
	var doc SeatMapDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": eventID.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.Wrapf(domain.ErrSeatMapNotFound, "event %s", eventID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "find seat map")
	}
	return doc.toDomain()
}

func (s *SeatMapStore) EventIDs(ctx context.Context) ([]uuid.UUID, error) {
	cur, err := s.coll.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, errors.Wrap(err, "list seat maps")
	}
	defer cur.Close(ctx)

	var ids []uuid.UUID
	for cur.Next(ctx) {
		var row struct {
			ID string `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, errors.Wrap(err, "decode seat map id")
		}
		id, err := uuid.Parse(row.ID)
		if err != nil {
			s.logger.WithField("id", row.ID).Warn("skipping seat map with malformed id")
			continue
		}
		ids = append(ids, id)
	}
	return ids, errors.Wrap(cur.Err(), "iterate seat maps")
}

func (s *SeatMapStore) Acquire(ctx context.Context, lease domain.Lease, now time.Time) (bool, error) {
	if !seatIDPattern.MatchString(lease.SeatID) {
		return false, nil
	}
	f := "seats." + lease.SeatID
	filter := bson.M{
		"_id": lease.EventID.String(),
		"$or": bson.A{
			bson.M{f + ".status": string(domain.SeatFree)},
			bson.M{f + ".status": string(domain.SeatHeld), f + ".hold_until": bson.M{"$lt": now}},
		},
	}
	update := bson.M{"$set": bson.M{
		f + ".status":     string(domain.SeatHeld),
		f + ".held_by":    lease.Holder,
		f + ".hold_until": lease.Until,
	}}
	return s.transition(ctx, filter, update, "acquire")
}

func (s *SeatMapStore) Revert(ctx context.Context, lease domain.Lease) (bool, error) {
	if !seatIDPattern.MatchString(lease.SeatID) {
		return false, nil
	}
	f := "seats." + lease.SeatID
	filter := bson.M{
		"_id":             lease.EventID.String(),
		f + ".status":     string(domain.SeatHeld),
		f + ".held_by":    lease.Holder,
		f + ".hold_until": lease.Until,
	}
	return s.transition(ctx, filter, freeSeat(f), "revert")
}

func (s *SeatMapStore) Release(ctx context.Context, eventID uuid.UUID, seatID, holder string) (bool, error) {
	if !seatIDPattern.MatchString(seatID) {
		return false, nil
	}
	f := "seats." + seatID
	filter := bson.M{
		"_id":          eventID.String(),
		f + ".status":  string(domain.SeatHeld),
		f + ".held_by": holder,
	}
	return s.transition(ctx, filter, freeSeat(f), "release")
}

func (s *SeatMapStore) Confirm(ctx context.Context, eventID uuid.UUID, seatID, holder string) (bool, error) {
	if !seatIDPattern.MatchString(seatID) {
		return false, nil
	}
	f := "seats." + seatID
	filter := bson.M{
		"_id":          eventID.String(),
		f + ".status":  string(domain.SeatHeld),
		f + ".held_by": holder,
	}
	update := bson.M{"$set": bson.M{
		f + ".status":     string(domain.SeatSold),
		f + ".hold_until": nil,
	}}
	return s.transition(ctx, filter, update, "confirm")
}

// ExpireHolds reads the map, then frees every lapsed seat with one pipeline
// update. Each seat is rewritten through $cond on the expiry predicate, so a
// seat re-acquired between the read and the write keeps its new lease.
func (s *SeatMapStore) ExpireHolds(ctx context.Context, eventID uuid.UUID, now time.Time) ([]string, error) {
	m, err := s.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	expired := m.ExpiredSeats(now)
	if len(expired) == 0 {
		return nil, nil
	}

	set := bson.M{}
	for _, id := range expired {
		f := "seats." + id
		set[f] = bson.M{"$cond": bson.A{
			bson.M{"$and": bson.A{
				bson.M{"$eq": bson.A{"$" + f + ".status", string(domain.SeatHeld)}},
				bson.M{"$ne": bson.A{"$" + f + ".hold_until", nil}},
				bson.M{"$lt": bson.A{"$" + f + ".hold_until", now}},
			}},
			bson.M{"status": string(domain.SeatFree), "held_by": nil, "hold_until": nil},
			"$" + f,
		}}
	}
	pipeline := mongo.Pipeline{{{Key: "$set", Value: set}}}
	if _, err := s.coll.UpdateOne(ctx, bson.M{"_id": eventID.String()}, pipeline); err != nil {
		return nil, errors.Wrapf(err, "expire holds for event %s", eventID)
	}
	return expired, nil
}

func (s *SeatMapStore) transition(ctx context.Context, filter, update bson.M, op string) (bool, error) {
	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, errors.Wrapf(err, "%s seat", op)
	}
	return res.MatchedCount == 1, nil
}

func freeSeat(field string) bson.M {
	return bson.M{"$set": bson.M{
		field + ".status":     string(domain.SeatFree),
		field + ".held_by":    nil,
		field + ".hold_until": nil,
	}}
}

func (s *SeatMapStore) Ping(ctx context.Context) error {
	return s.coll.Database().Client().Ping(ctx, nil)
}
