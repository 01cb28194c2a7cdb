package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"counselmeet/internal/models"
	"counselmeet/pkg/database"
	"counselmeet/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// NewMongo returns MongoDB-backed stores. timeout bounds every call.
func NewMongo(db *mongo.Database, timeout time.Duration) Stores {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return Stores{
		Meetings:   &MongoMeetings{collection: db.Collection(database.MeetingsCollection), timeout: timeout},
		Counselors: &MongoCounselors{collection: db.Collection(database.CounselorsCollection), timeout: timeout},
		History:    &MongoHistory{collection: db.Collection(database.SessionHistoryCollection), timeout: timeout},
	}
}

// MongoMeetings stores meetings in the meetings collection
type MongoMeetings struct {
	collection *mongo.Collection
	timeout    time.Duration
}

func (r *MongoMeetings) Create(ctx context.Context, m *models.Meeting) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	if _, err := r.collection.InsertOne(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("insert meeting: %w", err)
	}
	return nil
}

func (r *MongoMeetings) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Meeting, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var m models.Meeting
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find meeting: %w", err)
	}
	return &m, nil
}

func (r *MongoMeetings) List(ctx context.Context, f MeetingFilter) ([]*models.Meeting, error) {
	filter := bson.M{}
	if f.ClientID != "" {
		filter["client_id"] = f.ClientID
	}
	if f.CounselorID != "" {
		filter["counselor_id"] = f.CounselorID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	return r.find(ctx, filter, opts)
}

func (r *MongoMeetings) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.Meeting, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find meetings: %w", err)
	}
	defer cursor.Close(ctx)

	out := make([]*models.Meeting, 0)
	for cursor.Next(ctx) {
		var m models.Meeting
		if err := cursor.Decode(&m); err != nil {
			logger.LogError(err, "decode meeting", map[string]interface{}{"filter": filter})
			continue
		}
		out = append(out, &m)
	}
	return out, cursor.Err()
}

// changesToUpdate renders MeetingChanges as a $set/$unset document
func changesToUpdate(ch MeetingChanges) bson.M {
	set := bson.M{}
	unset := bson.M{}

	if ch.Status != "" {
		set["status"] = ch.Status
	}
	putString(set, "counselor_id", ch.CounselorID)
	putString(set, "admin_assigned_by", ch.AdminAssignedBy)
	putTime(set, "admin_assigned_at", ch.AdminAssignedAt)
	putString(set, "meeting_date", ch.MeetingDate)
	putString(set, "meeting_time", ch.MeetingTime)
	putString(set, "timezone", ch.Timezone)
	putTime(set, "counselor_response_deadline", ch.CounselorResponseDeadline)
	putTime(set, "auto_expire_at", ch.AutoExpireAt)
	putString(set, "daily_room_name", ch.DailyRoomName)
	putString(set, "daily_room_url", ch.DailyRoomURL)
	if ch.GraceActive != nil {
		set["grace_active"] = *ch.GraceActive
	}
	putTime(set, "grace_end_time", ch.GraceEndTime)
	putString(set, "cancellation_reason", ch.CancellationReason)
	putString(set, "cancelled_by", ch.CancelledBy)
	putString(set, "no_show_reason", ch.NoShowReason)
	putString(set, "no_show_reported_by", ch.NoShowReportedBy)
	putTime(set, "completed_at", ch.CompletedAt)
	if !ch.UpdatedAt.IsZero() {
		set["updated_at"] = ch.UpdatedAt
	}

	switch {
	case ch.releasesSlot():
		unset["slot_hold"] = ""
	case ch.SlotHold != nil && *ch.SlotHold == "":
		unset["slot_hold"] = ""
	case ch.SlotHold != nil:
		set["slot_hold"] = *ch.SlotHold
	}

	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return update
}

func putString(doc bson.M, key string, v *string) {
	if v != nil {
		doc[key] = *v
	}
}

func putTime(doc bson.M, key string, v *time.Time) {
	if v != nil {
		doc[key] = *v
	}
}

func (r *MongoMeetings) Transition(ctx context.Context, id primitive.ObjectID, from []models.MeetingStatus, ch MeetingChanges) (*models.Meeting, error) {
	filter := bson.M{"_id": id, "status": bson.M{"$in": from}}
	return r.conditionalUpdate(ctx, id, filter, changesToUpdate(ch))
}

func (r *MongoMeetings) SetPresence(ctx context.Context, id primitive.ObjectID, who Participant, joined bool, now time.Time) (*models.Meeting, error) {
	field := "client_joined"
	if who == CounselorParticipant {
		field = "counselor_joined"
	}
	filter := bson.M{"_id": id, "status": models.StatusConfirmed}
	update := bson.M{"$set": bson.M{field: joined, "updated_at": now}}
	return r.conditionalUpdate(ctx, id, filter, update)
}

// conditionalUpdate applies update when filter matches and tells a missing
// meeting apart from one in the wrong state
func (r *MongoMeetings) conditionalUpdate(ctx context.Context, id primitive.ObjectID, filter, update bson.M) (*models.Meeting, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var m models.Meeting
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&m)
	switch {
	case err == nil:
		return &m, nil
	case mongo.IsDuplicateKeyError(err):
		return nil, ErrSlotTaken
	case errors.Is(err, mongo.ErrNoDocuments):
		n, countErr := r.collection.CountDocuments(ctx, bson.M{"_id": id})
		if countErr != nil {
			return nil, fmt.Errorf("count meeting: %w", countErr)
		}
		if n == 0 {
			return nil, ErrNotFound
		}
		return nil, ErrStateMismatch
	default:
		return nil, fmt.Errorf("update meeting: %w", err)
	}
}

func (r *MongoMeetings) HeldSlots(ctx context.Context, counselorID, date string) ([]string, error) {
	filter := bson.M{
		"counselor_id": counselorID,
		"meeting_date": date,
		"status":       bson.M{"$in": []models.MeetingStatus{models.StatusTimeSelected, models.StatusConfirmed}},
	}
	opts := options.Find().
		SetProjection(bson.M{"meeting_time": 1}).
		SetSort(bson.D{{Key: "meeting_time", Value: 1}})
	meetings, err := r.find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	times := make([]string, 0, len(meetings))
	for _, m := range meetings {
		times = append(times, m.MeetingTime)
	}
	return times, nil
}

func (r *MongoMeetings) LatestCounselorForClient(ctx context.Context, clientID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{
		"client_id":    clientID,
		"counselor_id": bson.M{"$nin": bson.A{nil, ""}},
		"status":       bson.M{"$in": []models.MeetingStatus{models.StatusCompleted, models.StatusConfirmed}},
	}
	opts := options.FindOne().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetProjection(bson.M{"counselor_id": 1})

	var m models.Meeting
	if err := r.collection.FindOne(ctx, filter, opts).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("find latest counselor: %w", err)
	}
	return m.CounselorID, nil
}

func batchOptions(limit int) *options.FindOptions {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return opts
}

func (r *MongoMeetings) FindGraceExpired(ctx context.Context, now time.Time, limit int) ([]*models.Meeting, error) {
	return r.find(ctx, bson.M{
		"status":         models.StatusConfirmed,
		"grace_active":   true,
		"grace_end_time": bson.M{"$lt": now},
	}, batchOptions(limit))
}

func (r *MongoMeetings) FindUngracedConfirmed(ctx context.Context, onOrBefore string, after primitive.ObjectID, limit int) ([]*models.Meeting, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, bson.M{
		"_id":          bson.M{"$gt": after},
		"status":       models.StatusConfirmed,
		"grace_active": bson.M{"$ne": true},
		"meeting_date": bson.M{"$lte": onOrBefore},
	}, opts)
}

func (r *MongoMeetings) FindAutoExpired(ctx context.Context, now time.Time, limit int) ([]*models.Meeting, error) {
	return r.find(ctx, bson.M{
		"status":         models.StatusTimeSelected,
		"auto_expire_at": bson.M{"$lt": now},
	}, batchOptions(limit))
}

// MongoCounselors stores counselor profiles in the counselors collection
type MongoCounselors struct {
	collection *mongo.Collection
	timeout    time.Duration
}

func (r *MongoCounselors) GetByID(ctx context.Context, id string) (*models.Counselor, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var c models.Counselor
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find counselor: %w", err)
	}
	return &c, nil
}

func (r *MongoCounselors) Save(ctx context.Context, c *models.Counselor) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"_id": c.ID}, c, opts); err != nil {
		return fmt.Errorf("save counselor: %w", err)
	}
	return nil
}

func (r *MongoCounselors) RecordSession(ctx context.Context, id string, outcome SessionOutcome) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	now := time.Now()
	if outcome.Completed && outcome.ClientID != "" {
		// The client_ids filter makes the activeClients bump happen once
		// per client even under concurrent completions.
		res, err := r.collection.UpdateOne(ctx,
			bson.M{"_id": id, "client_ids": bson.M{"$ne": outcome.ClientID}},
			bson.M{
				"$push": bson.M{"client_ids": outcome.ClientID},
				"$inc":  bson.M{"total_sessions": 1, "completed_sessions": 1, "active_clients": 1},
				"$set":  bson.M{"updated_at": now},
			})
		if err != nil {
			return fmt.Errorf("record first session: %w", err)
		}
		if res.MatchedCount == 1 {
			return nil
		}
	}

	inc := bson.M{"total_sessions": 1}
	if outcome.Completed {
		inc["completed_sessions"] = 1
	}
	return r.increment(ctx, id, inc, now)
}

func (r *MongoCounselors) RecordCancellation(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	return r.increment(ctx, id, bson.M{"cancelled_sessions": 1}, time.Now())
}

func (r *MongoCounselors) increment(ctx context.Context, id string, inc bson.M, now time.Time) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$inc": inc,
		"$set": bson.M{"updated_at": now},
	})
	if err != nil {
		return fmt.Errorf("update counselor counters: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func ifNull(field string) bson.D {
	return bson.D{{Key: "$ifNull", Value: bson.A{"$" + field, 0}}}
}

func (r *MongoCounselors) ApplyRating(ctx context.Context, id string, rating int) (*models.Counselor, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// A single pipeline stage reads the pre-update values, so the average
	// and the count move together.
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "average_rating", Value: bson.D{{Key: "$divide", Value: bson.A{
				bson.D{{Key: "$add", Value: bson.A{
					bson.D{{Key: "$multiply", Value: bson.A{ifNull("average_rating"), ifNull("total_ratings")}}},
					rating,
				}}},
				bson.D{{Key: "$add", Value: bson.A{ifNull("total_ratings"), 1}}},
			}}}},
			{Key: "total_ratings", Value: bson.D{{Key: "$add", Value: bson.A{ifNull("total_ratings"), 1}}}},
			{Key: "updated_at", Value: time.Now()},
		}}},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var c models.Counselor
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("apply rating: %w", err)
	}
	return &c, nil
}

// MongoHistory stores session history entries keyed uniquely by meeting_id
type MongoHistory struct {
	collection *mongo.Collection
	timeout    time.Duration
}

func (r *MongoHistory) Append(ctx context.Context, e *models.SessionHistoryEntry) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	if _, err := r.collection.InsertOne(ctx, e); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert history: %w", err)
	}
	return true, nil
}

func (r *MongoHistory) GetByMeeting(ctx context.Context, meetingID primitive.ObjectID) (*models.SessionHistoryEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var e models.SessionHistoryEntry
	if err := r.collection.FindOne(ctx, bson.M{"meeting_id": meetingID}).Decode(&e); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find history: %w", err)
	}
	return &e, nil
}

func (r *MongoHistory) SetRating(ctx context.Context, meetingID primitive.ObjectID, rating int, feedback string, now time.Time) (*models.SessionHistoryEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{"meeting_id": meetingID, "rating": bson.M{"$exists": false}}
	update := bson.M{"$set": bson.M{"rating": rating, "feedback": feedback, "rated_at": now}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var e models.SessionHistoryEntry
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&e)
	if err == nil {
		return &e, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("set rating: %w", err)
	}
	n, countErr := r.collection.CountDocuments(ctx, bson.M{"meeting_id": meetingID})
	if countErr != nil {
		return nil, fmt.Errorf("count history: %w", countErr)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return nil, ErrAlreadyRated
}

func (r *MongoHistory) ClearRating(ctx context.Context, meetingID primitive.ObjectID, rating int) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.collection.UpdateOne(ctx,
		bson.M{"meeting_id": meetingID, "rating": rating},
		bson.M{"$unset": bson.M{"rating": "", "feedback": "", "rated_at": ""}},
	)
	if err != nil {
		return fmt.Errorf("clear rating: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoHistory) ListByClient(ctx context.Context, clientID string, limit int) ([]*models.SessionHistoryEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := r.collection.Find(ctx, bson.M{"client_id": clientID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find history: %w", err)
	}
	defer cursor.Close(ctx)

	out := make([]*models.SessionHistoryEntry, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return out, nil
}
