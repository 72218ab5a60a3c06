package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"voiceclone-bot/models"
)

var (
	// ErrUnavailable means the store could not be reached. Callers must
	// deny the current action and ask the user to retry; it is never
	// equivalent to "new user".
	ErrUnavailable = errors.New("storage unavailable")

	ErrNotFound = errors.New("user not found")

	// ErrConflict means a filtered update matched nothing because another
	// request won the race (or the precondition no longer holds).
	ErrConflict = errors.New("record changed concurrently")
)

// Users is the accessor for per-user records. Every counter mutation is a
// single server-side update so concurrent requests cannot exceed quota.
type Users struct {
	col *mongo.Collection
}

func NewUsers(db *mongo.Database) *Users {
	return &Users{col: db.Collection("users")}
}

// NewUserDocument is the default shape for a first-contact user.
// GetOrCreate's insert branch is built from it.
func NewUserDocument(id int64, username, fullName string, now time.Time) models.User {
	return models.User{
		TelegramUserID: id,
		Username:       username,
		FullName:       fullName,
		CreatedAt:      now,
		LastUpdated:    now,
		Usage:          models.Usage{},
		VoiceCloned:    false,
		Premium:        models.Premium{},
	}
}

// GetOrCreate fetches the record for id, atomically creating the default
// one on first contact. Profile fields are refreshed on every call.
func (s *Users) GetOrCreate(ctx context.Context, id int64, username, fullName string) (*models.User, error) {
	now := time.Now().UTC()
	doc := NewUserDocument(id, username, fullName, now)
	filter := bson.M{"telegram_user_id": id}
	update := bson.M{
		"$set": bson.M{
			"username":     username,
			"full_name":    fullName,
			"last_updated": now,
		},
		"$setOnInsert": bson.M{
			"telegram_user_id": doc.TelegramUserID,
			"created_at":       doc.CreatedAt,
			"usage":            doc.Usage,
			"voice_cloned":     doc.VoiceCloned,
			"voice":            doc.Voice,
			"premium":          doc.Premium,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var user models.User
	if err := s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&user); err != nil {
		return nil, fmt.Errorf("%w: get or create user %d: %v", ErrUnavailable, id, err)
	}
	return &user, nil
}

// Get fetches an existing record without creating one.
func (s *Users) Get(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := s.col.FindOne(ctx, bson.M{"telegram_user_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: get user %d: %v", ErrUnavailable, id, err)
	}
	return &user, nil
}

// RecordUsage charges a successful free-tier synthesis: both counters move
// in one $inc so they can never drift apart. Call only after the provider
// call succeeded.
func (s *Users) RecordUsage(ctx context.Context, id int64, chars int64) error {
	now := time.Now().UTC()
	_, err := s.col.UpdateOne(ctx,
		bson.M{"telegram_user_id": id},
		bson.M{
			"$inc": bson.M{
				"usage.total_chars_used": chars,
				"usage.request_count":    int64(1),
			},
			"$set": bson.M{
				"last_used_at": now,
				"last_updated": now,
			},
		},
	)
	if err != nil {
		return fmt.Errorf("%w: record usage for %d: %v", ErrUnavailable, id, err)
	}
	return nil
}

// RecordFirstClone stores the voice profile for a free-tier user. The
// filter requires voice_cloned to still be false, so of two concurrent
// first clones exactly one lands.
func (s *Users) RecordFirstClone(ctx context.Context, id int64, voiceID, status string) error {
	now := time.Now().UTC()
	err := s.col.FindOneAndUpdate(ctx,
		bson.M{"telegram_user_id": id, "voice_cloned": false},
		bson.M{"$set": bson.M{
			"voice.voice_id": voiceID,
			"voice.status":   status,
			"voice_cloned":   true,
			"last_used_at":   now,
			"last_updated":   now,
		}},
	).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrConflict
		}
		return fmt.Errorf("%w: record clone for %d: %v", ErrUnavailable, id, err)
	}
	return nil
}

// RecordPremiumClone overwrites the voice profile and spends one premium
// clone. The filter keys the increment on the pre-increment counter, so
// the quota cannot be exceeded by concurrent requests.
func (s *Users) RecordPremiumClone(ctx context.Context, id int64, voiceID, status string) error {
	now := time.Now().UTC()
	err := s.col.FindOneAndUpdate(ctx,
		bson.M{
			"telegram_user_id":   id,
			"premium.is_premium": true,
			"$expr":              bson.M{"$lt": bson.A{"$premium.voice_clones_used", "$premium.max_voice_clones"}},
		},
		bson.M{
			"$inc": bson.M{"premium.voice_clones_used": 1},
			"$set": bson.M{
				"voice.voice_id": voiceID,
				"voice.status":   status,
				"voice_cloned":   true,
				"last_used_at":   now,
				"last_updated":   now,
			},
		},
	).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrConflict
		}
		return fmt.Errorf("%w: record premium clone for %d: %v", ErrUnavailable, id, err)
	}
	return nil
}

// DeductPremiumChars spends chars from an active metered premium budget
// and mirrors them into the lifetime usage counter. Returns false without
// mutating anything when the remaining budget is too small.
func (s *Users) DeductPremiumChars(ctx context.Context, id int64, chars int64) (bool, error) {
	now := time.Now().UTC()
	err := s.col.FindOneAndUpdate(ctx,
		bson.M{
			"telegram_user_id":        id,
			"premium.is_premium":      true,
			"premium.remaining_chars": bson.M{"$gte": chars},
		},
		bson.M{
			"$inc": bson.M{
				"premium.remaining_chars": -chars,
				"usage.total_chars_used":  chars,
				"usage.request_count":     int64(1),
			},
			"$set": bson.M{
				"last_used_at": now,
				"last_updated": now,
			},
		},
	).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, fmt.Errorf("%w: deduct chars for %d: %v", ErrUnavailable, id, err)
	}
	return true, nil
}

// RefundPremiumChars returns chars to the premium budget after a
// downstream failure. Usage counters stay where they are: they are
// lifetime totals and never decrease.
func (s *Users) RefundPremiumChars(ctx context.Context, id int64, chars int64) error {
	_, err := s.col.UpdateOne(ctx,
		bson.M{"telegram_user_id": id, "premium.is_premium": true},
		bson.M{
			"$inc": bson.M{"premium.remaining_chars": chars},
			"$set": bson.M{"last_updated": time.Now().UTC()},
		},
	)
	if err != nil {
		return fmt.Errorf("%w: refund chars for %d: %v", ErrUnavailable, id, err)
	}
	return nil
}

// SetPremium overwrites the whole premium sub-record (activation).
func (s *Users) SetPremium(ctx context.Context, id int64, p models.Premium) error {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"telegram_user_id": id},
		bson.M{"$set": bson.M{
			"premium":      p,
			"last_updated": time.Now().UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("%w: set premium for %d: %v", ErrUnavailable, id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearPremium deactivates premium in place. Usage counters and the voice
// profile are left untouched.
func (s *Users) ClearPremium(ctx context.Context, id int64, deactivatedOn time.Time) error {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"telegram_user_id": id},
		bson.M{"$set": bson.M{
			"premium.is_premium":      false,
			"premium.deactivated_on":  deactivatedOn,
			"premium.remaining_chars": int64(0),
			"last_updated":            time.Now().UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("%w: clear premium for %d: %v", ErrUnavailable, id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a record entirely. Admin escape hatch only.
func (s *Users) Delete(ctx context.Context, id int64) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"telegram_user_id": id})
	if err != nil {
		return fmt.Errorf("%w: delete user %d: %v", ErrUnavailable, id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// AllUserIDs returns every known user id for broadcast fan-out.
func (s *Users) AllUserIDs(ctx context.Context) ([]int64, error) {
	opts := options.Find().SetProjection(bson.M{"telegram_user_id": 1})
	cur, err := s.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: list user ids: %v", ErrUnavailable, err)
	}
	defer cur.Close(ctx)

	var ids []int64
	for cur.Next(ctx) {
		var doc struct {
			TelegramUserID int64 `bson:"telegram_user_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			continue
		}
		ids = append(ids, doc.TelegramUserID)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%w: list user ids: %v", ErrUnavailable, err)
	}
	return ids, nil
}

// Stats is the admin dashboard aggregate.
type Stats struct {
	TotalUsers        int64
	PremiumUsers      int64
	ActiveToday       int64
	TotalCharsAllUsers int64
}

// GetStats runs the read-only aggregation behind the admin panel.
func (s *Users) GetStats(ctx context.Context, activeSince time.Time) (Stats, error) {
	var stats Stats
	var err error

	stats.TotalUsers, err = s.col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return stats, fmt.Errorf("%w: count users: %v", ErrUnavailable, err)
	}
	stats.PremiumUsers, err = s.col.CountDocuments(ctx, bson.M{"premium.is_premium": true})
	if err != nil {
		return stats, fmt.Errorf("%w: count premium users: %v", ErrUnavailable, err)
	}
	stats.ActiveToday, err = s.col.CountDocuments(ctx, bson.M{"last_used_at": bson.M{"$gte": activeSince}})
	if err != nil {
		return stats, fmt.Errorf("%w: count active users: %v", ErrUnavailable, err)
	}

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": "$usage.total_chars_used"},
		}}},
	}
	cur, err := s.col.Aggregate(ctx, pipeline)
	if err != nil {
		return stats, fmt.Errorf("%w: sum chars: %v", ErrUnavailable, err)
	}
	defer cur.Close(ctx)
	if cur.Next(ctx) {
		var doc struct {
			Total int64 `bson:"total"`
		}
		if err := cur.Decode(&doc); err == nil {
			stats.TotalCharsAllUsers = doc.Total
		}
	}
	return stats, nil
}
