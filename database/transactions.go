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

// Transactions tracks premium purchases across the payment webhook
// round-trip.
type Transactions struct {
	pending *mongo.Collection
	success *mongo.Collection
}

func NewTransactions(db *mongo.Database) *Transactions {
	return &Transactions{
		pending: db.Collection("transactionPending"),
		success: db.Collection("transactionSuccess"),
	}
}

// SavePending upserts a purchase waiting for confirmation.
func (t *Transactions) SavePending(ctx context.Context, tx models.TransactionPending) error {
	filter := bson.M{"telegramID": tx.TelegramID, "transactionID": tx.TransactionID}
	update := bson.M{
		"$set": bson.M{
			"plan_days":  tx.PlanDays,
			"amount":     tx.Amount,
			"updated_at": time.Now().UTC(),
		},
		"$setOnInsert": bson.M{
			"telegramID":    tx.TelegramID,
			"transactionID": tx.TransactionID,
		},
	}
	opts := options.Update().SetUpsert(true)

	if _, err := t.pending.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("%w: save pending transaction %s: %v", ErrUnavailable, tx.TransactionID, err)
	}
	return nil
}

// FindPending looks a pending purchase up by transaction id.
func (t *Transactions) FindPending(ctx context.Context, transactionID string) (*models.TransactionPending, error) {
	var tx models.TransactionPending
	err := t.pending.FindOne(ctx, bson.M{"transactionID": transactionID}).Decode(&tx)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: find pending transaction %s: %v", ErrUnavailable, transactionID, err)
	}
	return &tx, nil
}

// MarkSuccess records the confirmed purchase and drops the pending entry.
func (t *Transactions) MarkSuccess(ctx context.Context, tx *models.TransactionPending, activatedAt time.Time) error {
	success := models.TransactionSuccess{
		TransactionID: tx.TransactionID,
		TelegramID:    tx.TelegramID,
		ActivatedAt:   activatedAt,
		PlanDays:      tx.PlanDays,
		Amount:        tx.Amount,
	}
	if _, err := t.success.InsertOne(ctx, success); err != nil {
		return fmt.Errorf("%w: save success transaction %s: %v", ErrUnavailable, tx.TransactionID, err)
	}
	if _, err := t.pending.DeleteOne(ctx, bson.M{"transactionID": tx.TransactionID}); err != nil {
		return fmt.Errorf("%w: delete pending transaction %s: %v", ErrUnavailable, tx.TransactionID, err)
	}
	return nil
}

// DeletePending drops a cancelled purchase.
func (t *Transactions) DeletePending(ctx context.Context, transactionID string) error {
	if _, err := t.pending.DeleteOne(ctx, bson.M{"transactionID": transactionID}); err != nil {
		return fmt.Errorf("%w: delete pending transaction %s: %v", ErrUnavailable, transactionID, err)
	}
	return nil
}
