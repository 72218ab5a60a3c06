package models

import "time"

// TransactionPending is a premium purchase waiting for the payment
// provider's webhook confirmation.
type TransactionPending struct {
	TransactionID string    `bson:"transactionID"`
	TelegramID    int64     `bson:"telegramID"`
	PlanDays      int       `bson:"plan_days"`
	Amount        int       `bson:"amount"`
	UpdatedAt     time.Time `bson:"updated_at,omitempty"`
}

// TransactionSuccess records a confirmed purchase and the activation it
// produced.
type TransactionSuccess struct {
	TransactionID string    `bson:"transactionID"`
	TelegramID    int64     `bson:"telegramID"`
	ActivatedAt   time.Time `bson:"activatedAt"`
	PlanDays      int       `bson:"plan_days"`
	Amount        int       `bson:"amount"`
}
