package domain

import "time"

// PaymentStatus represents the settlement state of a payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
)

// PaymentMethod represents how the rider pays.
type PaymentMethod string

const (
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodWallet PaymentMethod = "wallet"
)

// IsValid reports whether m is a supported payment method.
func (m PaymentMethod) IsValid() bool {
	return m == PaymentMethodCard || m == PaymentMethodCash || m == PaymentMethodWallet
}

// Payment is the ledger entry for a ride. There is at most one per ride.
type Payment struct {
	ID             string
	RideID         string
	BaseAmount     float64
	Discount       float64
	Amount         float64
	PromoCode      string
	Method         PaymentMethod
	Status         PaymentStatus
	TransactionRef string
	ProcessedAt    time.Time
	CreatedAt      time.Time
}
