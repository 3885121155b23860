package domain

import "time"

// OrderKind distinguishes what an order purchases.
type OrderKind string

const (
	OrderKindGeneration OrderKind = "generation"
	OrderKindPlan       OrderKind = "plan"
	OrderKindCredits    OrderKind = "credits"
)

// PaymentStatus tracks the money side of an order.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentCanceled PaymentStatus = "canceled"
)

// OrderStatus tracks fulfilment of an order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderCompleted  OrderStatus = "completed"
	OrderFailed     OrderStatus = "failed"
	OrderCancelled  OrderStatus = "cancelled"
	OrderClosed     OrderStatus = "closed"
)

// Terminal reports whether no worker may touch the order anymore.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderCompleted, OrderFailed, OrderCancelled, OrderClosed:
		return true
	}
	return false
}

// Order represents a purchase commitment for one generated artifact, a plan
// upgrade or a credit pack. An order may only reach processing after its
// payment status is paid; once closed it is immutable.
type Order struct {
	ID             string
	PrincipalID    string
	Kind           OrderKind
	Params         GenerationParams
	AmountCents    int64
	Currency       string
	PaymentRef     string
	PaymentStatus  PaymentStatus
	OrderStatus    OrderStatus
	PlanCode       string
	CreditPackCode string
	QuotaPool      string
	ArtifactURL    string
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// GenerationParams captures the requested track attributes. Stored as JSONB
// on the order and snapshotted into the queue job payload.
type GenerationParams struct {
	Title        string   `json:"title"`
	Style        string   `json:"style"`
	Moods        []string `json:"moods,omitempty"`
	Prompt       string   `json:"prompt"`
	Lyrics       string   `json:"lyrics,omitempty"`
	Instrumental bool     `json:"instrumental"`
	VocalGender  string   `json:"vocal_gender,omitempty"`
	DurationSec  int      `json:"duration_sec,omitempty"`
	Model        string   `json:"model,omitempty"`
}

// Validate rejects malformed parameters before any order or job is created.
func (p GenerationParams) Validate() error {
	if p.Prompt == "" && p.Lyrics == "" {
		return ErrInvalidParams
	}
	if len(p.Prompt) > 4000 || len(p.Lyrics) > 8000 {
		return ErrInvalidParams
	}
	if p.DurationSec < 0 || p.DurationSec > 600 {
		return ErrInvalidParams
	}
	switch p.VocalGender {
	case "", "m", "f":
	default:
		return ErrInvalidParams
	}
	return nil
}
