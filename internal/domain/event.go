package domain

import "time"

// EventType names a committed platform operation.
type EventType string

// Event types
const (
	EventReferralRegistered EventType = "referral_registered"
	EventSaleRoundStarted   EventType = "sale_round_started"
	EventTradeRoundStarted  EventType = "trade_round_started"
	EventPurchase           EventType = "purchase"
	EventOrderPlaced        EventType = "order_placed"
	EventOrderRemoved       EventType = "order_removed"
	EventOrderRedeemed      EventType = "order_redeemed"
)

// Event is broadcast to stream subscribers after an operation commits.
type Event struct {
	ID      string    `json:"id"`
	Type    EventType `json:"type"`
	Round   int       `json:"round"`
	Time    time.Time `json:"time"`
	Payload any       `json:"payload"`
}
