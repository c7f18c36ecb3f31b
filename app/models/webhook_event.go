package models

import "time"

// WebhookEvent is the idempotency ledger. ID is the Stripe event id, or
// "finalize:<checkout session id>" for finalize calls.
type WebhookEvent struct {
	ID              string     `gorm:"primaryKey;type:varchar(191)" json:"id"`
	Type            string     `gorm:"type:varchar(100);not null;index" json:"type"`
	Payload         string     `gorm:"type:text" json:"payload,omitempty"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// FinalizeEventID is the ledger key for a finalize call.
func FinalizeEventID(sessionID string) string {
	return "finalize:" + sessionID
}

// IsDone reports whether the event finished without error and must not run again.
func (e *WebhookEvent) IsDone() bool {
	return e.ProcessedAt != nil && e.ProcessingError == ""
}
