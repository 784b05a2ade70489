package models

import "time"

// OrderAcknowledgmentModel marks an order or order line as processed.
// Rows past ExpiresAt no longer count as processed.
type OrderAcknowledgmentModel struct {
	Key       string    `gorm:"column:ack_key;type:varchar(255);primary_key"`
	ExpiresAt time.Time `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderAcknowledgmentModel) TableName() string {
	return "order_acknowledgments"
}
