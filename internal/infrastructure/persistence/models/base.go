package models

import (
	"time"

	"github.com/google/uuid"
)

// BaseModel provides common persistence fields for mutable rows
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// AppendOnlyModel provides common persistence fields for rows that are never updated
type AppendOnlyModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null;index"`
}
