package model

import "time"

// BotState is owned by whoever starts and stops a symbol. The engine only
// reads Running and writes the diagnostics.
type BotState struct {
	Symbol       string     `gorm:"primaryKey;type:varchar(20)" json:"symbol"`
	Running      bool       `gorm:"not null;default:false" json:"running"`
	LastRunAt    *time.Time `json:"last_run_at"`
	ErrorMessage *string    `gorm:"type:text" json:"error_message"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (BotState) TableName() string {
	return "bot_states"
}
