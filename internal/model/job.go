package model

import (
	"time"

	"gorm.io/datatypes"
)

type Job struct {
	ID          uint                   `gorm:"primaryKey" json:"id"`
	Name        string                 `gorm:"type:varchar(255);not null" json:"name"`
	Description string                 `gorm:"type:text" json:"description"`
	Type        string                 `gorm:"type:varchar(50);not null" json:"type"`
	Payload     datatypes.JSON         `gorm:"type:jsonb;not null" json:"payload"`
	Timeout     int                    `gorm:"default:60" json:"timeout"`
	CreatedAt   time.Time              `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time              `gorm:"autoUpdateTime" json:"updated_at"`
	Schedules   []TaskSchedule         `gorm:"foreignKey:JobID" json:"schedules,omitempty"`
	Histories   []TaskExecutionHistory `gorm:"foreignKey:JobID" json:"histories,omitempty"`
}

func (Job) TableName() string {
	return "jobs"
}

type GetJobParam struct {
	IDs             []uint                        `json:"ids"`
	Types           []string                      `json:"types"`
	IsActive        *bool                         `json:"is_active"`
	Limit           *int                          `json:"limit"`
	WithTaskHistory *GetTaskExecutionHistoryParam `json:"with_task_history"`
}

type GetTaskExecutionHistoryParam struct {
	Limit *int `json:"limit"`
}
