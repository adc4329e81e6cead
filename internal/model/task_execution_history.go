package model

import (
	"database/sql"
	"time"
)

type TaskExecutionStatus string

const (
	StatusRunning   TaskExecutionStatus = "running"
	StatusCompleted TaskExecutionStatus = "completed"
	StatusFailed    TaskExecutionStatus = "failed"
	StatusTimeout   TaskExecutionStatus = "timeout"
)

type TaskExecutionHistory struct {
	ID           uint                `gorm:"primaryKey" json:"id"`
	JobID        uint                `gorm:"not null" json:"job_id"`
	ScheduleID   *uint               `json:"schedule_id"`
	StartedAt    time.Time           `gorm:"not null" json:"started_at"`
	CompletedAt  sql.NullTime        `json:"-"`
	Status       TaskExecutionStatus `gorm:"type:varchar(50);not null" json:"status"`
	ExitCode     sql.NullInt32       `json:"-"`
	Output       sql.NullString      `gorm:"type:text" json:"-"`
	ErrorMessage sql.NullString      `gorm:"type:text" json:"-"`
	CreatedAt    time.Time           `gorm:"autoCreateTime" json:"created_at"`
}

func (TaskExecutionHistory) TableName() string {
	return "task_execution_history"
}
