package model

import (
	"time"

	"gorm.io/datatypes"
)

// FlowStep is the onboarding position of a visitor session.
type FlowStep = string

const (
	FlowInitial   FlowStep = "initial"
	FlowAskPhone  FlowStep = "ask_phone"
	FlowAskName   FlowStep = "ask_name"
	FlowCompleted FlowStep = "completed"
)

// FlowTempData holds contact details collected before the flow completes.
type FlowTempData struct {
	Phone string `json:"phone,omitempty"`
	Name  string `json:"name,omitempty"`
}

// FlowState is the per-session onboarding state. A missing state reads as FlowInitial with
// Persisted unset.
type FlowState struct {
	SessionID string       `json:"session_id"`
	Step      FlowStep     `json:"step"`
	TempData  FlowTempData `json:"temp_data"`
	Persisted bool         `json:"-"`
}

// FlowStateRow persists FlowState when flow.store=database.
type FlowStateRow struct {
	SessionID string                           `gorm:"primaryKey;size:64" json:"session_id"`
	Step      FlowStep                         `gorm:"size:16;not null" json:"step"`
	TempData  datatypes.JSONType[FlowTempData] `json:"temp_data"`
	ExpiresAt time.Time                        `gorm:"not null;index" json:"expires_at"`
	UpdatedAt time.Time                        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (FlowStateRow) TableName() string { return "chat_flow_states" }
