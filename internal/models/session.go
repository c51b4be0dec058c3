package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Session is the conversation state of one phone number. There is at most
// one active session per user.
type Session struct {
	gorm.Model

	PhoneNumber  string    `json:"phone_number" gorm:"uniqueIndex;not null"`
	CurrentFlow  string    `json:"current_flow"`
	CurrentStep  int       `json:"current_step" gorm:"default:0"`
	FlowData     FlowData  `json:"flow_data" gorm:"type:text;serializer:json"`
	LastActivity time.Time `json:"last_activity" gorm:"index"`
}

// InFlow reports whether a flow is active. FlowData must not be read otherwise.
func (s *Session) InFlow() bool {
	return s != nil && strings.TrimSpace(s.CurrentFlow) != ""
}

// Expired reports whether the session has been idle longer than ttl.
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(s.LastActivity) > ttl
}

// State returns the flow envelope of the session.
func (s *Session) State() FlowState {
	if !s.InFlow() {
		return FlowState{}
	}
	return FlowState{Name: s.CurrentFlow, Step: s.CurrentStep, Data: s.FlowData}
}

// SessionUpdate is merged shallowly into an existing session. Nil fields are
// left untouched; LastActivity is always refreshed by the store.
type SessionUpdate struct {
	CurrentFlow *string
	CurrentStep *int
	FlowData    *FlowData
}

// Apply copies the set fields onto s.
func (p SessionUpdate) Apply(s *Session) {
	if p.CurrentFlow != nil {
		s.CurrentFlow = *p.CurrentFlow
	}
	if p.CurrentStep != nil {
		s.CurrentStep = *p.CurrentStep
	}
	if p.FlowData != nil {
		s.FlowData = *p.FlowData
	}
}

// UpdateFromState builds the update that persists a flow envelope.
func UpdateFromState(state FlowState) SessionUpdate {
	name, step, data := state.Name, state.Step, state.Data
	return SessionUpdate{CurrentFlow: &name, CurrentStep: &step, FlowData: &data}
}

// ClearedFlow is the update applied when a flow ends. FlowData is always
// dropped so nothing leaks into the next unrelated flow.
func ClearedFlow() SessionUpdate {
	name, step, data := "", 0, FlowData{}
	return SessionUpdate{CurrentFlow: &name, CurrentStep: &step, FlowData: &data}
}
