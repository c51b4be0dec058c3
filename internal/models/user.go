package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// User is a WhatsApp contact of the bot.
type User struct {
	gorm.Model

	PhoneNumber       string     `json:"phone_number" gorm:"uniqueIndex;not null"`
	Name              string     `json:"name"`
	PreferredLanguage string     `json:"preferred_language" gorm:"default:en"`
	BirthDate         *time.Time `json:"birth_date"`
	BirthTime         string     `json:"birth_time"` // HH:MM, empty when unknown
	BirthPlace        string     `json:"birth_place"`
	ProfileComplete   bool       `json:"profile_complete" gorm:"default:false"`
	LastInteraction   time.Time  `json:"last_interaction"`
}

// BeforeCreate normalizes the phone key and fills defaults.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	u.PhoneNumber = strings.TrimPrefix(strings.TrimSpace(u.PhoneNumber), "whatsapp:")
	if u.PreferredLanguage == "" {
		u.PreferredLanguage = "en"
	}
	if u.LastInteraction.IsZero() {
		u.LastInteraction = time.Now()
	}
	return nil
}

// DisplayName falls back to a neutral greeting when no name was collected.
func (u *User) DisplayName() string {
	if u == nil || strings.TrimSpace(u.Name) == "" {
		return "there"
	}
	return u.Name
}

// UserUpdate is a partial update. Nil fields are left untouched.
type UserUpdate struct {
	Name              *string
	PreferredLanguage *string
	BirthDate         *time.Time
	BirthTime         *string
	BirthPlace        *string
	ProfileComplete   *bool
	LastInteraction   *time.Time
}

// Apply copies the set fields onto u.
func (p UserUpdate) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.PreferredLanguage != nil {
		u.PreferredLanguage = *p.PreferredLanguage
	}
	if p.BirthDate != nil {
		d := *p.BirthDate
		u.BirthDate = &d
	}
	if p.BirthTime != nil {
		u.BirthTime = *p.BirthTime
	}
	if p.BirthPlace != nil {
		u.BirthPlace = *p.BirthPlace
	}
	if p.ProfileComplete != nil {
		u.ProfileComplete = *p.ProfileComplete
	}
	if p.LastInteraction != nil {
		u.LastInteraction = *p.LastInteraction
	}
}

// Columns returns the update as a gorm column map.
func (p UserUpdate) Columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if p.Name != nil {
		cols["name"] = *p.Name
	}
	if p.PreferredLanguage != nil {
		cols["preferred_language"] = *p.PreferredLanguage
	}
	if p.BirthDate != nil {
		cols["birth_date"] = *p.BirthDate
	}
	if p.BirthTime != nil {
		cols["birth_time"] = *p.BirthTime
	}
	if p.BirthPlace != nil {
		cols["birth_place"] = *p.BirthPlace
	}
	if p.ProfileComplete != nil {
		cols["profile_complete"] = *p.ProfileComplete
	}
	if p.LastInteraction != nil {
		cols["last_interaction"] = *p.LastInteraction
	}
	return cols
}
