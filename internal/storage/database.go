package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/models"
)

// DatabaseStore persists users, sessions and processed events with gorm.
// The *gorm.DB should be opened with TranslateError enabled so unique-key
// conflicts surface as gorm.ErrDuplicatedKey.
type DatabaseStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDatabaseStore wraps an open gorm connection.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db, now: time.Now}
}

// WithClock replaces the time source.
func (d *DatabaseStore) WithClock(now func() time.Time) *DatabaseStore {
	d.now = now
	return d
}

// Models lists the tables this store needs migrated.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Session{},
		&models.ProcessedEvent{},
	}
}

func (d *DatabaseStore) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}

// User operations

func (d *DatabaseStore) GetUser(ctx context.Context, phone string) (*models.User, error) {
	var u models.User
	if err := d.db.WithContext(ctx).Where("phone_number = ?", phone).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (d *DatabaseStore) CreateUser(ctx context.Context, phone string) (*models.User, error) {
	u := &models.User{PhoneNumber: phone, LastInteraction: d.now()}
	if err := d.db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", translate(err))
	}
	return u, nil
}

func (d *DatabaseStore) UpdateUser(ctx context.Context, phone string, update models.UserUpdate) (*models.User, error) {
	cols := update.Columns()
	if len(cols) > 0 {
		res := d.db.WithContext(ctx).Model(&models.User{}).Where("phone_number = ?", phone).Updates(cols)
		if res.Error != nil {
			return nil, fmt.Errorf("update user: %w", translate(res.Error))
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return d.GetUser(ctx, phone)
}

func (d *DatabaseStore) DeleteUser(ctx context.Context, phone string) error {
	res := d.db.WithContext(ctx).Unscoped().Where("phone_number = ?", phone).Delete(&models.User{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Session operations

func (d *DatabaseStore) GetSession(ctx context.Context, phone string) (*models.Session, error) {
	var s models.Session
	if err := d.db.WithContext(ctx).Where("phone_number = ?", phone).First(&s).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (d *DatabaseStore) SetSession(ctx context.Context, phone string, update models.SessionUpdate) error {
	now := d.now()
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var s models.Session
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("phone_number = ?", phone).
			First(&s).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			s = models.Session{PhoneNumber: phone}
			update.Apply(&s)
			s.LastActivity = now
			// A concurrent first write for the same phone resolves last-write-wins.
			return tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "phone_number"}},
				DoUpdates: clause.AssignmentColumns([]string{"current_flow", "current_step", "flow_data", "last_activity", "updated_at"}),
			}).Create(&s).Error
		}
		if err != nil {
			return err
		}

		update.Apply(&s)
		s.LastActivity = now
		return tx.Save(&s).Error
	})
}

func (d *DatabaseStore) DeleteSession(ctx context.Context, phone string) error {
	return d.db.WithContext(ctx).Unscoped().Where("phone_number = ?", phone).Delete(&models.Session{}).Error
}

func (d *DatabaseStore) ExpiredSessions(ctx context.Context, cutoff time.Time) ([]*models.Session, error) {
	var sessions []*models.Session
	err := d.db.WithContext(ctx).Where("last_activity < ?", cutoff).Find(&sessions).Error
	return sessions, err
}

func (d *DatabaseStore) DeleteExpiredSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	res := d.db.WithContext(ctx).Unscoped().Where("last_activity < ?", cutoff).Delete(&models.Session{})
	return res.RowsAffected, res.Error
}

// Event operations

func (d *DatabaseStore) MarkEvent(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	now := d.now()
	db := d.db.WithContext(ctx)

	if err := db.Where("event_id = ? AND expires_at <= ?", id, now).Delete(&models.ProcessedEvent{}).Error; err != nil {
		return false, err
	}

	res := db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ProcessedEvent{EventID: id, ExpiresAt: now.Add(ttl)})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (d *DatabaseStore) DeleteExpiredEvents(ctx context.Context, now time.Time) (int64, error) {
	res := d.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.ProcessedEvent{})
	return res.RowsAffected, res.Error
}
