package sqlite

import (
	"context"
	"errors"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ekkarat74/Message-Chat/internal/config"
	"github.com/ekkarat74/Message-Chat/internal/store"
)

// Store is a GORM-backed SQLite implementation of store.Store.
type Store struct {
	db *gorm.DB
}

type messageModel struct {
	ID      string `gorm:"primaryKey"`
	Room    string `gorm:"index"`
	Author  string
	Avatar  string
	Body    string
	Kind    string
	Time    string
	SavedAt time.Time
}

type userModel struct {
	ID        string `gorm:"primaryKey"`
	Username  string `gorm:"uniqueIndex"`
	Password  string
	Avatar    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type roomModel struct {
	ID        string `gorm:"primaryKey"`
	Name      string `gorm:"uniqueIndex"`
	Password  string
	CreatedAt time.Time
}

// NewStore opens a SQLite database at the provided path.
func NewStore(cfg config.DatabaseConfig) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate applies schema updates.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&messageModel{}, &userModel{}, &roomModel{})
}

// Save persists the message and returns the canonical record.
func (s *Store) Save(ctx context.Context, msg store.Message) (store.Message, error) {
	model := messageModel{
		ID:      uuid.NewString(),
		Room:    msg.Room,
		Author:  msg.Author,
		Avatar:  msg.Avatar,
		Body:    msg.Body,
		Kind:    msg.Kind,
		Time:    msg.Time,
		SavedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return store.Message{}, err
	}
	msg.ID = model.ID
	msg.SavedAt = model.SavedAt
	return msg, nil
}

// FindRoomAndDelete removes the message and reports the room it was in.
func (s *Store) FindRoomAndDelete(ctx context.Context, id string) (string, error) {
	var model messageModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", store.ErrNotFound
		}
		return "", err
	}
	if err := s.db.WithContext(ctx).Delete(&messageModel{}, "id = ?", id).Error; err != nil {
		return "", err
	}
	return model.Room, nil
}

// ListByRoom returns stored history for a room, oldest first.
func (s *Store) ListByRoom(ctx context.Context, room string) ([]store.Message, error) {
	var models []messageModel
	err := s.db.WithContext(ctx).Where("room = ?", room).Order("saved_at asc").Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]store.Message, len(models))
	for i, m := range models {
		out[i] = store.Message{
			ID:      m.ID,
			Room:    m.Room,
			Author:  m.Author,
			Avatar:  m.Avatar,
			Body:    m.Body,
			Kind:    m.Kind,
			Time:    m.Time,
			SavedAt: m.SavedAt,
		}
	}
	return out, nil
}

// CreateUser stores a new user record.
func (s *Store) CreateUser(ctx context.Context, user *store.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	model := userModel{
		ID:        user.ID,
		Username:  user.Username,
		Password:  user.Password,
		Avatar:    user.Avatar,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
	return s.db.WithContext(ctx).Create(&model).Error
}

// GetUserByUsername retrieves a user by username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	var model userModel
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &store.User{
		ID:        model.ID,
		Username:  model.Username,
		Password:  model.Password,
		Avatar:    model.Avatar,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}, nil
}

// UpdateAvatar replaces the stored avatar reference for a user.
func (s *Store) UpdateAvatar(ctx context.Context, username, avatar string) error {
	res := s.db.WithContext(ctx).Model(&userModel{}).
		Where("username = ?", username).
		Updates(map[string]interface{}{"avatar": avatar, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CreateRoom stores a new room record.
func (s *Store) CreateRoom(ctx context.Context, room *store.Room) error {
	if room == nil {
		return errors.New("nil room")
	}
	model := roomModel{
		ID:        room.ID,
		Name:      room.Name,
		Password:  room.Password,
		CreatedAt: room.CreatedAt,
	}
	return s.db.WithContext(ctx).Create(&model).Error
}

// GetRoomByName retrieves a room by its unique name.
func (s *Store) GetRoomByName(ctx context.Context, name string) (*store.Room, error) {
	var model roomModel
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &store.Room{
		ID:        model.ID,
		Name:      model.Name,
		Password:  model.Password,
		CreatedAt: model.CreatedAt,
	}, nil
}
