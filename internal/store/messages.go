package store

import (
	"context"

	"warbler/internal/models"
)

func (s *Store) CreateMessage(ctx context.Context, userID uint, text string) (*models.Message, error) {
	if text == "" {
		return nil, ErrMissingRequiredField
	}
	msg := &models.Message{UserID: userID, Text: text}
	if err := s.conn(ctx).Create(msg).Error; err != nil {
		return nil, translate(err)
	}
	return msg, nil
}

// GetMessage loads a message with its author.
func (s *Store) GetMessage(ctx context.Context, id uint) (*models.Message, error) {
	var msg models.Message
	if err := s.conn(ctx).Preload("User").First(&msg, id).Error; err != nil {
		return nil, translate(err)
	}
	return &msg, nil
}

func (s *Store) DeleteMessage(ctx context.Context, id uint) error {
	return s.Transaction(ctx, func(tx *Store) error {
		db := tx.conn(ctx)
		if err := db.Where("message_id = ?", id).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		res := db.Delete(&models.Message{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// UserMessages returns the user's own messages, newest first.
func (s *Store) UserMessages(ctx context.Context, userID uint, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := s.conn(ctx).
		Preload("User").
		Where("user_id = ?", userID).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}

// Feed returns the home timeline of userID: their own messages plus those
// of everyone they follow, newest first, at most limit rows.
func (s *Store) Feed(ctx context.Context, userID uint, limit int) ([]models.Message, error) {
	db := s.conn(ctx)
	following := db.Model(&models.Follow{}).Select("followed_id").Where("follower_id = ?", userID)

	var msgs []models.Message
	err := db.
		Preload("User").
		Where("user_id = ? OR user_id IN (?)", userID, following).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}
