package store

import (
	"context"

	"gorm.io/gorm/clause"

	"warbler/internal/models"
)

// AddFollowEdge records that followerID follows followedID. It reports
// whether a new edge was created; following twice is a no-op.
func (s *Store) AddFollowEdge(ctx context.Context, followerID, followedID uint) (bool, error) {
	if followerID == followedID {
		return false, ErrCannotFollowSelf
	}
	res := s.conn(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Follow{FollowerID: followerID, FollowedID: followedID})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// RemoveFollowEdge deletes the edge if present and reports whether it did.
func (s *Store) RemoveFollowEdge(ctx context.Context, followerID, followedID uint) (bool, error) {
	res := s.conn(ctx).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		Delete(&models.Follow{})
	return res.RowsAffected > 0, res.Error
}

// IsFollowing reports whether a follows b.
func (s *Store) IsFollowing(ctx context.Context, a, b uint) (bool, error) {
	return s.exists(ctx, &models.Follow{}, "follower_id = ? AND followed_id = ?", a, b)
}

// IsFollowedBy reports whether a is followed by b.
func (s *Store) IsFollowedBy(ctx context.Context, a, b uint) (bool, error) {
	return s.IsFollowing(ctx, b, a)
}

// Following lists the users that userID follows.
func (s *Store) Following(ctx context.Context, userID uint) ([]models.User, error) {
	var users []models.User
	err := s.conn(ctx).
		Joins("JOIN follows ON follows.followed_id = users.id").
		Where("follows.follower_id = ?", userID).
		Order("users.username").
		Find(&users).Error
	return users, err
}

// Followers lists the users following userID.
func (s *Store) Followers(ctx context.Context, userID uint) ([]models.User, error) {
	var users []models.User
	err := s.conn(ctx).
		Joins("JOIN follows ON follows.follower_id = users.id").
		Where("follows.followed_id = ?", userID).
		Order("users.username").
		Find(&users).Error
	return users, err
}

// FollowingIDs returns the set of user ids that userID follows.
func (s *Store) FollowingIDs(ctx context.Context, userID uint) (map[uint]bool, error) {
	var ids []uint
	err := s.conn(ctx).Model(&models.Follow{}).
		Where("follower_id = ?", userID).
		Pluck("followed_id", &ids).Error
	return toSet(ids), err
}

// AddLikeEdge records that userID likes messageID.
func (s *Store) AddLikeEdge(ctx context.Context, userID, messageID uint) (bool, error) {
	res := s.conn(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Like{UserID: userID, MessageID: messageID})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) RemoveLikeEdge(ctx context.Context, userID, messageID uint) (bool, error) {
	res := s.conn(ctx).
		Where("user_id = ? AND message_id = ?", userID, messageID).
		Delete(&models.Like{})
	return res.RowsAffected > 0, res.Error
}

// IsLikedBy reports whether userID has liked messageID.
func (s *Store) IsLikedBy(ctx context.Context, messageID, userID uint) (bool, error) {
	return s.exists(ctx, &models.Like{}, "user_id = ? AND message_id = ?", userID, messageID)
}

// LikedMessages lists the messages userID has liked, newest first.
func (s *Store) LikedMessages(ctx context.Context, userID uint) ([]models.Message, error) {
	var msgs []models.Message
	err := s.conn(ctx).
		Preload("User").
		Joins("JOIN likes ON likes.message_id = messages.id").
		Where("likes.user_id = ?", userID).
		Order("messages.timestamp DESC, messages.id DESC").
		Find(&msgs).Error
	return msgs, err
}

func (s *Store) LikedMessageIDs(ctx context.Context, userID uint) (map[uint]bool, error) {
	var ids []uint
	err := s.conn(ctx).Model(&models.Like{}).
		Where("user_id = ?", userID).
		Pluck("message_id", &ids).Error
	return toSet(ids), err
}

func (s *Store) exists(ctx context.Context, model any, query string, args ...any) (bool, error) {
	var n int64
	err := s.conn(ctx).Model(model).Where(query, args...).Limit(1).Count(&n).Error
	return n > 0, err
}

func toSet(ids []uint) map[uint]bool {
	set := make(map[uint]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
