package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"warbler/internal/auth"
	"warbler/internal/models"
)

type SignupParams struct {
	Username string
	Email    string
	Password string
	ImageURL string // optional
}

// Signup hashes the password and inserts a new user. Collisions on
// username or email are reported as ErrUniquenessViolation; callers that
// need all-or-nothing semantics run it inside Transaction.
func (s *Store) Signup(ctx context.Context, p SignupParams) (*models.User, error) {
	if p.Username == "" || p.Email == "" || p.Password == "" {
		return nil, ErrMissingRequiredField
	}

	hash, err := auth.HashPassword(p.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username: p.Username,
		Email:    p.Email,
		Password: hash,
		ImageURL: p.ImageURL,
	}
	if err := s.conn(ctx).Create(user).Error; err != nil {
		return nil, translate(err)
	}
	return user, nil
}

// Authenticate returns the user whose password matches. An unknown
// username and a wrong password both yield ErrInvalidCredentials.
func (s *Store) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.GetUserByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPasswordHash(password, user.Password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *Store) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.conn(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.conn(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// ListUsers returns all users, or those whose username contains q.
func (s *Store) ListUsers(ctx context.Context, q string) ([]models.User, error) {
	var users []models.User
	query := s.conn(ctx).Order("username")
	if q != "" {
		query = query.Where("username LIKE ? ESCAPE '\\'", "%"+escapeLike(q)+"%")
	}
	if err := query.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// escapeLike quotes the LIKE wildcards and the escape character itself.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// UpdateUser saves the editable profile columns.
func (s *Store) UpdateUser(ctx context.Context, user *models.User) error {
	err := s.conn(ctx).Model(user).Select(
		"Username", "Email", "ImageURL", "HeaderImageURL", "Bio", "Location",
	).Updates(user).Error
	return translate(err)
}

// DeleteUser removes the user together with their messages and every edge
// touching them or their messages.
func (s *Store) DeleteUser(ctx context.Context, id uint) error {
	return s.Transaction(ctx, func(tx *Store) error {
		db := tx.conn(ctx)
		owned := db.Model(&models.Message{}).Select("id").Where("user_id = ?", id)
		if err := db.Where("user_id = ? OR message_id IN (?)", id, owned).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := db.Where("follower_id = ? OR followed_id = ?", id, id).Delete(&models.Follow{}).Error; err != nil {
			return err
		}
		if err := db.Where("user_id = ?", id).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		res := db.Delete(&models.User{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

type UserStats struct {
	Messages  int64
	Following int64
	Followers int64
	Likes     int64
}

func (s *Store) CountUserStats(ctx context.Context, id uint) (UserStats, error) {
	var st UserStats
	db := s.conn(ctx)
	if err := db.Model(&models.Message{}).Where("user_id = ?", id).Count(&st.Messages).Error; err != nil {
		return st, err
	}
	if err := db.Model(&models.Follow{}).Where("follower_id = ?", id).Count(&st.Following).Error; err != nil {
		return st, err
	}
	if err := db.Model(&models.Follow{}).Where("followed_id = ?", id).Count(&st.Followers).Error; err != nil {
		return st, err
	}
	if err := db.Model(&models.Like{}).Where("user_id = ?", id).Count(&st.Likes).Error; err != nil {
		return st, err
	}
	return st, nil
}
