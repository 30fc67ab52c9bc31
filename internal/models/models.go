package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

const (
	DefaultImageURL  = "/static/images/default-pic.png"
	DefaultHeaderURL = "/static/images/warbler-hero.jpg"

	MaxMessageLength = 140
)

type User struct {
	ID             uint    `gorm:"primaryKey"`
	Username       string  `gorm:"uniqueIndex;not null"`
	Email          string  `gorm:"uniqueIndex;not null"`
	Password       string  `gorm:"not null" json:"-"`
	ImageURL       string  `gorm:"not null"`
	HeaderImageURL string  `gorm:"not null"`
	Bio            *string // optional
	Location       *string
}

// BeforeCreate fills the image columns with their defaults when unset.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ImageURL == "" {
		u.ImageURL = DefaultImageURL
	}
	if u.HeaderImageURL == "" {
		u.HeaderImageURL = DefaultHeaderURL
	}
	return nil
}

func (u User) String() string {
	return fmt.Sprintf("<User #%d: %s, %s>", u.ID, u.Username, u.Email)
}

type Message struct {
	ID        uint      `gorm:"primaryKey"`
	Text      string    `gorm:"size:140;not null"`
	Timestamp time.Time `gorm:"not null;index"`
	UserID    uint      `gorm:"not null;index"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// BeforeCreate stamps the message with the current UTC time unless the
// caller (e.g. the fixture loader) already supplied one.
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	return nil
}

// Follow is a directed edge: Follower follows Followed.
type Follow struct {
	FollowerID uint `gorm:"primaryKey;autoIncrement:false"`
	FollowedID uint `gorm:"primaryKey;autoIncrement:false"`
	Follower   User `gorm:"foreignKey:FollowerID;constraint:OnDelete:CASCADE"`
	Followed   User `gorm:"foreignKey:FollowedID;constraint:OnDelete:CASCADE"`
}

type Like struct {
	UserID    uint    `gorm:"primaryKey;autoIncrement:false"`
	MessageID uint    `gorm:"primaryKey;autoIncrement:false"`
	User      User    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Message   Message `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE"`
}

// All lists the models in migration order.
func All() []any {
	return []any{&User{}, &Message{}, &Follow{}, &Like{}}
}
