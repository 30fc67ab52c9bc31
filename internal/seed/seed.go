// Package seed rebuilds the database from CSV fixtures.
package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"warbler/internal/db"
	"warbler/internal/models"
	"warbler/internal/store"
)

const (
	batchSize = 500

	TestUsername = "test"
	TestEmail    = "test@fd.ew"
	// TestPasswordHash is the stored bcrypt hash of the test account.
	TestPasswordHash = "$2b$12$z6FbBI3B5hIlMG7Y2/k.5erXCUXWg4FEhis/D7LmaDINlPSgItudq"

	randomEdges = 10
)

// Summary counts the rows Run inserted.
type Summary struct {
	Users    int
	Messages int
	Follows  int
}

// Run drops and recreates every table, loads users.csv, messages.csv and
// follows.csv from dir, then adds the test account with random followers
// and followees.
func Run(ctx context.Context, gdb *gorm.DB, dir string, log *logrus.Logger) (Summary, error) {
	var sum Summary

	users, err := readUsers(filepath.Join(dir, "users.csv"))
	if err != nil {
		return sum, err
	}
	messages, err := readMessages(filepath.Join(dir, "messages.csv"))
	if err != nil {
		return sum, err
	}
	follows, err := readFollows(filepath.Join(dir, "follows.csv"))
	if err != nil {
		return sum, err
	}

	if err := db.Reset(gdb.WithContext(ctx)); err != nil {
		return sum, fmt.Errorf("reset schema: %w", err)
	}
	log.Info("Schema recreated")

	st := store.New(gdb)
	err = st.Transaction(ctx, func(tx *store.Store) error {
		conn := tx.DB()
		if len(users) > 0 {
			if err := conn.CreateInBatches(&users, batchSize).Error; err != nil {
				return fmt.Errorf("insert users: %w", err)
			}
		}
		if len(messages) > 0 {
			if err := conn.CreateInBatches(&messages, batchSize).Error; err != nil {
				return fmt.Errorf("insert messages: %w", err)
			}
		}
		if len(follows) > 0 {
			if err := conn.CreateInBatches(&follows, batchSize).Error; err != nil {
				return fmt.Errorf("insert follows: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return sum, err
	}
	sum.Users, sum.Messages, sum.Follows = len(users), len(messages), len(follows)

	if err := resetSequences(gdb.WithContext(ctx)); err != nil {
		return sum, err
	}
	log.WithFields(logrus.Fields{
		"users":    sum.Users,
		"messages": sum.Messages,
		"follows":  sum.Follows,
	}).Info("Fixtures loaded")

	edges, err := addTestAccount(ctx, st)
	if err != nil {
		return sum, err
	}
	sum.Users++
	sum.Follows += edges
	log.WithField("edges", edges).Info("Test account created")
	return sum, nil
}

func addTestAccount(ctx context.Context, st *store.Store) (int, error) {
	edges := 0
	err := st.Transaction(ctx, func(tx *store.Store) error {
		test := &models.User{Username: TestUsername, Email: TestEmail, Password: TestPasswordHash}
		if err := tx.DB().Create(test).Error; err != nil {
			return fmt.Errorf("create test user: %w", err)
		}

		followers, err := randomUsers(tx.DB(), test.ID)
		if err != nil {
			return err
		}
		following, err := randomUsers(tx.DB(), test.ID)
		if err != nil {
			return err
		}

		for _, u := range followers {
			created, err := tx.AddFollowEdge(ctx, u.ID, test.ID)
			if err != nil {
				return err
			}
			if created {
				edges++
			}
		}
		for _, u := range following {
			created, err := tx.AddFollowEdge(ctx, test.ID, u.ID)
			if err != nil {
				return err
			}
			if created {
				edges++
			}
		}
		return nil
	})
	return edges, err
}

func randomUsers(conn *gorm.DB, exclude uint) ([]models.User, error) {
	var users []models.User
	err := conn.Where("id <> ?", exclude).Order("RANDOM()").Limit(randomEdges).Find(&users).Error
	return users, err
}

// resetSequences moves the postgres id sequences past rows inserted with
// explicit ids. sqlite needs nothing.
func resetSequences(conn *gorm.DB) error {
	if conn.Dialector.Name() != "postgres" {
		return nil
	}
	for _, table := range []string{"users", "messages"} {
		q := fmt.Sprintf(
			"SELECT setval(pg_get_serial_sequence('%[1]s', 'id'), COALESCE(MAX(id), 0) + 1, false) FROM %[1]s",
			table)
		if err := conn.Exec(q).Error; err != nil {
			return fmt.Errorf("reset %s sequence: %w", table, err)
		}
	}
	return nil
}

// readRecords parses a CSV file with a header row into one map per row.
func readRecords(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var rows []map[string]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			row[col] = rec[i]
		}
		rows = append(rows, row)
	}
}

func parseID(row map[string]string, keys ...string) (uint, error) {
	for _, k := range keys {
		if v := strings.TrimSpace(row[k]); v != "" {
			id, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("column %s: %w", k, err)
			}
			return uint(id), nil
		}
	}
	return 0, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func readUsers(path string) ([]models.User, error) {
	rows, err := readRecords(path)
	if err != nil {
		return nil, err
	}
	users := make([]models.User, 0, len(rows))
	for i, row := range rows {
		id, err := parseID(row, "id")
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+2, err)
		}
		users = append(users, models.User{
			ID:             id,
			Username:       row["username"],
			Email:          row["email"],
			Password:       row["password"],
			ImageURL:       row["image_url"],
			HeaderImageURL: row["header_image_url"],
			Bio:            optional(row["bio"]),
			Location:       optional(row["location"]),
		})
	}
	return users, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999",
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func readMessages(path string) ([]models.Message, error) {
	rows, err := readRecords(path)
	if err != nil {
		return nil, err
	}
	msgs := make([]models.Message, 0, len(rows))
	for i, row := range rows {
		id, err := parseID(row, "id")
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+2, err)
		}
		userID, err := parseID(row, "user_id")
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+2, err)
		}
		ts, err := parseTimestamp(strings.TrimSpace(row["timestamp"]))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+2, err)
		}
		msgs = append(msgs, models.Message{ID: id, Text: row["text"], Timestamp: ts, UserID: userID})
	}
	return msgs, nil
}

func readFollows(path string) ([]models.Follow, error) {
	rows, err := readRecords(path)
	if err != nil {
		return nil, err
	}
	follows := make([]models.Follow, 0, len(rows))
	for i, row := range rows {
		follower, err := parseID(row, "follower_id", "user_following_id")
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+2, err)
		}
		followed, err := parseID(row, "followed_id", "user_being_followed_id")
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+2, err)
		}
		if follower == 0 || followed == 0 {
			return nil, fmt.Errorf("%s row %d: missing follower or followed id", path, i+2)
		}
		follows = append(follows, models.Follow{FollowerID: follower, FollowedID: followed})
	}
	return follows, nil
}
