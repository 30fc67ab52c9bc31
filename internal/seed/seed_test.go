package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"warbler/internal/db"
	"warbler/internal/logging"
	"warbler/internal/models"
	"warbler/internal/store"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.OpenSQLite(filepath.Join(t.TempDir(), "seed_test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

func TestRun(t *testing.T) {
	gdb := openDB(t)
	ctx := context.Background()

	sum, err := Run(ctx, gdb, "testdata", logging.Discard())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := Summary{Users: 13, Messages: 8, Follows: 5 + 2*randomEdges}
	if sum != want {
		t.Errorf("Run() = %+v, want %+v", sum, want)
	}

	st := store.New(gdb)
	test, err := st.GetUserByUsername(ctx, TestUsername)
	if err != nil {
		t.Fatalf("test account missing: %v", err)
	}
	if test.Email != TestEmail || test.Password != TestPasswordHash {
		t.Errorf("test account = %v", test)
	}
	stats, err := st.CountUserStats(ctx, test.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Followers != randomEdges || stats.Following != randomEdges {
		t.Errorf("test account stats = %+v, want %d followers and following", stats, randomEdges)
	}
	if ok, _ := st.IsFollowing(ctx, test.ID, test.ID); ok {
		t.Error("test account follows itself")
	}

	maria, err := st.GetUserByUsername(ctx, "maria")
	if err != nil {
		t.Fatal(err)
	}
	if maria.Bio == nil || *maria.Bio != "Coffee first." {
		t.Errorf("maria bio = %v", maria.Bio)
	}
	jj, _ := st.GetUserByUsername(ctx, "jjones")
	if jj.ImageURL != models.DefaultImageURL || jj.Bio != nil {
		t.Errorf("blank columns not defaulted: %q %v", jj.ImageURL, jj.Bio)
	}

	// CSV follows are "followed, follower": user 1 follows users 2 and 3.
	if ok, _ := st.IsFollowing(ctx, 1, 2); !ok {
		t.Error("user 1 should follow user 2")
	}
	if ok, _ := st.IsFollowing(ctx, 2, 1); !ok {
		t.Error("user 2 should follow user 1")
	}

	var quoted models.Message
	if err := gdb.Where("user_id = ?", 3).Order("timestamp").First(&quoted).Error; err != nil {
		t.Fatal(err)
	}
	if quoted.Text != `"Quoted" warble, with a comma` {
		t.Errorf("message text = %q", quoted.Text)
	}
	if quoted.Timestamp.Year() != 2017 || quoted.Timestamp.Month() != 3 {
		t.Errorf("message timestamp = %v", quoted.Timestamp)
	}
}

func TestRun_Twice(t *testing.T) {
	gdb := openDB(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := Run(ctx, gdb, "testdata", logging.Discard()); err != nil {
			t.Fatalf("Run() #%d error = %v", i+1, err)
		}
	}
	var n int64
	gdb.Model(&models.User{}).Count(&n)
	if n != 13 {
		t.Errorf("%d users after reseeding, want 13", n)
	}
}

func writeFixtures(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestRun_FollowerColumns(t *testing.T) {
	dir := writeFixtures(t, map[string]string{
		"users.csv":    "id,username,email,password\n1,a,a@x.io,h\n2,b,b@x.io,h\n",
		"messages.csv": "text,user_id,timestamp\nhi,2,2020-05-01T12:00:00Z\n",
		"follows.csv":  "follower_id,followed_id\n1,2\n",
	})
	gdb := openDB(t)
	ctx := context.Background()

	sum, err := Run(ctx, gdb, dir, logging.Discard())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Users != 3 || sum.Messages != 1 {
		t.Errorf("Run() = %+v", sum)
	}
	st := store.New(gdb)
	if ok, _ := st.IsFollowing(ctx, 1, 2); !ok {
		t.Error("user 1 should follow user 2")
	}
	// The test account gets the next free id.
	test, err := st.GetUserByUsername(ctx, TestUsername)
	if err != nil {
		t.Fatal(err)
	}
	if test.ID != 3 {
		t.Errorf("test account id = %d, want 3", test.ID)
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
	}{
		{"missing files", map[string]string{}},
		{"bad user id", map[string]string{
			"users.csv":    "id,username,email,password\nx,a,a@x.io,h\n",
			"messages.csv": "text,user_id\n",
			"follows.csv":  "follower_id,followed_id\n",
		}},
		{"bad timestamp", map[string]string{
			"users.csv":    "username,email,password\na,a@x.io,h\n",
			"messages.csv": "text,user_id,timestamp\nhi,1,yesterday\n",
			"follows.csv":  "follower_id,followed_id\n",
		}},
		{"incomplete follow", map[string]string{
			"users.csv":    "username,email,password\na,a@x.io,h\n",
			"messages.csv": "text,user_id\n",
			"follows.csv":  "follower_id,followed_id\n1,\n",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeFixtures(t, tt.files)
			if _, err := Run(context.Background(), openDB(t), dir, logging.Discard()); err == nil {
				t.Error("Run() succeeded, want error")
			}
		})
	}
}
