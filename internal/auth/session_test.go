package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

var secret = []byte("0123456789abcdef0123456789abcdef")

// roundTrip saves sess into a response and loads it back from a new request
// carrying the resulting cookie.
func roundTrip(t *testing.T, s *Sessions, mutate func(r *http.Request, w http.ResponseWriter)) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	mutate(r, w)

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range w.Result().Cookies() {
		next.AddCookie(c)
	}
	return next
}

func TestSessions_LoginLogout(t *testing.T) {
	tests := []struct {
		name string
		dir  string
	}{
		{"cookie store", ""},
		{"filesystem store", t.TempDir()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSessions(secret, tt.dir, false)

			next := roundTrip(t, s, func(r *http.Request, w http.ResponseWriter) {
				sess := s.Get(r)
				if _, ok := CurrentUserID(sess); ok {
					t.Error("fresh session has a current user")
				}
				Login(sess, 42)
				if err := s.Save(r, w, sess); err != nil {
					t.Fatalf("Save() error = %v", err)
				}
			})

			sess := s.Get(next)
			id, ok := CurrentUserID(sess)
			if !ok || id != 42 {
				t.Fatalf("CurrentUserID() = %d, %v; want 42, true", id, ok)
			}

			Logout(sess)
			if _, ok := CurrentUserID(sess); ok {
				t.Error("CurrentUserID() still set after Logout")
			}
		})
	}
}

func TestSessions_Notices(t *testing.T) {
	s := NewSessions(secret, "", false)

	next := roundTrip(t, s, func(r *http.Request, w http.ResponseWriter) {
		sess := s.Get(r)
		AddNotices(sess, Success("Hello, demo!"), Danger("Invalid credentials."))
		if err := s.Save(r, w, sess); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	})

	sess := s.Get(next)
	got := PopNotices(sess)
	want := []Notice{Success("Hello, demo!"), Danger("Invalid credentials.")}
	if len(got) != len(want) {
		t.Fatalf("PopNotices() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("notice %d = %v, want %v", i, got[i], want[i])
		}
	}
	if again := PopNotices(sess); len(again) != 0 {
		t.Errorf("PopNotices() second call = %v, want none", again)
	}
}

func TestSessions_TamperedCookie(t *testing.T) {
	s := NewSessions(secret, "", false)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: sessionName, Value: "tampered"})

	sess := s.Get(r)
	if sess == nil {
		t.Fatal("Get() returned nil session")
	}
	if _, ok := CurrentUserID(sess); ok {
		t.Error("tampered cookie produced a current user")
	}
}
