package auth

import (
	"encoding/gob"
	"net/http"

	"github.com/gorilla/sessions"
)

const (
	// CurrUserKey is the session key holding the logged-in user's id.
	CurrUserKey = "curr_user"

	sessionName = "warbler"
)

// Notice is a user-visible message shown once, on the next rendered page.
type Notice struct {
	Category string // bootstrap alert class: success, danger, ...
	Text     string
}

func Info(text string) Notice    { return Notice{Category: "info", Text: text} }
func Success(text string) Notice { return Notice{Category: "success", Text: text} }
func Danger(text string) Notice  { return Notice{Category: "danger", Text: text} }

func init() {
	gob.Register(Notice{})
}

// Sessions binds the current user and pending notices to the client's
// session.
type Sessions struct {
	store sessions.Store
}

// NewSessions uses a signed cookie store, or a filesystem store when dir is
// not empty.
func NewSessions(secret []byte, dir string, secure bool) *Sessions {
	opts := &sessions.Options{
		Path:     "/",
		MaxAge:   3600 * 16, // 16 hours
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}

	var store sessions.Store
	if dir != "" {
		fs := sessions.NewFilesystemStore(dir, secret)
		fs.Options = opts
		store = fs
	} else {
		cs := sessions.NewCookieStore(secret)
		cs.Options = opts
		store = cs
	}
	return &Sessions{store: store}
}

// Get returns the request's session, creating an empty one when the cookie
// is missing or cannot be decoded.
func (s *Sessions) Get(r *http.Request) *sessions.Session {
	sess, err := s.store.Get(r, sessionName)
	if err != nil {
		// A stale or tampered cookie yields a fresh session.
		sess, _ = s.store.New(r, sessionName)
	}
	return sess
}

func (s *Sessions) Save(r *http.Request, w http.ResponseWriter, sess *sessions.Session) error {
	return s.store.Save(r, w, sess)
}

func Login(sess *sessions.Session, userID uint) {
	sess.Values[CurrUserKey] = userID
}

func Logout(sess *sessions.Session) {
	delete(sess.Values, CurrUserKey)
}

// CurrentUserID returns the logged-in user's id, if any.
func CurrentUserID(sess *sessions.Session) (uint, bool) {
	id, ok := sess.Values[CurrUserKey].(uint)
	return id, ok
}

func AddNotices(sess *sessions.Session, notices ...Notice) {
	for _, n := range notices {
		sess.AddFlash(n)
	}
}

// PopNotices drains the pending notices.
func PopNotices(sess *sessions.Session) []Notice {
	var out []Notice
	for _, f := range sess.Flashes() {
		if n, ok := f.(Notice); ok {
			out = append(out, n)
		}
	}
	return out
}
