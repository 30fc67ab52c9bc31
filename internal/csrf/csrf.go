// Package csrf guards state-changing form posts with a per-session token.
//
// Each session owns a random raw token. Pages embed that token signed and
// timestamped with securecookie, next to a callback path telling the
// handler where to send the user afterwards.
package csrf

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

const (
	TokenField    = "csrf_token"
	CallbackField = "callback"

	sessionKey = "csrf_raw"
	tokenName  = "csrf"
)

var ErrInvalidToken = errors.New("invalid csrf token")

// Form holds the hidden field values of a guard form.
type Form struct {
	Token    string
	Callback string
}

type payload struct {
	Raw    []byte
	Issued int64
}

type Guard struct {
	codec     *securecookie.SecureCookie
	timeLimit time.Duration
	now       func() time.Time
}

// New returns a guard signing tokens with hashKey. Tokens older than
// timeLimit are rejected; a zero limit disables expiry.
func New(hashKey []byte, timeLimit time.Duration) *Guard {
	codec := securecookie.New(hashKey, nil)
	codec.MaxAge(0) // expiry is checked against payload.Issued
	return &Guard{codec: codec, timeLimit: timeLimit, now: time.Now}
}

// Form returns the field values for a page rendered at callback, creating
// the session's raw token on first use. The session must be saved
// afterwards.
func (g *Guard) Form(sess *sessions.Session, callback string) (Form, error) {
	raw, ok := sess.Values[sessionKey].([]byte)
	if !ok || len(raw) == 0 {
		raw = securecookie.GenerateRandomKey(32)
		if raw == nil {
			return Form{}, errors.New("csrf: generate token")
		}
		sess.Values[sessionKey] = raw
	}
	token, err := g.codec.Encode(tokenName, payload{Raw: raw, Issued: g.now().Unix()})
	if err != nil {
		return Form{}, err
	}
	return Form{Token: token, Callback: SanitizeCallback(callback)}, nil
}

// Validate checks the posted token against the session and returns the
// sanitised callback path.
func (g *Guard) Validate(r *http.Request, sess *sessions.Session) (string, error) {
	raw, ok := sess.Values[sessionKey].([]byte)
	if !ok || len(raw) == 0 {
		return "", ErrInvalidToken
	}
	token := r.PostFormValue(TokenField)
	if token == "" {
		return "", ErrInvalidToken
	}

	var p payload
	if err := g.codec.Decode(tokenName, token, &p); err != nil {
		return "", ErrInvalidToken
	}
	if g.timeLimit > 0 && g.now().Sub(time.Unix(p.Issued, 0)) > g.timeLimit {
		return "", ErrInvalidToken
	}
	if subtle.ConstantTimeCompare(p.Raw, raw) != 1 {
		return "", ErrInvalidToken
	}
	return SanitizeCallback(r.PostFormValue(CallbackField)), nil
}

// SanitizeCallback keeps same-site absolute paths and maps everything else
// to "/".
func SanitizeCallback(callback string) string {
	if !strings.HasPrefix(callback, "/") ||
		strings.HasPrefix(callback, "//") ||
		strings.HasPrefix(callback, `/\`) {
		return "/"
	}
	return callback
}
