// Package server wires the HTTP routes of warbler onto the store, the
// session and CSRF layers and the views.
package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"warbler/internal/auth"
	"warbler/internal/config"
	"warbler/internal/csrf"
	"warbler/internal/logging"
	"warbler/internal/metrics"
	"warbler/internal/models"
	"warbler/internal/store"
	"warbler/internal/views"
)

// ErrUnauthorized is returned by handlers when the current user may not
// perform the request. It maps to 401.
var ErrUnauthorized = errors.New("unauthorized")

type Server struct {
	cfg      config.Config
	store    *store.Store
	sessions *auth.Sessions
	guard    *csrf.Guard
	views    *views.Renderer
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	throttle *throttle
	log      *logrus.Logger
}

func New(cfg config.Config, st *store.Store, log *logrus.Logger) (*Server, error) {
	renderer, err := views.New()
	if err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()
	secret := []byte(cfg.SecretKey)

	return &Server{
		cfg:      cfg,
		store:    st,
		sessions: auth.NewSessions(secret, cfg.SessionDir, cfg.Env == "production"),
		guard:    csrf.New(secret, cfg.CSRFTimeLimit),
		views:    renderer,
		metrics:  metrics.New(reg),
		registry: reg,
		throttle: newThrottle(cfg.LoginRatePerMin, 10*time.Minute),
		log:      log,
	}, nil
}

// Request is what a route handler sees: the HTTP request, the logged-in
// user (nil when anonymous) and the guard form of the page being served.
type Request struct {
	HTTP    *http.Request
	User    *models.User
	CSRF    csrf.Form
	session *sessions.Session
}

func (r *Request) Form(key string) string {
	return r.HTTP.PostFormValue(key)
}

// Response is either a page render or a redirect. Notices travel with
// either; on a redirect they are stored in the session for the next page.
type Response struct {
	Status   int
	View     string
	Title    string
	Data     any
	Redirect string
	Notices  []auth.Notice
	LoginID  uint
	Logout   bool
}

func render(view, title string, data any, notices ...auth.Notice) *Response {
	return &Response{Status: http.StatusOK, View: view, Title: title, Data: data, Notices: notices}
}

func redirect(to string, notices ...auth.Notice) *Response {
	return &Response{Status: http.StatusFound, Redirect: to, Notices: notices}
}

func unauthorizedRedirect() *Response {
	return redirect("/", auth.Danger("Access unauthorized."))
}

type handlerFunc func(ctx context.Context, req *Request) (*Response, error)

// handle adapts a handlerFunc to net/http: it resolves the session user,
// prepares the guard form, and applies the returned Response.
func (s *Server) handle(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess := s.sessions.Get(r)
		req := &Request{HTTP: r, session: sess}

		user, err := s.currentUser(ctx, sess)
		if err != nil {
			s.fail(w, req, err)
			return
		}
		req.User = user

		if req.CSRF, err = s.guard.Form(sess, r.URL.RequestURI()); err != nil {
			s.fail(w, req, err)
			return
		}

		resp, err := h(ctx, req)
		if err != nil {
			s.fail(w, req, err)
			return
		}

		if resp.Logout {
			auth.Logout(sess)
			req.User = nil
		}
		if resp.LoginID != 0 {
			auth.Login(sess, resp.LoginID)
		}

		if resp.Redirect != "" {
			auth.AddNotices(sess, resp.Notices...)
			if err := s.sessions.Save(r, w, sess); err != nil {
				s.log.WithError(err).Error("Failed to save session")
			}
			http.Redirect(w, r, resp.Redirect, resp.Status)
			return
		}

		notices := append(auth.PopNotices(sess), resp.Notices...)
		s.write(w, req, resp.Status, resp.View, resp.Title, resp.Data, notices)
	}
}

func (s *Server) currentUser(ctx context.Context, sess *sessions.Session) (*models.User, error) {
	id, ok := auth.CurrentUserID(sess)
	if !ok {
		return nil, nil
	}
	user, err := s.store.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		// The account is gone; treat the session as anonymous.
		auth.Logout(sess)
		return nil, nil
	}
	return user, err
}

// fail renders the error page matching err.
func (s *Server) fail(w http.ResponseWriter, req *Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.write(w, req, http.StatusNotFound, "errors/404.html", "Not Found", nil, nil)
	case errors.Is(err, ErrUnauthorized), errors.Is(err, csrf.ErrInvalidToken):
		s.write(w, req, http.StatusUnauthorized, "errors/401.html", "Unauthorized", nil, nil)
	default:
		s.log.WithError(err).WithFields(logrus.Fields{
			"method": req.HTTP.Method,
			"path":   req.HTTP.URL.Path,
		}).Error("Request failed")
		s.write(w, req, http.StatusInternalServerError, "errors/500.html", "Error", nil, nil)
	}
}

func (s *Server) write(w http.ResponseWriter, req *Request, status int, view, title string, data any, notices []auth.Notice) {
	if req.session != nil {
		if err := s.sessions.Save(req.HTTP, w, req.session); err != nil {
			s.log.WithError(err).Error("Failed to save session")
		}
	}

	var buf bytes.Buffer
	err := s.views.Render(&buf, view, views.Page{
		Title:       title,
		CurrentUser: req.User,
		Notices:     notices,
		CSRF:        req.CSRF,
		Data:        data,
	})
	if err != nil {
		s.log.WithError(err).WithField("view", view).Error("Failed to render page")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// pathID parses the numeric route variable name. Ids that do not parse
// cannot exist, so they are reported as not found.
func pathID(req *Request, name string) (uint, error) {
	id, err := strconv.ParseUint(mux.Vars(req.HTTP)[name], 10, 64)
	if err != nil || id == 0 {
		return 0, store.ErrNotFound
	}
	return uint(id), nil
}

func noStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// Handler returns the application's router with logging, metrics and cache
// headers applied.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	middleware := []mux.MiddlewareFunc{logging.Middleware(s.log, s.cfg.SlowRequest), s.metrics.Middleware, noStore}
	r.Use(middleware...)

	limited := s.throttle.wrap

	r.Handle("/signup", s.handle(s.signup)).Methods(http.MethodGet)
	r.Handle("/signup", limited(s.handle(s.signup))).Methods(http.MethodPost)
	r.Handle("/login", s.handle(s.login)).Methods(http.MethodGet)
	r.Handle("/login", limited(s.handle(s.login))).Methods(http.MethodPost)
	r.Handle("/logout", s.handle(s.logout)).Methods(http.MethodPost)

	r.Handle("/users", s.handle(s.listUsers)).Methods(http.MethodGet)
	r.Handle("/users/profile", s.handle(s.editProfile)).Methods(http.MethodGet, http.MethodPost)
	r.Handle("/users/delete", s.handle(s.deleteUser)).Methods(http.MethodPost)
	r.Handle("/users/follow/{id:[0-9]+}", s.handle(s.follow)).Methods(http.MethodPost)
	r.Handle("/users/stop-following/{id:[0-9]+}", s.handle(s.stopFollowing)).Methods(http.MethodPost)
	r.Handle("/users/{id:[0-9]+}", s.handle(s.showUser)).Methods(http.MethodGet)
	r.Handle("/users/{id:[0-9]+}/following", s.handle(s.showFollowing)).Methods(http.MethodGet)
	r.Handle("/users/{id:[0-9]+}/followers", s.handle(s.showFollowers)).Methods(http.MethodGet)
	r.Handle("/users/{id:[0-9]+}/likes", s.handle(s.showLikes)).Methods(http.MethodGet)

	r.Handle("/messages/new", s.handle(s.newMessage)).Methods(http.MethodGet, http.MethodPost)
	r.Handle("/messages/{id:[0-9]+}", s.handle(s.showMessage)).Methods(http.MethodGet)
	r.Handle("/messages/{id:[0-9]+}/delete", s.handle(s.deleteMessage)).Methods(http.MethodPost)
	r.Handle("/messages/like/{id:[0-9]+}", s.handle(s.likeMessage)).Methods(http.MethodPost)
	r.Handle("/messages/unlike/{id:[0-9]+}", s.handle(s.unlikeMessage)).Methods(http.MethodPost)

	r.Handle("/", s.handle(s.home)).Methods(http.MethodGet)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	// The router skips its middleware for requests no route matched.
	unmatched := func(h http.Handler) http.Handler {
		for i := len(middleware) - 1; i >= 0; i-- {
			h = middleware[i](h)
		}
		return h
	}
	r.NotFoundHandler = unmatched(s.handle(func(context.Context, *Request) (*Response, error) {
		return nil, store.ErrNotFound
	}))
	r.MethodNotAllowedHandler = unmatched(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}))
	return r
}
