package server

import (
	"context"
	"errors"
	"net/http"

	"warbler/internal/auth"
	"warbler/internal/models"
	"warbler/internal/store"
)

func (s *Server) signup(ctx context.Context, req *Request) (*Response, error) {
	if req.HTTP.Method == http.MethodGet {
		return render("users/signup.html", "Sign up", formPage{Form: signupForm{}}), nil
	}

	form := bindSignup(req)
	errs := form.validate()
	s.checkToken(req, errs)
	if len(errs) > 0 {
		return render("users/signup.html", "Sign up", formPage{Form: form, Errors: errs}), nil
	}

	var user *models.User
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		var err error
		user, err = tx.Signup(ctx, store.SignupParams{
			Username: form.Username,
			Email:    form.Email,
			Password: form.Password,
			ImageURL: form.ImageURL,
		})
		return err
	})
	if errors.Is(err, store.ErrUniquenessViolation) {
		return render("users/signup.html", "Sign up", formPage{Form: form},
			auth.Danger("Username already taken")), nil
	}
	if err != nil {
		return nil, err
	}

	s.metrics.Signups.WithLabelValues("/signup").Inc()
	s.log.WithField("user_id", user.ID).Info("User signed up")

	resp := redirect("/")
	resp.LoginID = user.ID
	return resp, nil
}

func (s *Server) login(ctx context.Context, req *Request) (*Response, error) {
	if req.HTTP.Method == http.MethodGet {
		return render("users/login.html", "Log in", formPage{Form: loginForm{}}), nil
	}

	form := bindLogin(req)
	errs := form.validate()
	s.checkToken(req, errs)
	if len(errs) > 0 {
		return render("users/login.html", "Log in", formPage{Form: form, Errors: errs}), nil
	}

	user, err := s.store.Authenticate(ctx, form.Username, form.Password)
	if errors.Is(err, store.ErrInvalidCredentials) {
		s.log.WithField("username", form.Username).Warn("Failed login attempt")
		return render("users/login.html", "Log in", formPage{Form: form},
			auth.Danger("Invalid credentials.")), nil
	}
	if err != nil {
		return nil, err
	}

	resp := redirect("/", auth.Success("Hello, "+user.Username+"!"))
	resp.LoginID = user.ID
	return resp, nil
}

func (s *Server) logout(ctx context.Context, req *Request) (*Response, error) {
	if _, err := s.guard.Validate(req.HTTP, req.session); err != nil {
		return nil, err
	}
	resp := redirect("/", auth.Info("Successfully logged out!"))
	resp.Logout = true
	return resp, nil
}
