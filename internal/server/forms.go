package server

import (
	"strings"
	"unicode/utf8"

	"warbler/internal/csrf"
	"warbler/internal/models"
)

const (
	msgRequired    = "This field is required."
	msgInvalidMail = "Invalid email address."
	msgShortPass   = "Field must be at least 6 characters long."
	msgBadToken    = "The CSRF token is missing or invalid."
	minPassword    = 6
)

// fieldErrors collects validation messages per form field.
type fieldErrors map[string][]string

func (e fieldErrors) add(field, msg string) {
	e[field] = append(e[field], msg)
}

func (e fieldErrors) required(field, value string) {
	if strings.TrimSpace(value) == "" {
		e.add(field, msgRequired)
	}
}

func (e fieldErrors) email(field, value string) {
	if value != "" && (!strings.Contains(value, "@") || strings.HasPrefix(value, "@") || strings.HasSuffix(value, "@")) {
		e.add(field, msgInvalidMail)
	}
}

func (e fieldErrors) password(field, value string) {
	if utf8.RuneCountInString(value) < minPassword {
		e.add(field, msgShortPass)
	}
}

// checkToken records a form error when the submission carries no valid
// CSRF token, so the form is shown again instead of being applied.
func (s *Server) checkToken(req *Request, errs fieldErrors) {
	if _, err := s.guard.Validate(req.HTTP, req.session); err != nil {
		errs.add(csrf.TokenField, msgBadToken)
	}
}

// formPage is the view data of every page built around a single form.
type formPage struct {
	Form   any
	Errors fieldErrors
}

type signupForm struct {
	Username string
	Email    string
	Password string
	ImageURL string
}

func bindSignup(req *Request) signupForm {
	return signupForm{
		Username: strings.TrimSpace(req.Form("username")),
		Email:    strings.TrimSpace(req.Form("email")),
		Password: req.Form("password"),
		ImageURL: strings.TrimSpace(req.Form("image_url")),
	}
}

func (f signupForm) validate() fieldErrors {
	errs := fieldErrors{}
	errs.required("username", f.Username)
	errs.required("email", f.Email)
	errs.email("email", f.Email)
	errs.password("password", f.Password)
	return errs
}

type loginForm struct {
	Username string
	Password string
}

func bindLogin(req *Request) loginForm {
	return loginForm{
		Username: strings.TrimSpace(req.Form("username")),
		Password: req.Form("password"),
	}
}

func (f loginForm) validate() fieldErrors {
	errs := fieldErrors{}
	errs.required("username", f.Username)
	errs.password("password", f.Password)
	return errs
}

type messageForm struct {
	Text string
}

func (f messageForm) validate() fieldErrors {
	errs := fieldErrors{}
	errs.required("text", f.Text)
	if utf8.RuneCountInString(f.Text) > models.MaxMessageLength {
		errs.add("text", "Field cannot be longer than 140 characters.")
	}
	return errs
}

type profileForm struct {
	Username       string
	Email          string
	ImageURL       string
	HeaderImageURL string
	Bio            string
	Location       string
	Password       string
}

// profileFormFor prefills the edit form. Default images show as blank so
// that submitting the form unchanged keeps the defaults.
func profileFormFor(u *models.User) profileForm {
	f := profileForm{Username: u.Username, Email: u.Email}
	if u.ImageURL != models.DefaultImageURL {
		f.ImageURL = u.ImageURL
	}
	if u.HeaderImageURL != models.DefaultHeaderURL {
		f.HeaderImageURL = u.HeaderImageURL
	}
	if u.Bio != nil {
		f.Bio = *u.Bio
	}
	if u.Location != nil {
		f.Location = *u.Location
	}
	return f
}

func bindProfile(req *Request) profileForm {
	return profileForm{
		Username:       strings.TrimSpace(req.Form("username")),
		Email:          strings.TrimSpace(req.Form("email")),
		ImageURL:       strings.TrimSpace(req.Form("image_url")),
		HeaderImageURL: strings.TrimSpace(req.Form("header_image_url")),
		Bio:            strings.TrimSpace(req.Form("bio")),
		Location:       strings.TrimSpace(req.Form("location")),
		Password:       req.Form("password"),
	}
}

func (f profileForm) validate() fieldErrors {
	errs := fieldErrors{}
	errs.required("username", f.Username)
	errs.required("email", f.Email)
	errs.email("email", f.Email)
	errs.required("password", f.Password)
	return errs
}

// apply copies the form onto u, substituting defaults for blank images.
func (f profileForm) apply(u *models.User) {
	u.Username = f.Username
	u.Email = f.Email
	u.ImageURL = f.ImageURL
	if u.ImageURL == "" {
		u.ImageURL = models.DefaultImageURL
	}
	u.HeaderImageURL = f.HeaderImageURL
	if u.HeaderImageURL == "" {
		u.HeaderImageURL = models.DefaultHeaderURL
	}
	u.Bio = optional(f.Bio)
	u.Location = optional(f.Location)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
