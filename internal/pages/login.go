package pages

import (
	"fmt"
	"time"

	"github.com/kuitang/forge-e2e/internal/errs"
)

var (
	loginUserField     = ID("user_name")
	loginPasswordField = ID("password")
	loginSubmit        = CSS("form.ui.form button.ui.primary.button")
	loginFlashError    = CSS(".flash-error")
)

// Login is the sign-in screen at /user/login.
type Login struct {
	page
}

func newLogin(s *Site) *Login {
	l := &Login{page: page{
		site:         s,
		name:         "login",
		path:         "/user/login",
		implicitWait: 5 * time.Second,
	}}
	l.ready = l.titleContains(s.markers.LoginTitle)
	return l
}

// LoginResult tags a LoginOutcome.
type LoginResult int

const (
	LoginLoggedIn LoginResult = iota + 1
	LoginRejected
)

func (r LoginResult) String() string {
	switch r {
	case LoginLoggedIn:
		return "logged_in"
	case LoginRejected:
		return "rejected"
	default:
		return fmt.Sprintf("LoginResult(%d)", int(r))
	}
}

// LoginOutcome is what a sign-in attempt led to: a ready Home, or a ready
// Login showing the failure.
type LoginOutcome struct {
	Result LoginResult
	home   *Home
	login  *Login
}

// Home returns the dashboard when the sign-in succeeded.
func (o LoginOutcome) Home() (*Home, bool) {
	return o.home, o.Result == LoginLoggedIn
}

// Rejected returns the login screen when the sign-in was refused.
func (o LoginOutcome) Rejected() (*Login, bool) {
	return o.login, o.Result == LoginRejected
}

// Submit fills the credentials, submits the form and decides the outcome by
// probing which marker shows up. Calling it twice submits twice.
func (l *Login) Submit(username, password string) (LoginOutcome, error) {
	if err := l.requireReady(); err != nil {
		return LoginOutcome{}, err
	}
	if err := l.fill("username", loginUserField, username); err != nil {
		return LoginOutcome{}, err
	}
	if err := l.fill("password", loginPasswordField, password); err != nil {
		return LoginOutcome{}, err
	}
	if err := l.click("sign in", loginSubmit); err != nil {
		return LoginOutcome{}, err
	}

	home := newHome(l.site)
	hit := l.probe(
		home.ready,
		func() (bool, error) { return l.present(loginFlashError) },
	)
	if hit == 0 {
		if err := home.enter(); err != nil {
			return LoginOutcome{}, err
		}
		l.site.log.Info("login_succeeded", "username", username)
		return LoginOutcome{Result: LoginLoggedIn, home: home}, nil
	}

	// Still on the form, either refused by the server or blocked by a
	// required field before submission.
	again := newLogin(l.site)
	if err := again.enter(); err != nil {
		return LoginOutcome{}, err
	}
	l.site.log.Info("login_rejected", "username", username)
	return LoginOutcome{Result: LoginRejected, login: again}, nil
}

// SubmitValid submits credentials that are expected to work.
func (l *Login) SubmitValid(username, password string) (*Home, error) {
	out, err := l.Submit(username, password)
	if err != nil {
		return nil, err
	}
	home, ok := out.Home()
	if !ok {
		return nil, errs.New(errs.UnexpectedOutcome, fmt.Sprintf("login as %q was rejected", username))
	}
	return home, nil
}

// SubmitInvalid submits credentials that are expected to be refused.
func (l *Login) SubmitInvalid(username, password string) (*Login, error) {
	out, err := l.Submit(username, password)
	if err != nil {
		return nil, err
	}
	login, ok := out.Rejected()
	if !ok {
		return nil, errs.New(errs.UnexpectedOutcome, fmt.Sprintf("login as %q unexpectedly succeeded", username))
	}
	return login, nil
}

// HasFailed reports whether the browser is still on the sign-in screen.
func (l *Login) HasFailed() (bool, error) {
	return l.titleContains(l.site.markers.LoginTitle)()
}

// FlashError returns the flash error text, or "" when none is shown.
func (l *Login) FlashError() (string, error) {
	ok, err := l.present(loginFlashError)
	if err != nil || !ok {
		return "", err
	}
	return l.text("error message", loginFlashError)
}
