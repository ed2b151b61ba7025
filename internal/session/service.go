package session

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"seatwatch/internal/credentials"
	"seatwatch/internal/portal"
	"seatwatch/internal/shared/config"
	"seatwatch/pkg/logger"
)

// LoginRequest carries whatever the caller knows about the user. Empty
// fields are filled from the store.
type LoginRequest struct {
	UserID        string
	User          string
	Password      string
	Captcha       string
	Cookies       portal.Cookies
	LoginRequired bool
}

// Service obtains and renews portal sessions. A declined login is not an
// error: Login returns a nil session and the reason is logged.
type Service interface {
	Login(ctx context.Context, req *LoginRequest) (*portal.Session, error)
	Captcha(ctx context.Context) ([]byte, *portal.Session, error)
	Logout(ctx context.Context, userID string) error
}

type service struct {
	gateway   *portal.Gateway
	store     *credentials.Store
	login     config.LoginProfile
	auth      config.AuthProfile
	accountID *regexp.Regexp
	logger    *logger.Logger
}

func NewService(gateway *portal.Gateway, store *credentials.Store, profile config.Profile, log *logger.Logger) (Service, error) {
	accountID, err := regexp.Compile(profile.Auth.AccountIDPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid account id pattern: %w", err)
	}
	return &service{
		gateway:   gateway,
		store:     store,
		login:     profile.Login,
		auth:      profile.Auth,
		accountID: accountID,
		logger:    log,
	}, nil
}

func (s *service) Login(ctx context.Context, req *LoginRequest) (*portal.Session, error) {
	cookies := req.Cookies
	if cookies.Empty() {
		stored, err := s.store.LoadSession(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
		if stored != nil {
			cookies = stored.Cookies
		}
	}

	// Known sessions are reused as-is; callers that need a fresh one say so.
	if !cookies.Empty() && !req.LoginRequired {
		return &portal.Session{UserID: req.UserID, Cookies: cookies}, nil
	}

	// A solved captcha is bound to the session that fetched it; touching the
	// portal with it first would render a fresh challenge.
	captchaBound := req.Captcha != "" && !req.Cookies.Empty()

	user, password := req.User, req.Password
	if user == "" && password == "" && !cookies.Empty() && req.Captcha == "" {
		probe, ok, err := s.probe(ctx, cookies)
		if err != nil {
			return nil, err
		}
		if ok {
			session := &portal.Session{UserID: req.UserID, Cookies: probe.Cookies}
			if err := s.store.SaveSession(ctx, session); err != nil {
				return nil, err
			}
			s.logger.LogAuthSuccess(ctx, req.UserID, "session")
			return session, nil
		}
	}

	if user == "" || password == "" {
		creds, err := s.store.LoadCredentials(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
		if creds != nil {
			user, password = creds.User, creds.Password
		}
	}
	if user == "" || password == "" {
		s.logger.LogAuthFailure(ctx, req.UserID, "no credentials")
		return nil, nil
	}
	if req.Captcha == "" {
		s.logger.LogAuthFailure(ctx, req.UserID, "no captcha solution")
		return nil, nil
	}

	formCookies := cookies
	if !captchaBound {
		page, err := s.gateway.Do(ctx, portal.Request{Path: s.login.Path, Cookies: cookies})
		if err != nil {
			return nil, err
		}
		formCookies = page.Cookies
	}

	resp, err := s.gateway.Do(ctx, portal.Request{
		Method:     http.MethodPost,
		Path:       s.login.Path,
		Form:       s.loginForm(user, password, req.Captcha),
		Cookies:    formCookies,
		Referer:    s.login.Path,
		NoRedirect: true,
	})
	if err != nil {
		return nil, err
	}
	// The portal answers a rejected login with the form again (200) and an
	// accepted one with a redirect.
	if !resp.IsRedirect() {
		s.logger.LogAuthFailure(ctx, req.UserID, fmt.Sprintf("login rejected with status %d", resp.Status))
		return nil, nil
	}

	// The login name may be an alias; the numeric id shown once logged in
	// is what bookings are made under.
	check, err := s.gateway.Do(ctx, portal.Request{Path: s.auth.CheckPath, Cookies: resp.Cookies})
	if err != nil {
		return nil, err
	}
	cookies = check.Cookies
	canonical := user
	if id := s.findAccountID(check); id != "" {
		canonical = id
	}

	if err := s.store.SaveCredentials(ctx, req.UserID, credentials.Credentials{User: canonical, Password: password}); err != nil {
		return nil, err
	}
	session := &portal.Session{UserID: req.UserID, Cookies: cookies}
	if err := s.store.SaveSession(ctx, session); err != nil {
		return nil, err
	}

	s.logger.LogAuthSuccess(ctx, req.UserID, "password")
	return session, nil
}

// probe fetches an authenticated-only page and looks for the logged-in marker
func (s *service) probe(ctx context.Context, cookies portal.Cookies) (*portal.Response, bool, error) {
	resp, err := s.gateway.Do(ctx, portal.Request{Path: s.auth.CheckPath, Cookies: cookies})
	if err != nil {
		return nil, false, err
	}
	return resp, resp.Status == http.StatusOK && strings.Contains(resp.Text(), s.auth.Marker), nil
}

func (s *service) loginForm(user, password, captcha string) url.Values {
	home := s.gateway.URL("", nil)
	form := url.Values{}
	form.Set(s.login.UserField, user)
	form.Set(s.login.PasswordField, password)
	form.Set("returl", home)
	form.Set("TargetURL", home)
	form.Set("Action", "SetName")
	if s.login.EulaField != "" {
		form.Set(s.login.EulaField, s.login.EulaValue)
	}
	form.Set(s.login.CaptchaField, captcha)
	return form
}

func (s *service) findAccountID(resp *portal.Response) string {
	doc, err := resp.Document()
	if err != nil {
		return ""
	}
	text := doc.Text()
	if s.auth.AccountIDSelector != "" {
		if sel := doc.Find(s.auth.AccountIDSelector); sel.Length() > 0 {
			text = sel.Text()
		}
	}
	m := s.accountID.FindStringSubmatch(text)
	switch len(m) {
	case 0:
		return ""
	case 1:
		return m[0]
	default:
		return m[1]
	}
}

func (s *service) Captcha(ctx context.Context) ([]byte, *portal.Session, error) {
	page, err := s.gateway.Do(ctx, portal.Request{Path: s.login.Path})
	if err != nil {
		return nil, nil, err
	}
	doc, err := page.Document()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse login page: %w", err)
	}

	src, ok := doc.Find(s.login.CaptchaImageSelector).First().Attr("src")
	if !ok || src == "" {
		s.logger.Warn("No captcha image on login page", "url", page.URL)
		return nil, nil, nil
	}

	// Relative image paths are relative to the login page, not the portal root.
	if ref, err := url.Parse(src); err == nil {
		if base, err := url.Parse(page.URL); err == nil {
			src = base.ResolveReference(ref).String()
		}
	}

	img, err := s.gateway.Do(ctx, portal.Request{
		Path:    src,
		Cookies: page.Cookies,
		Referer: s.login.Path,
	})
	if err != nil {
		return nil, nil, err
	}
	if img.Status != http.StatusOK {
		s.logger.Warn("Captcha image request failed", "status", img.Status)
		return nil, nil, nil
	}

	return img.Body, &portal.Session{Cookies: img.Cookies}, nil
}

func (s *service) Logout(ctx context.Context, userID string) error {
	if err := s.store.DeleteSession(ctx, userID); err != nil {
		return err
	}
	return s.store.DeleteCredentials(ctx, userID)
}
