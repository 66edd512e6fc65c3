package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"zupload/logger"
)

// AuthCookieName is the portal's session cookie.
const AuthCookieName = "cpauthToken"

// ErrAuthAborted is returned when the operator exits at the cookie prompt.
var ErrAuthAborted = errors.New("authentication aborted by operator")

// Prompter is the subset of operator interaction authentication needs.
type Prompter interface {
	Choose(question string, options []string) (string, error)
	Ask(question string) (string, error)
	Secret(question string) (string, error)
}

// Credentials log in to the portal. Empty fields are prompted for.
type Credentials struct {
	Email    string
	Password string
}

// SessionConfig describes where the cookie lives and how to renew it.
type SessionConfig struct {
	CookieFile  string
	Credentials Credentials
	Prompt      Prompter
	Log         logger.Logger
}

// WhoAmI asks the portal who the cookie belongs to. ok is false when the
// portal does not recognise the cookie.
func (c *Client) WhoAmI(ctx context.Context, cookie string) (email string, ok bool, err error) {
	h := http.Header{}
	h.Set("Cookie", cookie)
	resp, err := c.http.do(ctx, http.MethodGet, c.endpoints.WhoAmI, nil, h)
	if err != nil {
		return "", false, fmt.Errorf("whoami: %w", err)
	}
	r, err := readResponse(resp)
	if err != nil {
		return "", false, err
	}
	if r.StatusCode != http.StatusOK {
		return "", false, nil
	}
	var who struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal([]byte(r.Body), &who); err != nil || who.Email == "" {
		return "", false, nil
	}
	return who.Email, true, nil
}

// Login exchanges credentials for a session cookie header value.
func (c *Client) Login(ctx context.Context, creds Credentials) (string, error) {
	form := url.Values{}
	form.Set("mail", creds.Email)
	form.Set("password", creds.Password)
	h := http.Header{}
	h.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.http.do(ctx, http.MethodPost, c.endpoints.Login, BytesBody([]byte(form.Encode())), h)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	cookies := resp.Cookies()
	r, err := readResponse(resp)
	if err != nil {
		return "", err
	}
	if !r.OK() {
		return "", fmt.Errorf("login as %s: status %d: %s", creds.Email, r.StatusCode, strings.TrimSpace(r.Body))
	}
	for _, ck := range cookies {
		if ck.Name == AuthCookieName && ck.Value != "" {
			return ck.Name + "=" + ck.Value, nil
		}
	}
	return "", fmt.Errorf("login as %s: no %s cookie in response", creds.Email, AuthCookieName)
}

// Authenticate makes the client's cookie valid for uploads. A cached cookie
// is revalidated first; an invalid one leads to the continue/regenerate/exit
// prompt, or straight to a fresh login when there is no prompter.
func (c *Client) Authenticate(ctx context.Context, cfg SessionConfig) error {
	log := cfg.Log
	if log == nil {
		log = logger.NewNop()
	}
	cookie, err := ReadCookieFile(cfg.CookieFile)
	if err != nil {
		return err
	}
	if cookie != "" {
		email, ok, err := c.WhoAmI(ctx, cookie)
		if err != nil {
			return err
		}
		if ok {
			log.Info("portal cookie is valid", logger.String("email", email))
			c.SetCookie(cookie)
			return nil
		}
		log.Warn("portal cookie expired or invalid", logger.String("cookie_file", cfg.CookieFile))
		if cfg.Prompt != nil {
			choice, err := cfg.Prompt.Choose("Cookie expired or invalid: continue (c), regenerate (r) or exit (e)?", []string{"c", "r", "e"})
			if err != nil {
				return err
			}
			switch choice {
			case "c":
				c.SetCookie(cookie)
				return nil
			case "e":
				return ErrAuthAborted
			}
		}
	}

	creds, err := completeCredentials(cfg.Credentials, cfg.Prompt)
	if err != nil {
		return err
	}
	cookie, err = c.Login(ctx, creds)
	if err != nil {
		return err
	}
	if err := WriteCookieFile(cfg.CookieFile, cookie); err != nil {
		return err
	}
	email, ok, err := c.WhoAmI(ctx, cookie)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("fresh cookie for %s was rejected by whoami", creds.Email)
	}
	log.Info("portal cookie regenerated", logger.String("email", email))
	c.SetCookie(cookie)
	return nil
}

func completeCredentials(creds Credentials, p Prompter) (Credentials, error) {
	if creds.Email != "" && creds.Password != "" {
		return creds, nil
	}
	if p == nil {
		return creds, fmt.Errorf("portal credentials missing: set PORTAL_EMAIL and PORTAL_PASSWORD")
	}
	var err error
	if creds.Email == "" {
		if creds.Email, err = p.Ask("Portal e-mail:"); err != nil {
			return creds, err
		}
	}
	if creds.Password == "" {
		if creds.Password, err = p.Secret("Portal password:"); err != nil {
			return creds, err
		}
	}
	return creds, nil
}

// ReadCookieFile returns the cached cookie, or "" when there is none.
func ReadCookieFile(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read cookie file: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// WriteCookieFile caches cookie with owner-only permissions.
func WriteCookieFile(path, cookie string) error {
	if path == "" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create cookie dir: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(cookie+"\n"), 0o600); err != nil {
		return fmt.Errorf("write cookie file: %w", err)
	}
	return nil
}
