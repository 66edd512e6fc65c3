package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// authServer accepts one valid token and hands it out on login.
type authServer struct {
	mu       sync.Mutex
	valid    string
	password string
	logins   int
	whoamis  int
}

func (a *authServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/whoami", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		a.whoamis++
		a.mu.Unlock()
		ck, err := r.Cookie(AuthCookieName)
		if err != nil || ck.Value != a.valid {
			http.Error(w, "not logged in", http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"email": "uploader@icos-cp.eu"})
	})
	mux.HandleFunc("/password/login", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		a.logins++
		a.mu.Unlock()
		if r.Method != http.MethodPost || r.ParseForm() != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("mail") != "uploader@icos-cp.eu" || r.PostForm.Get("password") != a.password {
			http.Error(w, "wrong credentials", http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: AuthCookieName, Value: a.valid, Path: "/"})
		fmt.Fprint(w, "ok")
	})
	return mux
}

type fakePrompter struct {
	choice  string
	answers []string
	asked   []string
}

func (p *fakePrompter) Choose(q string, _ []string) (string, error) {
	p.asked = append(p.asked, q)
	return p.choice, nil
}

func (p *fakePrompter) Ask(q string) (string, error) {
	p.asked = append(p.asked, q)
	if len(p.answers) == 0 {
		return "", fmt.Errorf("no answer for %q", q)
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a, nil
}

func (p *fakePrompter) Secret(q string) (string, error) { return p.Ask(q) }

func newAuthFixture(t *testing.T) (*Client, *authServer, string) {
	t.Helper()
	auth := &authServer{valid: "fresh", password: "s3cret"}
	srv := httptest.NewServer(auth.handler())
	t.Cleanup(srv.Close)
	c, _ := newTestClient(t, srv, true)
	return c, auth, filepath.Join(t.TempDir(), "secrets", "cookies.txt")
}

func TestWhoAmI(t *testing.T) {
	c, _, _ := newAuthFixture(t)

	email, ok, err := c.WhoAmI(context.Background(), "cpauthToken=fresh")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "uploader@icos-cp.eu", email)

	_, ok, err = c.WhoAmI(context.Background(), "cpauthToken=stale")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLogin(t *testing.T) {
	c, _, _ := newAuthFixture(t)

	cookie, err := c.Login(context.Background(), Credentials{Email: "uploader@icos-cp.eu", Password: "s3cret"})
	require.NoError(t, err)
	require.Equal(t, "cpauthToken=fresh", cookie)

	_, err = c.Login(context.Background(), Credentials{Email: "uploader@icos-cp.eu", Password: "wrong"})
	require.ErrorContains(t, err, "status 401")
}

func TestAuthenticate_ValidCachedCookie(t *testing.T) {
	c, auth, cookieFile := newAuthFixture(t)
	require.NoError(t, WriteCookieFile(cookieFile, "cpauthToken=fresh"))

	require.NoError(t, c.Authenticate(context.Background(), SessionConfig{CookieFile: cookieFile}))
	require.Equal(t, "cpauthToken=fresh", c.Cookie())
	require.Zero(t, auth.logins)
}

func TestAuthenticate_InvalidCookieChoices(t *testing.T) {
	t.Run("continue keeps the cookie", func(t *testing.T) {
		c, auth, cookieFile := newAuthFixture(t)
		require.NoError(t, WriteCookieFile(cookieFile, "cpauthToken=stale"))
		p := &fakePrompter{choice: "c"}

		require.NoError(t, c.Authenticate(context.Background(), SessionConfig{CookieFile: cookieFile, Prompt: p}))
		require.Equal(t, "cpauthToken=stale", c.Cookie())
		require.Zero(t, auth.logins)
	})

	t.Run("exit aborts", func(t *testing.T) {
		c, _, cookieFile := newAuthFixture(t)
		require.NoError(t, WriteCookieFile(cookieFile, "cpauthToken=stale"))

		err := c.Authenticate(context.Background(), SessionConfig{CookieFile: cookieFile, Prompt: &fakePrompter{choice: "e"}})
		require.ErrorIs(t, err, ErrAuthAborted)
		require.Empty(t, c.Cookie())
	})

	t.Run("regenerate logs in with prompted credentials", func(t *testing.T) {
		c, auth, cookieFile := newAuthFixture(t)
		require.NoError(t, WriteCookieFile(cookieFile, "cpauthToken=stale"))
		p := &fakePrompter{choice: "r", answers: []string{"uploader@icos-cp.eu", "s3cret"}}

		require.NoError(t, c.Authenticate(context.Background(), SessionConfig{CookieFile: cookieFile, Prompt: p}))
		require.Equal(t, "cpauthToken=fresh", c.Cookie())
		require.Equal(t, 1, auth.logins)

		cached, err := ReadCookieFile(cookieFile)
		require.NoError(t, err)
		require.Equal(t, "cpauthToken=fresh", cached)
		if runtime.GOOS != "windows" {
			st, err := os.Stat(cookieFile)
			require.NoError(t, err)
			require.Equal(t, os.FileMode(0o600), st.Mode().Perm())
		}
	})
}

func TestAuthenticate_UnattendedLogin(t *testing.T) {
	c, auth, cookieFile := newAuthFixture(t)
	require.NoError(t, WriteCookieFile(cookieFile, "cpauthToken=stale"))

	err := c.Authenticate(context.Background(), SessionConfig{
		CookieFile:  cookieFile,
		Credentials: Credentials{Email: "uploader@icos-cp.eu", Password: "s3cret"},
	})
	require.NoError(t, err)
	require.Equal(t, "cpauthToken=fresh", c.Cookie())
	require.Equal(t, 1, auth.logins)
}

func TestAuthenticate_MissingCredentials(t *testing.T) {
	c, auth, cookieFile := newAuthFixture(t)

	err := c.Authenticate(context.Background(), SessionConfig{CookieFile: cookieFile})
	require.ErrorContains(t, err, "PORTAL_EMAIL")
	require.Zero(t, auth.logins)
}

func TestCookieFile_Missing(t *testing.T) {
	cookie, err := ReadCookieFile(filepath.Join(t.TempDir(), "none.txt"))
	require.NoError(t, err)
	require.Empty(t, cookie)

	cookie, err = ReadCookieFile("")
	require.NoError(t, err)
	require.Empty(t, cookie)
	require.NoError(t, WriteCookieFile("", "x"))
}
