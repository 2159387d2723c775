package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/pkg/logging"
)

const ContextKey = "csrf_token"

var (
	errOrigin = errors.New("invalid origin")
	errToken  = errors.New("invalid CSRF token")
)

// Config drives the double-submit check: the browser echoes the readable
// cookie value back in a header on every mutating request.
type Config struct {
	CookieName string
	HeaderName string

	CookiePath string
	Secure     bool
	SameSite   http.SameSite
	MaxAge     time.Duration

	EnforceSameOrigin bool
	// TrustedOrigins are extra scheme://host values allowed to mutate, such as
	// a storefront SPA served from its own dev server.
	TrustedOrigins []string

	// SkipPrefixes are path prefixes that bypass the check, e.g. health checks.
	SkipPrefixes []string
}

func DefaultConfig() Config {
	return Config{
		CookieName:        "XSRF-TOKEN",
		HeaderName:        "X-CSRF-Token",
		CookiePath:        "/",
		SameSite:          http.SameSiteLaxMode,
		MaxAge:            24 * time.Hour,
		EnforceSameOrigin: true,
		SkipPrefixes:      []string{"/health/"},
	}
}

// Guard issues and checks tokens. Handlers that change who the browser is
// (sign-in, sign-out) call Rotate so a token seen before the change is void.
type Guard struct {
	cfg     Config
	trusted map[string]struct{}
}

func New(cfg Config) *Guard {
	def := DefaultConfig()
	if cfg.CookieName == "" {
		cfg.CookieName = def.CookieName
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = def.HeaderName
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = def.CookiePath
	}
	if cfg.SameSite == 0 {
		cfg.SameSite = def.SameSite
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = def.MaxAge
	}

	g := &Guard{cfg: cfg, trusted: make(map[string]struct{}, len(cfg.TrustedOrigins))}
	for _, o := range cfg.TrustedOrigins {
		if n := normalizeOrigin(o); n != "" {
			g.trusted[n] = struct{}{}
		}
	}
	return g
}

func Middleware(cfg Config) echo.MiddlewareFunc {
	return New(cfg).Middleware()
}

func (g *Guard) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if g.skipped(req.URL.Path) {
				return next(c)
			}

			token := ""
			if ck, err := req.Cookie(g.cfg.CookieName); err == nil {
				token = ck.Value
			}
			issued := token
			if issued == "" {
				var err error
				if issued, err = g.issue(c); err != nil {
					return echo.NewHTTPError(http.StatusInternalServerError, "failed to create CSRF token")
				}
			} else {
				g.setCookie(c, token)
				c.Set(ContextKey, token)
			}

			if safeMethod(req.Method) {
				c.Response().Header().Set(g.cfg.HeaderName, issued)
				return next(c)
			}

			if err := g.verify(req, token); err != nil {
				logging.FromContext(req.Context()).With("svc", "csrf").
					Warn("csrf_rejected", "reason", err.Error(), "origin", req.Header.Get("Origin"))
				return echo.NewHTTPError(http.StatusForbidden, err.Error())
			}
			return next(c)
		}
	}
}

// Rotate replaces the browser's token. The new value is sent as a cookie and
// in the response header so the front end can pick it up immediately.
func (g *Guard) Rotate(c echo.Context) error {
	token, err := g.issue(c)
	if err != nil {
		return err
	}
	c.Response().Header().Set(g.cfg.HeaderName, token)
	return nil
}

func (g *Guard) issue(c echo.Context) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(b)
	g.setCookie(c, token)
	c.Set(ContextKey, token)
	return token, nil
}

func (g *Guard) setCookie(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     g.cfg.CookieName,
		Value:    token,
		Path:     g.cfg.CookiePath,
		Secure:   g.cfg.Secure,
		HttpOnly: false,
		MaxAge:   int(g.cfg.MaxAge.Seconds()),
		SameSite: g.cfg.SameSite,
	})
}

func (g *Guard) skipped(path string) bool {
	for _, p := range g.cfg.SkipPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// verify checks a mutating request against the cookie token it arrived with.
func (g *Guard) verify(req *http.Request, cookieToken string) error {
	if g.cfg.EnforceSameOrigin && !g.originAllowed(req) {
		return errOrigin
	}
	header := req.Header.Get(g.cfg.HeaderName)
	if cookieToken == "" || header == "" {
		return errToken
	}
	if subtle.ConstantTimeCompare([]byte(cookieToken), []byte(header)) != 1 {
		return errToken
	}
	return nil
}

func (g *Guard) originAllowed(req *http.Request) bool {
	claimed := req.Header.Get("Origin")
	if claimed == "" {
		claimed = req.Header.Get("Referer")
	}
	origin := normalizeOrigin(claimed)
	if origin == "" {
		return false
	}
	if origin == ownOrigin(req) {
		return true
	}
	_, ok := g.trusted[origin]
	return ok
}

// normalizeOrigin reduces an Origin or Referer value to lower-case
// scheme://host, or "" when it is not an absolute URL.
func normalizeOrigin(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}

func ownOrigin(req *http.Request) string {
	scheme := "http"
	switch {
	case req.Header.Get("X-Forwarded-Proto") != "":
		scheme = req.Header.Get("X-Forwarded-Proto")
	case req.TLS != nil:
		scheme = "https"
	}
	return strings.ToLower(scheme + "://" + req.Host)
}

func safeMethod(m string) bool {
	return m == http.MethodGet || m == http.MethodHead || m == http.MethodOptions
}
