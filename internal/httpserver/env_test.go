package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/cart"
	"github.com/Skotchmaster/storefront/internal/checkout"
	"github.com/Skotchmaster/storefront/internal/middleware/csrf"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/session"
	"github.com/Skotchmaster/storefront/pkg/apiclient"
	pkgdb "github.com/Skotchmaster/storefront/pkg/db"
)

// fakeBackend imitates the marketplace REST API.
type fakeBackend struct {
	mu        sync.Mutex
	products  []models.Product
	config    models.PlatformConfig
	points    int64
	orderFail map[int64]int
	orders    []models.OrderRequest
	token     string
	revoked   bool
}

func product(id, storeID int64, name, category, price string, tier models.Tier) models.Product {
	return models.Product{
		ID:        id,
		Name:      name,
		Category:  category,
		Price:     decimal.RequireFromString(price),
		Stock:     10,
		StoreID:   storeID,
		StoreName: "store-" + strconv.FormatInt(storeID, 10),
		Tier:      tier,
	}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		products: []models.Product{
			product(1, 10, "Nike Air", "shoes", "120", models.TierPaid),
			product(2, 20, "Nike Air", "shoes", "99.90", models.TierTrial),
			product(3, 20, "Adidas Run", "shoes", "80", models.TierPaid),
			product(4, 30, "Wool Hat", "hats", "15", models.TierFree),
		},
		config:    models.PlatformConfig{SecondaryCurrencyEnabled: true, SecondaryCurrencyRate: decimal.RequireFromString("2"), SecondaryCurrencySymbol: "Bs"},
		points:    500,
		orderFail: map[int64]int{},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *fakeBackend) authorized(r *http.Request) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.revoked && b.token != "" && r.Header.Get("Authorization") == "Bearer "+b.token
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /public/products", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, b.products)
	})
	mux.HandleFunc("GET /public/search", func(w http.ResponseWriter, r *http.Request) {
		q := strings.ToLower(r.URL.Query().Get("q"))
		var out []models.Product
		for i := len(b.products) - 1; i >= 0; i-- {
			if strings.Contains(strings.ToLower(b.products[i].Name), q) {
				out = append(out, b.products[i])
			}
		}
		writeJSON(w, http.StatusOK, out)
	})
	mux.HandleFunc("GET /public/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		for _, p := range b.products {
			if p.ID == id {
				writeJSON(w, http.StatusOK, p)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Product not found"})
	})
	mux.HandleFunc("GET /public/products/name/{name}/sellers", func(w http.ResponseWriter, r *http.Request) {
		out := []models.Product{}
		for _, p := range b.products {
			if p.Name == r.PathValue("name") {
				out = append(out, p)
			}
		}
		writeJSON(w, http.StatusOK, out)
	})
	mux.HandleFunc("GET /public/config", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, b.config)
	})
	mux.HandleFunc("POST /public/order", func(w http.ResponseWriter, r *http.Request) {
		var req models.OrderRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		b.mu.Lock()
		b.orders = append(b.orders, req)
		status := b.orderFail[req.ProductID]
		b.mu.Unlock()
		if status != 0 {
			writeJSON(w, status, map[string]string{"message": "stock exhausted"})
			return
		}
		writeJSON(w, http.StatusCreated, models.OrderResult{ID: 900 + req.ProductID, Status: "PENDING"})
	})
	mux.HandleFunc("GET /public/customer/points", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		writeJSON(w, http.StatusOK, models.Points{Email: r.URL.Query().Get("email"), Points: b.points})
	})
	mux.HandleFunc("POST /auth/signin", func(w http.ResponseWriter, r *http.Request) {
		var req apiclient.SigninRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		writeJSON(w, http.StatusOK, apiclient.AuthResponse{Token: b.token, ID: 5, Username: req.Username, Email: "ana@example.com", Role: "CUSTOMER"})
	})
	mux.HandleFunc("POST /auth/reset-password", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /customer-portal/dashboard", func(w http.ResponseWriter, r *http.Request) {
		if !b.authorized(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
			return
		}
		writeJSON(w, http.StatusOK, models.DashboardStats{TotalOrders: 3, Points: 500})
	})
	mux.HandleFunc("GET /customer-portal/orders", func(w http.ResponseWriter, r *http.Request) {
		if !b.authorized(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
			return
		}
		writeJSON(w, http.StatusOK, []models.OrderSummary{{ID: 1, Product: "Nike Air", Quantity: 1}})
	})
	return mux
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	types  []string
}

func (p *recordingPublisher) PublishEvent(_ context.Context, topic, _ string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	if m, ok := event.(map[string]any); ok {
		p.types = append(p.types, m["type"].(string))
	}
	return nil
}

type testEnv struct {
	t        *testing.T
	backend  *fakeBackend
	deps     *Deps
	carts    *cart.Registry
	tracker  *checkout.Tracker
	events   *recordingPublisher
	sessions *session.Manager
	srv      *httptest.Server
}

func signToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, session.TokenClaims{
		Role:             "CUSTOMER",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "ana", ExpiresAt: jwt.NewNumericDate(exp)},
	})
	s, err := tok.SignedString([]byte("backend-only-key"))
	require.NoError(t, err)
	return s
}

func newTestEnv(t *testing.T, configure ...func(*Deps)) *testEnv {
	t.Helper()

	backend := newFakeBackend()
	backend.token = signToken(t, time.Now().Add(time.Hour))
	apiSrv := httptest.NewServer(backend.handler())
	t.Cleanup(apiSrv.Close)
	api := apiclient.NewClient(apiSrv.URL)

	db, err := pkgdb.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { pkgdb.Close(db) })
	store, err := session.NewGormStore(db)
	require.NoError(t, err)

	sessions := session.NewManager(store)
	carts := cart.NewRegistry()
	tracker := checkout.NewTracker()
	sessions.Subscribe(DropOnInvalidate(carts, tracker))
	platform := NewPlatform(api)
	events := &recordingPublisher{}
	guard := csrf.New(csrf.DefaultConfig())

	d := &Deps{
		Catalog: &CatalogHTTP{API: api, Platform: platform},
		Cart:    &CartHTTP{API: api, Carts: carts, Platform: platform, Events: events},
		Checkout: &CheckoutHTTP{
			API: api, Carts: carts, Tracker: tracker, Sessions: sessions, Events: events,
			IntN: func(int) int { return 0 },
		},
		Auth:     &AuthHTTP{API: api, Sessions: sessions, Carts: carts, CSRF: guard},
		Customer: &CustomerHTTP{API: api, Sessions: sessions},
		Sessions: sessions,
		CSRF:     guard,
		Ready:    func(ctx context.Context) error { return pkgdb.Ping(ctx, db) },
	}
	for _, fn := range configure {
		fn(d)
	}

	e := echo.New()
	e.Use(echomw.Recover())
	Register(e, d)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	return &testEnv{t: t, backend: backend, deps: d, carts: carts, tracker: tracker, events: events, sessions: sessions, srv: srv}
}

// browser keeps cookies like a real one and echoes the CSRF cookie back.
type browser struct {
	env *testEnv
	hc  *http.Client
}

func (env *testEnv) browser() *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(env.t, err)
	b := &browser{env: env, hc: &http.Client{Jar: jar}}
	b.do(http.MethodGet, "/api/cart", nil, nil)
	return b
}

func (b *browser) cookie(name string) string {
	u, _ := url.Parse(b.env.srv.URL)
	for _, ck := range b.hc.Jar.Cookies(u) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

// plant writes a cookie straight into the jar.
func (b *browser) plant(name, value string) {
	u, _ := url.Parse(b.env.srv.URL)
	b.hc.Jar.SetCookies(u, []*http.Cookie{{Name: name, Value: value, Path: "/"}})
}

// do sends body as JSON and decodes the answer into out when out is non-nil.
func (b *browser) do(method, path string, body, out any) int {
	t := b.env.t
	t.Helper()

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, b.env.srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if method != http.MethodGet {
		req.Header.Set("Origin", b.env.srv.URL)
		req.Header.Set("X-CSRF-Token", b.cookie("XSRF-TOKEN"))
	}

	resp, err := b.hc.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out), "decode %s %s", method, path)
	}
	return resp.StatusCode
}
