package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/middleware/csrf"
	"github.com/Skotchmaster/storefront/internal/session"
)

type Deps struct {
	Catalog  *CatalogHTTP
	Cart     *CartHTTP
	Checkout *CheckoutHTTP
	Auth     *AuthHTTP
	Customer *CustomerHTTP

	Sessions     *session.Manager
	CSRF         *csrf.Guard
	CookieSecure bool
	// Ready reports whether backing stores answer; nil means always ready.
	Ready func(ctx context.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return c.NoContent(http.StatusServiceUnavailable)
			}
		}
		return c.NoContent(http.StatusOK)
	})

	guard := d.CSRF
	if guard == nil {
		guard = csrf.New(csrf.DefaultConfig())
	}
	api := e.Group("/api", guard.Middleware(), SessionCookie(d.CookieSecure))

	api.GET("/config", d.Catalog.GetConfig)

	products := api.Group("/products")
	products.GET("", d.Catalog.ListProducts)
	products.GET("/:id", d.Catalog.GetProduct)
	products.GET("/name/:name/sellers", d.Catalog.Sellers)

	auth := api.Group("/auth")
	auth.POST("/signup", d.Auth.Signup)
	auth.POST("/signin", d.Auth.Signin)
	auth.POST("/logout", d.Auth.Logout)
	auth.POST("/forgot-password", d.Auth.ForgotPassword)
	auth.POST("/reset-password", d.Auth.ResetPassword)

	cart := api.Group("/cart")
	cart.GET("", d.Cart.GetCart)
	cart.DELETE("", d.Cart.ClearCart)
	cart.POST("/items", d.Cart.AddItem)
	cart.PATCH("/items/:id", d.Cart.AdjustItem)
	cart.DELETE("/items/:id", d.Cart.RemoveItem)

	api.POST("/checkout", d.Checkout.Submit)
	api.GET("/checkout", d.Checkout.Status)

	me := api.Group("/me", RequireSession(d.Sessions))
	me.GET("", d.Customer.Profile)
	me.GET("/points", d.Customer.Points)
	me.GET("/dashboard", d.Customer.Dashboard)
	me.GET("/orders", d.Customer.Orders)
}
