package server

import (
	"net/http"

	"app/internal/config"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo, cfg config.Config, h Handlers) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	h.Order.RegisterRoutes(e, cfg)
	h.Partner.RegisterRoutes(e, cfg)
	h.Wallet.RegisterRoutes(e, cfg)
	h.Billing.RegisterRoutes(e, cfg)
	h.Promo.RegisterRoutes(e, cfg)
}
