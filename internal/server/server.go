package server

import (
	"app/internal/config"
	"app/internal/handler"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

type Handlers struct {
	Order   *handler.OrderHandler
	Partner *handler.PartnerHandler
	Wallet  *handler.WalletHandler
	Billing *handler.BillingHandler
	Promo   *handler.PromoHandler
}

func New(cfg config.Config, h Handlers) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	RegisterRoutes(e, cfg, h)
	return e
}

func Start(e *echo.Echo, port string) error {
	return e.Start(":" + port)
}
