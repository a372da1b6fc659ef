package handler

import (
	"net/http"
	"strconv"
	"time"

	"app/internal/config"
	"app/internal/middleware"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 店舗サブスクリプション請求
type BillingHandler struct {
	uc *usecase.BillingUsecase
}

func NewBillingHandler(uc *usecase.BillingUsecase) *BillingHandler {
	return &BillingHandler{uc: uc}
}

type SubscriptionPaidRequest struct {
	Success bool `json:"success"`
}

func (h *BillingHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/restaurants/me")
	g.Use(middleware.AuthJWT(cfg))
	g.Use(middleware.RequireRole("RESTAURANT"))

	g.GET("/subscriptions", h.listSubscriptions)
	g.GET("/billing/quote", h.quote)

	a := e.Group("/admin/billing")
	a.Use(middleware.AuthJWT(cfg))
	a.Use(middleware.RequireRole("ADMIN"))

	a.POST("/run", h.runDaily)
	a.POST("/subscriptions/:id/paid", h.markPaid)
}

func (h *BillingHandler) listSubscriptions(c echo.Context) error {
	restaurantID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	page := 1
	if v := c.QueryParam("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid page"})
		}
		page = p
	}
	limit := 31
	if v := c.QueryParam("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
		}
		limit = l
	}

	items, total, err := h.uc.ListSubscriptions(c.Request().Context(), restaurantID, page, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"items": items,
		"total": total,
	})
}

// 任意期間の見積（from/toはYYYY-MM-DD）
func (h *BillingHandler) quote(c echo.Context) error {
	restaurantID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	from, err := time.Parse("2006-01-02", c.QueryParam("from"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid from"})
	}
	to, err := time.Parse("2006-01-02", c.QueryParam("to"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid to"})
	}

	tier, count, err := h.uc.Quote(c.Request().Context(), restaurantID, from, to)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"tier":            tier,
		"delivered_count": count,
	})
}

func (h *BillingHandler) runDaily(c echo.Context) error {
	day := time.Now().AddDate(0, 0, -1) // 通常は前日分を締める
	if v := c.QueryParam("date"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid date"})
		}
		day = d
	}

	created, err := h.uc.RunDaily(c.Request().Context(), day)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int{"created": created})
}

func (h *BillingHandler) markPaid(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	var req SubscriptionPaidRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	if err := h.uc.MarkPaid(c.Request().Context(), id, req.Success); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "subscription updated"})
}
