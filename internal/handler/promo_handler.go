package handler

import (
	"net/http"
	"strconv"

	"app/internal/config"
	"app/internal/middleware"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

// プロモ検証とポイント残高
type PromoHandler struct {
	uc *usecase.PromoUsecase
}

func NewPromoHandler(uc *usecase.PromoUsecase) *PromoHandler {
	return &PromoHandler{uc: uc}
}

type PromoPreviewRequest struct {
	Code     string `json:"code"`
	Subtotal int64  `json:"subtotal"`
}

func (h *PromoHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/promos")
	g.Use(middleware.AuthJWT(cfg))
	g.Use(middleware.RequireRole("CUSTOMER"))

	g.POST("/preview", h.preview)

	l := e.Group("/loyalty")
	l.Use(middleware.AuthJWT(cfg))

	l.GET("/me", h.balance, middleware.RequireRole("CUSTOMER"))
	l.GET("/me/history", h.history, middleware.RequireRole("CUSTOMER"))
	l.POST("/sweep", h.sweep, middleware.RequireRole("ADMIN"))
}

// 注文前に割引額を見積もる。確定は注文作成時
func (h *PromoHandler) preview(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req PromoPreviewRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if req.Code == "" || req.Subtotal <= 0 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "code and subtotal are required"})
	}

	out, err := h.uc.ApplyPromo(c.Request().Context(), req.Code, userID, req.Subtotal)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PromoHandler) balance(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	bal, err := h.uc.PointsBalance(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int64{"points": bal})
}

func (h *PromoHandler) history(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
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
	limit := 20
	if v := c.QueryParam("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
		}
		limit = l
	}

	items, total, err := h.uc.ListLoyalty(c.Request().Context(), userID, page, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"items": items,
		"total": total,
	})
}

func (h *PromoHandler) sweep(c echo.Context) error {
	batch := 100
	if v := c.QueryParam("batch"); v != "" {
		b, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid batch"})
		}
		batch = b
	}

	swept, err := h.uc.SweepExpired(c.Request().Context(), batch)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int{"swept": swept})
}
