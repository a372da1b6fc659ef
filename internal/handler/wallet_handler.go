package handler

import (
	"net/http"
	"strconv"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/middleware"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

type WalletHandler struct {
	uc *usecase.LedgerUsecase
}

func NewWalletHandler(uc *usecase.LedgerUsecase) *WalletHandler {
	return &WalletHandler{uc: uc}
}

type WalletOnboardRequest struct {
	OwnerType string `json:"owner_type"`
	OwnerID   int64  `json:"owner_id"`
}

type WalletAdjustRequest struct {
	Amount     int64  `json:"amount"`
	Reason     string `json:"reason"`
	GatewayRef string `json:"gateway_ref"`
}

func (h *WalletHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/wallets")
	g.Use(middleware.AuthJWT(cfg))

	g.GET("/me", h.myWallet)
	g.GET("/me/transactions", h.myTransactions)

	a := e.Group("/admin/wallets")
	a.Use(middleware.AuthJWT(cfg))
	a.Use(middleware.RequireRole("ADMIN"))

	a.POST("", h.onboard)
	a.POST("/:id/credit", h.credit)
	a.POST("/:id/debit", h.debit)
	a.GET("/:id/audit", h.audit)
}

// JWTロールからウォレットのowner種別を引く
func ownerTypeForRole(role string) (model.WalletOwnerType, bool) {
	switch role {
	case "CUSTOMER":
		return model.WalletOwnerCustomer, true
	case "RESTAURANT":
		return model.WalletOwnerRestaurant, true
	case "PARTNER":
		return model.WalletOwnerPartner, true
	}
	return "", false
}

func (h *WalletHandler) myWallet(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}
	role, _ := getRoleFromContext(c)
	ownerType, ok := ownerTypeForRole(role)
	if !ok {
		return c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden"})
	}

	out, err := h.uc.WalletByOwner(c.Request().Context(), ownerType, userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *WalletHandler) myTransactions(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}
	role, _ := getRoleFromContext(c)
	ownerType, ok := ownerTypeForRole(role)
	if !ok {
		return c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden"})
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

	w, err := h.uc.WalletByOwner(c.Request().Context(), ownerType, userID)
	if err != nil {
		return writeError(c, err)
	}

	items, total, err := h.uc.ListTransactions(c.Request().Context(), w.ID, page, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"items": items,
		"total": total,
	})
}

func (h *WalletHandler) onboard(c echo.Context) error {
	var req WalletOnboardRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.Onboard(c.Request().Context(), model.WalletOwnerType(req.OwnerType), req.OwnerID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *WalletHandler) credit(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	var req WalletAdjustRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if req.Amount <= 0 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "amount must be positive"})
	}

	out, err := h.uc.Credit(c.Request().Context(), usecase.LedgerEntryInput{
		WalletID:   id,
		Amount:     req.Amount,
		Reason:     req.Reason,
		GatewayRef: req.GatewayRef,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *WalletHandler) debit(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	var req WalletAdjustRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if req.Amount <= 0 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "amount must be positive"})
	}

	out, err := h.uc.Debit(c.Request().Context(), usecase.LedgerEntryInput{
		WalletID:   id,
		Amount:     req.Amount,
		Reason:     req.Reason,
		GatewayRef: req.GatewayRef,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// 残高と取引合計の突き合わせ
func (h *WalletHandler) audit(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	consistent, err := h.uc.Audit(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"consistent": consistent})
}
