package handler

import (
	"net/http"
	"strconv"

	"app/internal/config"
	"app/internal/middleware"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 配達パートナーの現在地・稼働状態と配車
type PartnerHandler struct {
	uc *usecase.DispatchUsecase
}

func NewPartnerHandler(uc *usecase.DispatchUsecase) *PartnerHandler {
	return &PartnerHandler{uc: uc}
}

type LocationUpdateRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type AvailabilityRequest struct {
	Online bool `json:"online"`
}

func (h *PartnerHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/partners")
	g.Use(middleware.AuthJWT(cfg))

	g.PUT("/me/location", h.updateLocation, middleware.RequireRole("PARTNER"))
	g.PUT("/me/availability", h.setAvailability, middleware.RequireRole("PARTNER"))

	d := e.Group("/dispatch")
	d.Use(middleware.AuthJWT(cfg))
	d.Use(middleware.RequireRole("ADMIN"))

	d.POST("/orders/:id/allocate", h.allocate)
	d.POST("/pending", h.allocatePending)
}

func (h *PartnerHandler) updateLocation(c echo.Context) error {
	partnerID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req LocationUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	if err := h.uc.UpdateLocation(c.Request().Context(), partnerID, req.Lat, req.Lng); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "location updated"})
}

func (h *PartnerHandler) setAvailability(c echo.Context) error {
	partnerID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req AvailabilityRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	if err := h.uc.SetOnline(c.Request().Context(), partnerID, req.Online); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "availability updated"})
}

func (h *PartnerHandler) allocate(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.uc.Allocate(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PartnerHandler) allocatePending(c echo.Context) error {
	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
		}
		limit = l
	}

	assigned, err := h.uc.AllocatePending(c.Request().Context(), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int{"assigned": assigned})
}
