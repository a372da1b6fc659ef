package handler

import (
	"errors"
	"net/http"

	repo "app/internal/repository"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

// usecaseのsentinelエラーをHTTPステータスへ写す。未知のものは500
func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, usecase.ErrOrderNotFound),
		errors.Is(err, usecase.ErrPromoNotFound),
		errors.Is(err, repo.ErrNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})

	case errors.Is(err, usecase.ErrInvalidStateTransition),
		errors.Is(err, usecase.ErrPaymentVerificationFailed):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})

	case errors.Is(err, usecase.ErrInsufficientBalance),
		errors.Is(err, usecase.ErrInsufficientPoints),
		errors.Is(err, usecase.ErrPromoExpired),
		errors.Is(err, usecase.ErrPromoMinOrderNotMet),
		errors.Is(err, usecase.ErrPromoUsageLimitReached):
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
	}

	//500
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

//middleware.AuthJWT が c.Set("user_id", int64) した値を取り出す

func getUserIDFromContext(c echo.Context) (int64, bool) {
	v := c.Get("user_id")
	if v == nil {
		return 0, false
	}

	id, ok := v.(int64)
	if !ok {
		return 0, false
	}

	return id, true
}

func getRoleFromContext(c echo.Context) (string, bool) {
	v := c.Get("user_role")
	if v == nil {
		return "", false
	}
	role, ok := v.(string)
	return role, ok
}
