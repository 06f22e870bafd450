package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/psyportal/portal-client/internal/core/domain"
)

type TherapistHandler struct {
	therapists Therapists
}

func NewTherapistHandler(therapists Therapists) *TherapistHandler {
	return &TherapistHandler{therapists: therapists}
}

// List serves GET /therapists. max_price is in whole currency units.
func (h *TherapistHandler) List(c echo.Context) error {
	var f domain.TherapistFilters
	err := echo.QueryParamsBinder(c).
		String("specialization", &f.Specialization).
		String("approach", &f.Approach).
		Int("min_experience", &f.MinExperience).
		Int64("max_price", &f.MaxPrice).
		Bool("online_only", &f.OnlineOnly).
		Int("page", &f.Page).
		Int("per_page", &f.PerPage).
		BindError()
	if err != nil {
		return badRequest(err)
	}
	return ok(c, http.StatusOK, h.therapists.List(c.Request().Context(), f))
}

func (h *TherapistHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	t, err := h.therapists.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, t)
}

func (h *TherapistHandler) Stats(c echo.Context) error {
	return ok(c, http.StatusOK, h.therapists.Stats(c.Request().Context()))
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}
