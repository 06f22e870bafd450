package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/psyportal/portal-client/internal/core/domain"
)

const dateLayout = "2006-01-02"

type SessionHandler struct {
	sessions   Sessions
	therapists Therapists
}

func NewSessionHandler(sessions Sessions, therapists Therapists) *SessionHandler {
	return &SessionHandler{sessions: sessions, therapists: therapists}
}

type pageMeta struct {
	Page    int `json:"page,omitempty"`
	PerPage int `json:"per_page,omitempty"`
}

// List serves the caller's sessions as a bare array.
func (h *SessionHandler) List(c echo.Context) error {
	userID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var f domain.SessionFilters
	var status string
	err = echo.QueryParamsBinder(c).
		String("status", &status).
		Time("date_from", &f.DateFrom, dateLayout).
		Time("date_to", &f.DateTo, dateLayout).
		Int("page", &f.Page).
		Int("per_page", &f.PerPage).
		BindError()
	if err != nil {
		return badRequest(err)
	}
	f.Status = domain.SessionStatus(status)

	items := h.sessions.List(c.Request().Context(), userID, f)
	return c.JSON(http.StatusOK, envelope{
		Success: true,
		Data:    items,
		Meta:    pageMeta{Page: f.Page, PerPage: f.PerPage},
	})
}

func (h *SessionHandler) Book(c echo.Context) error {
	userID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}
	var req domain.Booking
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(err)
	}

	therapist, err := h.therapists.Get(c.Request().Context(), req.TherapistID)
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, h.sessions.Book(c.Request().Context(), userID, therapist, req))
}

func (h *SessionHandler) Cancel(c echo.Context) error {
	userID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req domain.Cancellation
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	s, err := h.sessions.Cancel(c.Request().Context(), userID, id, req.Reason)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, s)
}

func (h *SessionHandler) Rate(c echo.Context) error {
	userID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req domain.Rating
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(err)
	}

	r, err := h.sessions.Rate(c.Request().Context(), userID, id, req)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, r)
}
