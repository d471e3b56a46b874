package diary

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/reconcile-care/liaison/internal/platform/assistant"
	"github.com/reconcile-care/liaison/internal/platform/auth"
	"github.com/reconcile-care/liaison/pkg/pagination"
)

type Handler struct {
	svc *Service
	ai  *Assistant
}

func NewHandler(svc *Service, ai *Assistant) *Handler {
	return &Handler{svc: svc, ai: ai}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/diary")
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/status", h.Transition)
	g.POST("/assistant/categorize", h.Categorize)
	g.POST("/assistant/suggest-tasks", h.SuggestTasks)
	g.POST("/assistant/summary", h.Summary)
}

type entryRequest struct {
	CaseID                string                 `json:"case_id"`
	Title                 string                 `json:"title"`
	Description           string                 `json:"description"`
	EntryType             string                 `json:"entry_type"`
	ScheduledDate         string                 `json:"scheduled_date"`
	ScheduledTime         string                 `json:"scheduled_time"`
	Location              string                 `json:"location"`
	Priority              string                 `json:"priority"`
	ReminderEnabled       bool                   `json:"reminder_enabled"`
	ReminderMinutesBefore int                    `json:"reminder_minutes_before"`
	SharedWithSupervisor  bool                   `json:"shared_with_supervisor"`
	Metadata              map[string]interface{} `json:"metadata"`
}

func (r *entryRequest) toEntry(rnID uuid.UUID) (*Entry, error) {
	e := &Entry{
		RNID:                  rnID,
		Title:                 r.Title,
		Description:           r.Description,
		EntryType:             r.EntryType,
		ScheduledDate:         r.ScheduledDate,
		ScheduledTime:         r.ScheduledTime,
		Location:              r.Location,
		Priority:              r.Priority,
		ReminderEnabled:       r.ReminderEnabled,
		ReminderMinutesBefore: r.ReminderMinutesBefore,
		SharedWithSupervisor:  r.SharedWithSupervisor,
		Metadata:              r.Metadata,
	}
	if r.CaseID != "" {
		caseID, err := uuid.Parse(r.CaseID)
		if err != nil {
			return nil, errors.New("invalid case id")
		}
		e.CaseID = &caseID
	}
	return e, nil
}

func (h *Handler) Create(c echo.Context) error {
	var req entryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e, err := req.toEntry(auth.ActorFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Create(c.Request().Context(), e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid entry id")
	}
	e, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "entry not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) List(c echo.Context) error {
	p := pagination.FromContext(c)
	f := Filter{
		Status:   c.QueryParam("status"),
		Priority: c.QueryParam("priority"),
		Limit:    p.Limit,
		Offset:   p.Offset,
	}
	if raw := c.QueryParam("case_id"); raw != "" {
		caseID, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid case id")
		}
		f.CaseID = caseID
	}
	if raw := c.QueryParam("rn_id"); raw != "" {
		rnID, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid rn id")
		}
		f.RNID = rnID
	} else {
		f.RNID = auth.ActorFromContext(c.Request().Context())
	}

	entries, total, err := h.svc.List(c.Request().Context(), f)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(entries, total, p.Limit, p.Offset))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid entry id")
	}
	existing, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "entry not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var req entryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e, err := req.toEntry(existing.RNID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e.ID = id
	e.CompletionStatus = existing.CompletionStatus
	e.CompletedAt = existing.CompletedAt

	if err := h.svc.Update(c.Request().Context(), e); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "entry not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid entry id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "entry not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

type transitionRequest struct {
	Status string `json:"status"`
}

func (h *Handler) Transition(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid entry id")
	}
	var req transitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e, err := h.svc.Transition(c.Request().Context(), id, req.Status)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "entry not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) Categorize(c echo.Context) error {
	var req entryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e, err := req.toEntry(auth.ActorFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cat, err := h.ai.Categorize(c.Request().Context(), e)
	if err != nil {
		if errors.Is(err, assistant.ErrUnavailable) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "assistant not configured")
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, cat)
}

func (h *Handler) SuggestTasks(c echo.Context) error {
	actor := auth.ActorFromContext(c.Request().Context())
	suggestions, err := h.ai.SuggestTasks(c.Request().Context(), actor)
	if err != nil {
		if errors.Is(err, assistant.ErrUnavailable) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "assistant not configured")
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"suggestions": suggestions})
}

type summaryRequest struct {
	Query string `json:"query"`
}

func (h *Handler) Summary(c echo.Context) error {
	var req summaryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.ActorFromContext(c.Request().Context())
	summary, err := h.ai.Summarize(c.Request().Context(), actor, req.Query)
	if err != nil {
		if errors.Is(err, assistant.ErrUnavailable) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "assistant not configured")
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"summary": summary})
}
