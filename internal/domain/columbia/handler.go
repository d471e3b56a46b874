package columbia

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/reconcile-care/liaison/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/cases/:caseId/columbia")
	g.GET("/questions", h.Questions)
	g.POST("", h.Submit)
}

// Questions serves the screener items so clients render the exact text
// the scoring expects.
func (h *Handler) Questions(c echo.Context) error {
	return c.JSON(http.StatusOK, Questions())
}

type submitRequest struct {
	ClientID string  `json:"client_id"`
	Answers  Answers `json:"answers"`
}

func (h *Handler) Submit(c echo.Context) error {
	caseID, err := uuid.Parse(c.Param("caseId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid case id")
	}

	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	sub := Submission{CaseID: caseID, Answers: req.Answers}
	if req.ClientID != "" {
		clientID, err := uuid.Parse(req.ClientID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid client id")
		}
		sub.ClientID = clientID
	}

	outcome, err := h.svc.Submit(c.Request().Context(), auth.ActorFromContext(c.Request().Context()), sub)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, outcome)
}
