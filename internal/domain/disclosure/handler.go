package disclosure

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
	g := api.Group("/cases/:caseId/disclosures")
	g.GET("", h.ListSelected)
	g.PUT("", h.Save)
	g.POST("/discard", h.Discard)
	g.GET("/consent", h.CheckConsent)
	g.PUT("/consent", h.UpdateConsent)
	g.POST("/screening", h.SaveScreening)
}

type saveRequest struct {
	Category        string `json:"category"`
	ItemCode        string `json:"item_code"`
	Selected        bool   `json:"selected"`
	FreeText        string `json:"free_text"`
	ConsentAttorney string `json:"consent_attorney"`
	ConsentProvider string `json:"consent_provider"`
	OriginSection   string `json:"origin_section"`
}

func (h *Handler) Save(c echo.Context) error {
	caseID, err := uuid.Parse(c.Param("caseId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid case id")
	}

	var req saveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	outcome, err := h.svc.SaveDisclosure(c.Request().Context(), SaveParams{
		CaseID:          caseID,
		ActorID:         auth.ActorFromContext(c.Request().Context()),
		Category:        req.Category,
		ItemCode:        req.ItemCode,
		Selected:        req.Selected,
		FreeText:        req.FreeText,
		ConsentAttorney: ConsentChoice(req.ConsentAttorney),
		ConsentProvider: ConsentChoice(req.ConsentProvider),
		OriginSection:   req.OriginSection,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, outcome)
}

func (h *Handler) ListSelected(c echo.Context) error {
	caseID, err := uuid.Parse(c.Param("caseId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid case id")
	}

	items, err := h.svc.ListSelected(c.Request().Context(), caseID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Disclosure{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Discard(c echo.Context) error {
	caseID, err := uuid.Parse(c.Param("caseId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid case id")
	}

	count, err := h.svc.DiscardSection(c.Request().Context(), caseID, auth.ActorFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"discarded": count})
}

func (h *Handler) CheckConsent(c echo.Context) error {
	caseID, err := uuid.Parse(c.Param("caseId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid case id")
	}

	status, err := h.svc.CheckConsentRequired(c.Request().Context(), caseID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, status)
}

type consentRequest struct {
	ConsentAttorney string `json:"consent_attorney"`
	ConsentProvider string `json:"consent_provider"`
}

func (h *Handler) UpdateConsent(c echo.Context) error {
	caseID, err := uuid.Parse(c.Param("caseId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid case id")
	}

	var req consentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	err = h.svc.UpdateAllConsent(c.Request().Context(), caseID, auth.ActorFromContext(c.Request().Context()),
		ConsentChoice(req.ConsentAttorney), ConsentChoice(req.ConsentProvider))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

type screeningRequest struct {
	ItemCode string `json:"item_code"`
	Response string `json:"response"`
}

func (h *Handler) SaveScreening(c echo.Context) error {
	caseID, err := uuid.Parse(c.Param("caseId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid case id")
	}

	var req screeningRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	outcome, err := h.svc.SaveScreeningItem(c.Request().Context(), caseID,
		auth.ActorFromContext(c.Request().Context()), req.ItemCode, req.Response)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, outcome)
}
