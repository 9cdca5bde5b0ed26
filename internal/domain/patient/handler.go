package patient

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicai/visitflow/internal/domain/visit"
	"github.com/clinicai/visitflow/internal/platform/auth"
	"github.com/clinicai/visitflow/pkg/pagination"
)

type Handler struct {
	svc    *Service
	visits *visit.Service
}

func NewHandler(svc *Service, visits *visit.Service) *Handler {
	return &Handler{svc: svc, visits: visits}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole("admin", "physician", "nurse", "registrar"))
	readGroup.GET("/patients", h.ListPatients)
	readGroup.GET("/patients/:id", h.GetPatient)

	writeGroup := api.Group("", auth.RequireRole("admin", "registrar"))
	writeGroup.POST("/patients", h.RegisterPatient)
}

type registerRequest struct {
	Name     string `json:"name"`
	Mobile   string `json:"mobile"`
	Age      int    `json:"age"`
	Language string `json:"language"`
}

type registerResponse struct {
	Patient *Patient     `json:"patient"`
	Visit   *visit.Visit `json:"visit"`
	Message string       `json:"message"`
}

// RegisterPatient creates (or finds) the patient and opens a fresh visit at
// the registration stage. Intake starts with a separate call.
func (h *Handler) RegisterPatient(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, created, err := h.svc.Register(c.Request().Context(), &Patient{
		Name:     req.Name,
		Mobile:   req.Mobile,
		Age:      req.Age,
		Language: req.Language,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	v, err := h.visits.CreateVisit(c.Request().Context(), p.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	msg := "Welcome back, visit created"
	status := http.StatusOK
	if created {
		msg = "Patient registered, visit created"
		status = http.StatusCreated
	}
	return c.JSON(status, registerResponse{Patient: p, Visit: v, Message: msg})
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	patients, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(patients, total, pg.Limit, pg.Offset))
}
