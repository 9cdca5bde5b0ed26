package visit

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicai/visitflow/internal/platform/auth"
	"github.com/clinicai/visitflow/internal/platform/dialogue"
	"github.com/clinicai/visitflow/internal/platform/gateway"
	"github.com/clinicai/visitflow/internal/platform/telemetry"
	"github.com/clinicai/visitflow/pkg/pagination"
)

type Handler struct {
	svc     *Service
	metrics *telemetry.Metrics
}

func NewHandler(svc *Service, metrics *telemetry.Metrics) *Handler {
	if metrics == nil {
		metrics = telemetry.Default
	}
	return &Handler{svc: svc, metrics: metrics}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole("admin", "physician", "nurse", "registrar"))
	readGroup.GET("/patients/:patientId/visits", h.ListVisits)
	readGroup.GET("/visits/:id", h.GetVisit)
	readGroup.GET("/patients/:patientId/visits/:id/resume", h.Resume)

	writeGroup := api.Group("", auth.RequireRole("admin", "physician", "nurse", "registrar"))
	writeGroup.POST("/patients/:patientId/visits", h.CreateVisit)
	writeGroup.POST("/visits/:id/intake/start", h.StartIntake)
	writeGroup.POST("/visits/:id/intake/answers", h.SubmitAnswer)
	writeGroup.PATCH("/visits/:id/intake/answers/:index", h.EditAnswer)
	writeGroup.POST("/visits/:id/summaries/previsit", h.GeneratePreVisit)
	writeGroup.POST("/visits/:id/vitals/begin", h.BeginVitals)
	writeGroup.PUT("/visits/:id/vitals", h.RecordVitals)
	writeGroup.POST("/visits/:id/notes/soap/begin", h.BeginSOAP)
	writeGroup.POST("/visits/:id/notes/soap", h.GenerateSOAP)
	writeGroup.POST("/visits/:id/summaries/postvisit", h.GeneratePostVisit)
	writeGroup.POST("/visits/:id/abandon", h.Abandon)
	writeGroup.POST("/transcripts/normalize", h.NormalizeTranscript)
}

// httpError maps domain errors onto status codes.
func httpError(err error) error {
	switch {
	case IsValidation(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case IsStaleState(err) || IsGenerationConflict(err):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case gateway.IsConnectivity(err):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	case err == ErrNotFound:
		return echo.NewHTTPError(http.StatusNotFound, "visit not found")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) CreateVisit(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	v, err := h.svc.CreateVisit(c.Request().Context(), patientID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) GetVisit(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	v, err := h.svc.GetVisit(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) ListVisits(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	pg := pagination.FromContext(c)
	visits, total, err := h.svc.ListVisits(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(visits, total, pg.Limit, pg.Offset))
}

func (h *Handler) StartIntake(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		Symptoms []string `json:"symptoms"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.StartIntake(c.Request().Context(), id, body.Symptoms)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) SubmitAnswer(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		Answer string `json:"answer"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.SubmitAnswer(c.Request().Context(), id, body.Answer)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) EditAnswer(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	// The wire index is 1-based to match the interview transcript shown
	// to users; internally turns are 0-based.
	wireIndex, err := parseIndex(c.Param("index"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid question index")
	}
	var body struct {
		NewAnswer string `json:"new_answer"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	turn, err := h.svc.EditAnswer(c.Request().Context(), id, wireIndex-1, body.NewAnswer)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, turn)
}

func (h *Handler) GeneratePreVisit(c echo.Context) error {
	return h.generate(c, ArtifactPreVisit)
}

func (h *Handler) GenerateSOAP(c echo.Context) error {
	return h.generate(c, ArtifactSOAP)
}

func (h *Handler) GeneratePostVisit(c echo.Context) error {
	return h.generate(c, ArtifactPostVisit)
}

func (h *Handler) generate(c echo.Context, kind ArtifactKind) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	v, err := h.svc.GenerateArtifact(c.Request().Context(), id, kind)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) BeginVitals(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	v, err := h.svc.BeginVitals(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) RecordVitals(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var vitals Vitals
	if err := c.Bind(&vitals); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, err := h.svc.RecordVitals(c.Request().Context(), id, vitals)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) BeginSOAP(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	v, err := h.svc.BeginSOAP(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Resume(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	state, err := h.svc.Resume(c.Request().Context(), id, patientID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, state)
}

func (h *Handler) Abandon(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	h.svc.Abandon(id)
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) NormalizeTranscript(c echo.Context) error {
	var body struct {
		Raw string `json:"raw"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	turns, strategy := dialogue.NormalizeWithStrategy(body.Raw)
	h.metrics.NormalizerStrategy.WithLabelValues(string(strategy)).Inc()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"turns":    turns,
		"strategy": strategy,
	})
}

func parseIndex(s string) (int, error) {
	n := atoi(s)
	if n < 1 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "index must be >= 1")
	}
	return n, nil
}
