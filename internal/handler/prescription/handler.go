package prescription

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/rx-scheduler/internal/handler"
	"github.com/jwalitptl/rx-scheduler/internal/middleware"
	"github.com/jwalitptl/rx-scheduler/internal/model"
	"github.com/jwalitptl/rx-scheduler/internal/service/prescription"
	"github.com/jwalitptl/rx-scheduler/internal/service/refill"
	"github.com/jwalitptl/rx-scheduler/pkg/httputil"
)

type Handler struct {
	service *prescription.Service
	clock   handler.Clock
}

func NewHandler(service *prescription.Service, clock handler.Clock) *Handler {
	return &Handler{service: service, clock: clock}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/prescriptions", h.Create)
	r.POST("/prescriptions/:id/deactivate", h.Deactivate)
	r.GET("/patients/:id/prescriptions/active", h.ListActive)
	r.POST("/plans", h.Preview)
}

func (h *Handler) Create(c *gin.Context) {
	actor, err := handler.Actor(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	var req model.CreatePrescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(middleware.BindingError(err))
		return
	}
	endDate, _ := model.ParseDate(req.EndDate)

	p, err := h.service.Create(c.Request.Context(), actor, prescription.CreateInput{
		PatientID:    req.PatientID,
		MedicationID: req.MedicationID,
		DailyDosage:  req.DailyDosage,
		Instructions: req.Instructions,
		EndDate:      endDate,
	}, h.clock.Today())
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithCreated(c, p)
}

func (h *Handler) Deactivate(c *gin.Context) {
	actor, err := handler.Actor(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	id, err := handler.ParamID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}

	p, err := h.service.Deactivate(c.Request.Context(), actor, id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, p)
}

func (h *Handler) ListActive(c *gin.Context) {
	actor, err := handler.Actor(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	patientID, err := handler.ParamID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}

	prescriptions, err := h.service.ListActiveForPatient(c.Request.Context(), actor, patientID, h.clock.Today())
	if err != nil {
		_ = c.Error(err)
		return
	}
	if prescriptions == nil {
		prescriptions = []*model.Prescription{}
	}
	httputil.RespondWithSuccess(c, prescriptions)
}

type planResponse struct {
	MedicationID string          `json:"medication_id"`
	StartDate    model.Date      `json:"start_date"`
	EndDate      model.Date      `json:"end_date"`
	Windows      []refill.Window `json:"windows"`
}

// Preview computes a refill plan without storing anything.
func (h *Handler) Preview(c *gin.Context) {
	if _, err := handler.Actor(c); err != nil {
		_ = c.Error(err)
		return
	}

	var req model.PlanPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(middleware.BindingError(err))
		return
	}
	start, _ := model.ParseDate(req.StartDate)
	end, _ := model.ParseDate(req.EndDate)

	windows, err := h.service.Preview(c.Request.Context(), req.MedicationID, req.DailyDosage, start, end)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, planResponse{
		MedicationID: req.MedicationID.String(),
		StartDate:    start,
		EndDate:      end,
		Windows:      windows,
	})
}
