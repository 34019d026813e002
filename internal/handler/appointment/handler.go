package appointment

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/rx-scheduler/internal/handler"
	"github.com/jwalitptl/rx-scheduler/internal/middleware"
	"github.com/jwalitptl/rx-scheduler/internal/model"
	"github.com/jwalitptl/rx-scheduler/internal/service/appointment"
	apperrors "github.com/jwalitptl/rx-scheduler/pkg/errors"
	"github.com/jwalitptl/rx-scheduler/pkg/httputil"
)

type Handler struct {
	service *appointment.Service
	clock   handler.Clock
}

func NewHandler(service *appointment.Service, clock handler.Clock) *Handler {
	return &Handler{service: service, clock: clock}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/doctors/:id/slots", h.FreeSlots)
	r.GET("/doctors/:id/agenda", h.Agenda)
	r.GET("/patients/:id/appointments/upcoming", h.Upcoming)

	appointments := r.Group("/appointments")
	{
		appointments.POST("", h.Book)
		appointments.GET("", h.List)
		appointments.POST("/:id/complete", h.Complete)
		appointments.POST("/:id/absent", h.MarkAbsent)
		appointments.POST("/:id/cancel", h.Cancel)
	}
}

type slotsResponse struct {
	DoctorID string            `json:"doctor_id"`
	Date     model.Date        `json:"date"`
	Slots    []model.TimeOfDay `json:"slots"`
}

func (h *Handler) FreeSlots(c *gin.Context) {
	doctorID, err := handler.ParamID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}
	date, err := requiredDate(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	slots, err := h.service.FreeSlots(c.Request.Context(), doctorID, date)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if slots == nil {
		slots = []model.TimeOfDay{}
	}
	httputil.RespondWithSuccess(c, slotsResponse{DoctorID: doctorID.String(), Date: date, Slots: slots})
}

func (h *Handler) Agenda(c *gin.Context) {
	actor, err := handler.Actor(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	doctorID, err := handler.ParamID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}
	date, err := requiredDate(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	appointments, err := h.service.Agenda(c.Request.Context(), actor, doctorID, date)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, nonNil(appointments))
}

func (h *Handler) Upcoming(c *gin.Context) {
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

	appointments, err := h.service.UpcomingForPatient(c.Request.Context(), actor, patientID, h.clock())
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, nonNil(appointments))
}

// Book reserves a slot. Patients may omit patient_id; administrators must
// name the patient.
func (h *Handler) Book(c *gin.Context) {
	actor, err := handler.Actor(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	var req model.BookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(middleware.BindingError(err))
		return
	}

	patientID := actor.ID
	if req.PatientID != nil {
		patientID = *req.PatientID
	} else if actor.Role != model.RolePatient {
		_ = c.Error(apperrors.Validation("patient_id", "patient_id is required"))
		return
	}

	// Both were checked by the binding validators.
	date, _ := model.ParseDate(req.Date)
	start, _ := model.ParseTimeOfDay(req.Time)

	apt, err := h.service.Book(c.Request.Context(), actor, patientID, date, start)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithCreated(c, apt)
}

func (h *Handler) List(c *gin.Context) {
	actor, err := handler.Actor(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	var filters model.AppointmentFilters
	if filters.Date, err = requiredDate(c); err != nil {
		_ = c.Error(err)
		return
	}
	if filters.DoctorID, err = handler.QueryID(c, "doctor_id"); err != nil {
		_ = c.Error(err)
		return
	}
	if filters.PatientID, err = handler.QueryID(c, "patient_id"); err != nil {
		_ = c.Error(err)
		return
	}

	appointments, err := h.service.List(c.Request.Context(), actor, &filters)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, nonNil(appointments))
}

func (h *Handler) Complete(c *gin.Context)   { h.transition(c, h.service.Complete) }
func (h *Handler) MarkAbsent(c *gin.Context) { h.transition(c, h.service.MarkAbsent) }
func (h *Handler) Cancel(c *gin.Context)     { h.transition(c, h.service.Cancel) }

type transitionFunc func(ctx context.Context, by model.Actor, id uuid.UUID) (*model.Appointment, error)

func (h *Handler) transition(c *gin.Context, fn transitionFunc) {
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

	apt, err := fn(c.Request.Context(), actor, id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, apt)
}

func requiredDate(c *gin.Context) (model.Date, error) {
	date, err := handler.QueryDate(c, "date")
	if err != nil {
		return model.Date{}, err
	}
	if date.IsZero() {
		return model.Date{}, apperrors.Validation("date", "date is required")
	}
	return date, nil
}

func nonNil(appointments []*model.Appointment) []*model.Appointment {
	if appointments == nil {
		return []*model.Appointment{}
	}
	return appointments
}
