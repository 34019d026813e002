package receipt

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/rx-scheduler/internal/handler"
	"github.com/jwalitptl/rx-scheduler/internal/model"
	"github.com/jwalitptl/rx-scheduler/internal/service/receipt"
	"github.com/jwalitptl/rx-scheduler/pkg/httputil"
)

type Handler struct {
	service *receipt.Service
	clock   handler.Clock
}

func NewHandler(service *receipt.Service, clock handler.Clock) *Handler {
	return &Handler{service: service, clock: clock}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/patients/:id/receipts/pending", h.Pending)
	r.GET("/receipts", h.InForce)
	r.POST("/receipts/:id/serve", h.Serve)
}

func (h *Handler) Pending(c *gin.Context) {
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

	receipts, err := h.service.PendingForPatient(c.Request.Context(), actor, patientID, h.clock.Today())
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, nonNil(receipts))
}

// InForce lists servable receipts by health card number for pharmacies.
func (h *Handler) InForce(c *gin.Context) {
	actor, err := handler.Actor(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	receipts, err := h.service.InForceByHealthCard(c.Request.Context(), actor, c.Query("health_card"), h.clock.Today())
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, nonNil(receipts))
}

func (h *Handler) Serve(c *gin.Context) {
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

	r, err := h.service.Serve(c.Request.Context(), actor, id, h.clock.Today())
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, r)
}

func nonNil(receipts []*model.PendingReceipt) []*model.PendingReceipt {
	if receipts == nil {
		return []*model.PendingReceipt{}
	}
	return receipts
}
