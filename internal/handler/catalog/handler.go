package catalog

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/booking-api/internal/handler"
	"github.com/jwalitptl/booking-api/internal/middleware"
	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/service/catalog"
	"github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/httputil"
)

type Handler struct {
	service *catalog.Service
}

func NewHandler(service *catalog.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/businesses", h.CreateBusiness)
	r.GET("/businesses/:id/services", h.ListServices)

	services := r.Group("/services")
	{
		services.POST("", h.CreateService)
		services.GET("/:id", h.GetService)
		services.GET("/:id/slots", h.ListSlots)
		services.POST("/:id/slots", h.AddSlots)
		services.DELETE("/:id/slots/:slotId", h.RemoveSlot)
		services.PUT("/:id/addons", h.SetAddOns)
	}
}

func (h *Handler) CreateBusiness(c *gin.Context) {
	var req model.CreateBusinessRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	business, err := h.service.CreateBusiness(c.Request.Context(), middleware.CallerID(c), req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithStatus(c, http.StatusCreated, business)
}

func (h *Handler) CreateService(c *gin.Context) {
	var req model.CreateServiceRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	service, err := h.service.CreateService(c.Request.Context(), middleware.CallerID(c), req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithStatus(c, http.StatusCreated, service)
}

func (h *Handler) ListServices(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	services, err := h.service.ListServices(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, services)
}

func (h *Handler) GetService(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	service, err := h.service.GetService(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, service)
}

// ListSlots returns the free slots on ?date=YYYY-MM-DD.
func (h *Handler) ListSlots(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	date, ok := handler.QueryDate(c, "date")
	if !ok {
		return
	}
	if date == nil {
		httputil.RespondWithError(c, errors.Validation("date is required", nil))
		return
	}

	slots, err := h.service.ListAvailableSlots(c.Request.Context(), id, *date)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, slots)
}

type addSlotsRequest struct {
	Slots []model.SlotInput `json:"slots"`
}

func (h *Handler) AddSlots(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req addSlotsRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	slots, err := h.service.AddSlots(c.Request.Context(), middleware.CallerID(c), id, req.Slots)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithStatus(c, http.StatusCreated, slots)
}

func (h *Handler) RemoveSlot(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	slotID, ok := handler.ParamID(c, "slotId")
	if !ok {
		return
	}

	if err := h.service.RemoveSlot(c.Request.Context(), middleware.CallerID(c), id, slotID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type setAddOnsRequest struct {
	AddOns []model.AddOnInput `json:"add_ons"`
}

func (h *Handler) SetAddOns(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req setAddOnsRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	service, err := h.service.SetAddOns(c.Request.Context(), middleware.CallerID(c), id, req.AddOns)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, service)
}
