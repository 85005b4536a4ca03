package booking

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/handler"
	"github.com/jwalitptl/booking-api/internal/middleware"
	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/service/booking"
	"github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/httputil"
)

type Handler struct {
	service *booking.Service
}

func NewHandler(service *booking.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	bookings := r.Group("/bookings")
	{
		bookings.POST("", h.CreateBooking)
		bookings.GET("", h.ListBookings)
		bookings.GET("/:id", h.GetBooking)
		bookings.PATCH("/:id/status", h.UpdateStatus)
		bookings.PUT("/:id/reschedule", h.Reschedule)
		bookings.POST("/:id/deposit", h.RecordDeposit)
		bookings.DELETE("/:id", h.DeleteBooking)
	}
}

func (h *Handler) CreateBooking(c *gin.Context) {
	var req model.CreateBookingRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	b, err := h.service.Create(c.Request.Context(), middleware.CallerID(c), req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithStatus(c, http.StatusCreated, b)
}

func (h *Handler) GetBooking(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	view, err := h.service.Get(c.Request.Context(), middleware.CallerID(c), id, booking.ParseExpand(c.Query("expand")))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, view)
}

// ListBookings accepts business_id, user_id, service_id, staff_id, status
// (comma separated), from, to and expand.
func (h *Handler) ListBookings(c *gin.Context) {
	var filter model.BookingFilter

	for name, dst := range map[string]**uuid.UUID{
		"business_id": &filter.BusinessID,
		"user_id":     &filter.UserID,
		"service_id":  &filter.ServiceID,
	} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			httputil.RespondWithError(c, errors.Validation("invalid "+name, err))
			return
		}
		*dst = &id
	}

	if staff := c.Query("staff_id"); staff != "" {
		filter.StaffID = &staff
	}

	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status := model.BookingStatus(strings.TrimSpace(part))
			if !status.Valid() {
				httputil.RespondWithError(c, errors.Validation("invalid status "+string(status), nil))
				return
			}
			filter.Status = append(filter.Status, status)
		}
	}

	var ok bool
	if filter.From, ok = handler.QueryDate(c, "from"); !ok {
		return
	}
	if filter.To, ok = handler.QueryDate(c, "to"); !ok {
		return
	}

	views, err := h.service.List(c.Request.Context(), middleware.CallerID(c), filter, booking.ParseExpand(c.Query("expand")))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, views)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateStatusRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	b, err := h.service.UpdateStatus(c.Request.Context(), middleware.CallerID(c), id, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, b)
}

func (h *Handler) Reschedule(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.RescheduleRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	b, err := h.service.Reschedule(c.Request.Context(), middleware.CallerID(c), id, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, b)
}

func (h *Handler) RecordDeposit(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	b, err := h.service.RecordDeposit(c.Request.Context(), middleware.CallerID(c), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, b)
}

func (h *Handler) DeleteBooking(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), middleware.CallerID(c), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
