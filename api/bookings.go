package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mzhav/roomreserve/internal/domain"
	"github.com/mzhav/roomreserve/internal/service/booking"
)

// requesterHeader carries the identity established by the external auth
// collaborator; the engine only uses it for ownership checks.
const requesterHeader = "X-User-ID"

type BookingHandler struct {
	service booking.BookingUseCase
}

type createBookingRequest struct {
	RoomID    int64     `json:"room_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

type bookingResponse struct {
	BookingID        string `json:"booking_id"`
	RoomID           int64  `json:"room_id"`
	Status           string `json:"status"`
	StartTime        string `json:"start_time"`
	EndTime          string `json:"end_time"`
	TotalAmountCents int64  `json:"total_amount_cents"`
	PaymentDeadline  string `json:"payment_deadline"`
	CreatedAt        string `json:"created_at"`
}

type cancellationResponse struct {
	CancellationID    string `json:"cancellation_id"`
	BookingID         string `json:"booking_id"`
	RefundAmountCents int64  `json:"refund_amount_cents"`
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.create)
	router.GET("/", h.list)
	router.GET("/policy", h.policy)
	router.POST("/:id/pay", h.pay)
	router.DELETE("/:id", h.cancel)
}

func (h *BookingHandler) create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, domain.ValidationError(err.Error()))
		return
	}

	b, err := h.service.CreateBooking(c.Request.Context(), booking.CreateBookingInput{
		RoomID:      req.RoomID,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		RequesterID: c.GetHeader(requesterHeader),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toBookingResponse(b))
}

func (h *BookingHandler) pay(c *gin.Context) {
	b, err := h.service.Pay(c.Request.Context(), c.Param("id"), c.GetHeader(requesterHeader))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) cancel(c *gin.Context) {
	cancellation, err := h.service.Cancel(c.Request.Context(), c.Param("id"), c.GetHeader(requesterHeader))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, cancellationResponse{
		CancellationID:    cancellation.ID,
		BookingID:         cancellation.BookingID,
		RefundAmountCents: cancellation.RefundAmountCents,
	})
}

func (h *BookingHandler) list(c *gin.Context) {
	filter := domain.BookingFilter{}
	if status := c.Query("status"); status != "" {
		filter.Status = domain.BookingStatus(status)
	}
	if from := c.Query("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			respondError(c, domain.ValidationError("invalid from date"))
			return
		}
		filter.DateFrom = t
	}
	if to := c.Query("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			respondError(c, domain.ValidationError("invalid to date"))
			return
		}
		filter.DateTo = t
	}

	bookings, err := h.service.ListBookings(c.Request.Context(), c.GetHeader(requesterHeader), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]bookingResponse, 0, len(bookings))
	for i := range bookings {
		out = append(out, toBookingResponse(&bookings[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *BookingHandler) policy(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"policy": booking.CancellationPolicy()})
}

func toBookingResponse(b *domain.Booking) bookingResponse {
	return bookingResponse{
		BookingID:        b.ID,
		RoomID:           b.RoomID,
		Status:           string(b.Status),
		StartTime:        b.StartTime.Format(time.RFC3339),
		EndTime:          b.EndTime.Format(time.RFC3339),
		TotalAmountCents: b.TotalAmountCents,
		PaymentDeadline:  b.PaymentDeadline.Format(time.RFC3339),
		CreatedAt:        b.CreatedAt.Format(time.RFC3339),
	}
}
