package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mzhav/roomreserve/internal/domain"
	"github.com/mzhav/roomreserve/internal/service/rooms"
)

type RoomHandler struct {
	service rooms.RoomUseCase
}

type searchRoomsRequest struct {
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Capacity     int       `json:"capacity"`
	EquipmentIDs []int64   `json:"equipment_ids"`
}

func NewRoomHandler(service rooms.RoomUseCase) *RoomHandler {
	return &RoomHandler{service: service}
}

func (h *RoomHandler) Register(router *gin.RouterGroup) {
	router.GET("/", h.list)
	router.GET("/:id", h.get)
	router.GET("/:id/equipments", h.equipments)
	router.POST("/search", h.search)
	router.PATCH("/:id/status", h.updateStatus)
}

func (h *RoomHandler) list(c *gin.Context) {
	roomList, err := h.service.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, roomList)
}

func (h *RoomHandler) get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, domain.ValidationError("invalid room id"))
		return
	}
	room, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *RoomHandler) equipments(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, domain.ValidationError("invalid room id"))
		return
	}
	equipments, err := h.service.ListEquipmentOf(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, equipments)
}

type updateRoomStatusRequest struct {
	Status string `json:"status"`
}

func (h *RoomHandler) updateStatus(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, domain.ValidationError("invalid room id"))
		return
	}
	var req updateRoomStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, domain.ValidationError(err.Error()))
		return
	}
	if err := h.service.UpdateStatus(c.Request.Context(), id, domain.RoomStatus(req.Status)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RoomHandler) search(c *gin.Context) {
	var req searchRoomsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, domain.ValidationError(err.Error()))
		return
	}

	available, err := h.service.SearchAvailable(c.Request.Context(), rooms.SearchInput{
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		MinCapacity:  req.Capacity,
		EquipmentIDs: req.EquipmentIDs,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, available)
}
