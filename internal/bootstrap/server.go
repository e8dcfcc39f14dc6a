package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mzhav/roomreserve/api"
	"github.com/mzhav/roomreserve/config"
	"github.com/mzhav/roomreserve/internal/service/booking"
	"github.com/mzhav/roomreserve/internal/service/rooms"
)

// Run starts the HTTP server and blocks until the context is canceled or the
// server fails.
func Run(ctx context.Context, cfg *config.Config, roomSvc rooms.RoomUseCase, bookingSvc booking.BookingUseCase) error {
	router := NewRouter(roomSvc, bookingSvc)

	httpSrv := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}

// NewRouter wires the API handlers onto a gin engine.
func NewRouter(roomSvc rooms.RoomUseCase, bookingSvc booking.BookingUseCase) *gin.Engine {
	router := gin.Default()

	apiGroup := router.Group("/api")
	api.NewRoomHandler(roomSvc).Register(apiGroup.Group("/rooms"))
	api.NewBookingHandler(bookingSvc).Register(apiGroup.Group("/bookings"))

	return router
}
