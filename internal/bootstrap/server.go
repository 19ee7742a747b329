package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/velmostra/stagegate/api"
	"github.com/velmostra/stagegate/config"
	"github.com/velmostra/stagegate/internal/service/discount"
	"github.com/velmostra/stagegate/internal/service/events"
	"github.com/velmostra/stagegate/internal/service/payments"
	"github.com/velmostra/stagegate/internal/service/reservation"
)

// Run starts the HTTP server and blocks until ctx is canceled or the
// server fails.
func Run(
	ctx context.Context,
	cfg *config.Config,
	eventSvc events.EventUseCase,
	reservationSvc reservation.ReservationUseCase,
	discountSvc discount.DiscountUseCase,
	paymentSvc payments.PaymentUseCase,
) error {
	httpSrv := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: newRouter(eventSvc, reservationSvc, discountSvc, paymentSvc),
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()

	select {
	case err := <-errCh:
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

func newRouter(
	eventSvc events.EventUseCase,
	reservationSvc reservation.ReservationUseCase,
	discountSvc discount.DiscountUseCase,
	paymentSvc payments.PaymentUseCase,
) *gin.Engine {
	router := gin.Default()

	eventHandler := api.NewEventHandler(eventSvc)
	reservationHandler := api.NewReservationHandler(reservationSvc)
	discountHandler := api.NewDiscountHandler(discountSvc)
	paymentHandler := api.NewPaymentHandler(paymentSvc)

	// The gateway's callback carries its own authenticity proof (payload
	// signature), so it bypasses the identity middleware.
	paymentHandler.RegisterWebhook(router)

	authed := router.Group("/", api.Identity())

	eventsGroup := authed.Group("/events")
	eventsAdmin := authed.Group("/events", api.RequireAdmin())
	eventHandler.Register(eventsGroup, eventsAdmin)

	reservationsGroup := authed.Group("/reservations")
	reservationsAdmin := authed.Group("/admin/reservations", api.RequireAdmin())
	reservationHandler.Register(reservationsGroup, reservationsAdmin)

	discountsGroup := authed.Group("/discounts")
	discountsAdmin := authed.Group("/admin/discounts", api.RequireAdmin())
	discountHandler.Register(discountsGroup, discountsAdmin)

	paymentsGroup := authed.Group("/payments")
	paymentHandler.Register(reservationsGroup, paymentsGroup)

	return router
}
