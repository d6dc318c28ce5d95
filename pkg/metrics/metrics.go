package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// StartServer exposes the default Prometheus registry on addr in a background
// goroutine. The returned function shuts the server down. Long imports are
// scraped live this way; short runs just never get scraped, which is fine.
func StartServer(addr string, log *logrus.Logger) func(context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/debug/prometheus", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("metrics server stopped")
		}
	}()

	return srv.Shutdown
}
