package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// NewRouter wires the routes of h
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(h.log))
	if m := h.opts.Metrics; m != nil {
		router.Use(m.middleware())
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}
	if h.opts.RateLimit > 0 {
		router.Use(rateLimit(h.opts.RateLimit, h.opts.RateBurst))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/filter", h.Filter)

	collections := router.Group("/collections")
	collections.GET("", h.ListCollections)
	collections.GET("/:name/documents", h.FindDocuments)
	collections.POST("/:name/documents", h.CreateDocument)
	collections.GET("/:name/count", h.CountDocuments)
	collections.GET("/:name/fields", h.DiscoverFields)
	collections.GET("/:name/values/:field", h.DiscoverValues)
	collections.GET("/:name/stats/:field", h.FieldStats)
	collections.GET("/:name/documents/:id", h.GetDocument)
	collections.PUT("/:name/documents/:id", h.PutDocument)
	collections.DELETE("/:name/documents/:id", h.DeleteDocument)

	return router
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// Serve runs the router on addr until ctx is cancelled, then shuts down
// gracefully.
func Serve(ctx context.Context, addr string, router http.Handler, log *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
