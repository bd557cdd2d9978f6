// Package server exposes the Questlog HTTP API.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"questlog/internal/assess"
	"questlog/internal/config"
	"questlog/internal/db"
	"questlog/internal/notify"
	"questlog/internal/syncer"
	"github.com/gin-gonic/gin"
)

// Opts holds configuration for the API server.
type Opts struct {
	Stores   *db.Stores
	Provider assess.Provider
	Notifier *notify.Notifier
	Config   *config.Config
	Port     int
	Out      io.Writer
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts Opts) error {
	if opts.Stores == nil {
		return fmt.Errorf("server: stores are required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.New()
	}
	if opts.Config == nil {
		opts.Config = config.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := NewRouter(opts)

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Questlog API listening at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// NewRouter builds the gin engine with all routes registered. Split out of
// Start so tests can drive it with httptest.
func NewRouter(opts Opts) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	h := &handlers{
		stores:   opts.Stores,
		provider: opts.Provider,
		notifier: opts.Notifier,
		cfg:      opts.Config,
		syncer:   syncer.New(opts.Stores.Schedule, opts.Stores.Tasks),
	}

	api := router.Group("/api")
	{
		api.POST("/quests", h.createQuest)
		api.GET("/quests", h.listQuests)
		api.POST("/milestones", h.createMilestone)
		api.POST("/checkpoints", h.createCheckpoint)
		api.GET("/checkpoints/:id/progress", h.checkpointProgress)
		api.GET("/checkpoints/:id/history", h.checkpointHistory)

		api.POST("/commits", h.createCommit)
		api.POST("/commits/:id/assess", h.assessCommit)

		api.POST("/tasks", h.createTask)
		api.GET("/tasks", h.listTasks)

		api.POST("/schedule/blocks", h.createBlock)
		api.GET("/schedule/blocks", h.listBlocks)
		api.PATCH("/schedule/blocks/:id", h.updateBlock)
		api.DELETE("/schedule/blocks/:id", h.deleteBlock)
	}

	return router
}
