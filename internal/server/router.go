package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smukkama/geofence-server/internal/database"
)

// Publisher sends one keyed message to the raw locations topic
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// NewRouter builds the HTTP API
func NewRouter(db *database.DB, locations Publisher) *gin.Engine {
	router := gin.Default()

	router.GET("/healthz", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	NewDeviceHandler(db).Register(api)
	NewGeofenceHandler(db).Register(api)
	NewLocationHandler(db, locations).Register(api)
	NewNotificationHandler(db).Register(api)

	return router
}
