package controllers

import (
	game_constants "Quizrace/constants/game"
	"Quizrace/utils/logger"
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Dependency is a backing service reported by Ping.
type Dependency struct {
	Name  string
	Check func(ctx context.Context) error
}

// @Summary Health check
// @Description Pings the server and every backing service
// @Tags health
// @Produce json
// @Success 200 {object} object{message=string,dependencies=map[string]string}
// @Failure 503 {object} object{message=string,dependencies=map[string]string}
// @Router /ping [get]
func Ping(deps ...Dependency) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		report := make(map[string]string, len(deps))
		for _, d := range deps {
			ctx, cancel := context.WithTimeout(c.Request.Context(), game_constants.HEALTH_CHECK_TIMEOUT)
			err := d.Check(ctx)
			cancel()
			if err != nil {
				logger.Warnf("[HEALTH] %s unreachable: %v", d.Name, err)
				report[d.Name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			report[d.Name] = "ok"
		}

		message := "pong"
		if status != http.StatusOK {
			message = "degraded"
		}
		c.JSON(status, gin.H{"message": message, "dependencies": report})
	}
}
