package app

import (
	"github.com/gin-gonic/gin"
)

// metricsAuthMiddleware guards /metrics with HTTP Basic Auth. An empty
// password leaves the endpoint open.
func metricsAuthMiddleware(username, password string) gin.HandlerFunc {
	if password == "" {
		return func(c *gin.Context) { c.Next() }
	}
	return gin.BasicAuthForRealm(gin.Accounts{username: password}, "metrics")
}
