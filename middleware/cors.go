package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	RelayMethods   = "POST, OPTIONS"
	JournalMethods = "GET, POST, PATCH, DELETE, OPTIONS"
)

// CORSMiddleware sets the CORS headers on every response and answers
// preflight requests with 200 and no body.
// allowedOrigins is "*" or a comma separated list of origins.
func CORSMiddleware(allowedOrigins, methods string) gin.HandlerFunc {
	origins := map[string]bool{}
	wildcard := strings.TrimSpace(allowedOrigins) == "" || strings.TrimSpace(allowedOrigins) == "*"
	for _, o := range strings.Split(allowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins[o] = true
		}
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		switch {
		case wildcard:
			h.Set("Access-Control-Allow-Origin", "*")
		case origins[c.GetHeader("Origin")]:
			h.Set("Access-Control-Allow-Origin", c.GetHeader("Origin"))
			h.Add("Vary", "Origin")
		default:
			// Not an allowed browser origin: advertise the first configured one.
			h.Set("Access-Control-Allow-Origin", firstOrigin(allowedOrigins))
			h.Add("Vary", "Origin")
		}
		h.Set("Access-Control-Allow-Methods", methods)
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}

func firstOrigin(allowedOrigins string) string {
	for _, o := range strings.Split(allowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			return o
		}
	}
	return "*"
}
