package handlers

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Brownie44l1/tensor-bridge/internal/metrics"
)

// Routes builds the router. m may be nil, in which case /metrics is not
// served.
func (h *Handler) Routes(origins []string, m *metrics.Metrics) *gin.Engine {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowWildcard = true
	corsConfig.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	corsConfig.AllowHeaders = []string{"Content-Type", "Accept", HeaderRequestID}
	corsConfig.ExposeHeaders = []string{HeaderRequestID, HeaderTensorShape}
	if len(origins) == 0 || containsWildcard(origins) {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.MaxMultipartMemory = h.opts.MaxUploadBytes
	r.Use(
		gin.Recovery(),
		cors.New(corsConfig),
		RequestID(),
		AccessLog(h.logger),
	)
	if m != nil {
		r.Use(m.Middleware())
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	r.GET("/health", h.Health)
	r.POST("/predict", h.Predict)
	r.POST("/predict/image", h.PredictFromImage)
	r.GET("/channel/ws", h.Socket(NewUpgrader(origins)))
	r.POST("/channel/:method", h.Channel)
	return r
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
