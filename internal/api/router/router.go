package router

import (
	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/pdf-station/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware(deps.CORSAllowedOrigins))

	// Uploads beyond this spill to temporary files
	r.MaxMultipartMemory = 8 << 20

	healthHandler := handler.NewHealthHandler(deps)
	r.GET("/health", healthHandler.Health)

	jobHandler := handler.NewJobHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			jobs.POST("", jobHandler.CreateJob)
			jobs.POST("/compress", jobHandler.CompressJob)
			jobs.POST("/merge", jobHandler.MergeJob)
			jobs.POST("/split", jobHandler.SplitJob)
			jobs.POST("/protect", jobHandler.ProtectJob)
			jobs.POST("/remove-protection", jobHandler.RemoveProtectionJob)
			jobs.POST("/pdf-to-word", jobHandler.PDFToWordJob)

			jobs.GET("", jobHandler.ListJobs)
			jobs.GET("/:job_id", jobHandler.GetJob)
			jobs.GET("/:job_id/status", jobHandler.GetJobStatus)
			jobs.GET("/:job_id/download", jobHandler.DownloadJob)
		}

		// GET /api/v1/estimate-size?original_size=&quality=
		v1.GET("/estimate-size", jobHandler.EstimateSize)
	}

	return r
}
