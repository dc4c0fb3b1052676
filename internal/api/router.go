// api/router.go
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func NewRouter(d *Designer) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), RequestLogger(), gin.Recovery())

	r.GET("/health", HealthHandler())

	g := r.Group("/designer")
	{
		data := g.Group("/data")
		data.GET("/load-configs", LoadConfigsHandler(d))
		data.GET("/sources", ListSourcesHandler(d))
		data.GET("/sources/:name", GetSourceHandler(d))
		data.DELETE("/sources/:name", DeleteSourceHandler(d))

		// discovery: черновой конфиг ещё не сохранён
		data.POST("/available-sources", AvailableSourcesHandler(d))
		data.POST("/test-connection", TestConnectionHandler(d))
		data.POST("/table-fields", TableFieldsHandler(d))
		data.POST("/api-fields", APIFieldsHandler(d))
		data.POST("/file-fields", FileFieldsHandler(d))

		data.POST("/save-config", SaveConfigHandler(d))
		data.POST("/analyze-changes", AnalyzeChangesHandler(d))
		data.POST("/delete-object", DeleteObjectHandler(d))
		data.GET("/lint", LintHandler(d))

		// данные объектов
		data.GET("/objects/:object", ObjectDataHandler(d))
		data.POST("/objects/:object", CreateRecordHandler(d))
		data.POST("/files/:dataSource", UploadFileHandler(d))

		ifc := g.Group("/interfaces")
		ifc.GET("/scan", ScanInterfacesHandler(d))
		ifc.GET("/:object", CheckInterfaceHandler(d))
		ifc.POST("", GenerateInterfaceHandler(d))
		ifc.DELETE("/:object", RemoveInterfaceHandler(d))

		g.GET("/notifications", NotificationsHandler(d))
	}
	return r
}

func HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"service":   "designer",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}
