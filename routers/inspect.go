package routers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"gitlab.example.com/zhangweijie/inspectra/api"
	"gitlab.example.com/zhangweijie/inspectra/services/fingerprint/inspectra"
)

func InitInspectRouter(engine *gin.Engine, ins *inspectra.Inspectra, log logrus.FieldLogger) gin.IRoutes {
	var group = engine.Group("/inspect")
	{
		group.POST("", api.InspectApi(ins, log))
	}
	return group
}

func InitPingRouter(engine *gin.Engine) gin.IRoutes {
	return engine.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})
}
