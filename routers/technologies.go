package routers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"gitlab.example.com/zhangweijie/inspectra/api"
	"gitlab.example.com/zhangweijie/inspectra/services/fingerprint/inspectra"
)

func InitTechnologiesRouter(engine *gin.Engine, ins *inspectra.Inspectra, log logrus.FieldLogger) gin.IRoutes {
	var group = engine.Group("/technologies")
	{
		group.GET("", api.TechnologiesCountApi(ins))
		group.POST("/reload", api.TechnologiesReloadApi(ins, log))
	}
	return group
}
