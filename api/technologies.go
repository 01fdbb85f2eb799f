package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"gitlab.example.com/zhangweijie/inspectra/middlerware/schemas"
	"gitlab.example.com/zhangweijie/inspectra/services/fingerprint/inspectra"
)

// TechnologiesReloadApi 重新加载指纹库
func TechnologiesReloadApi(engine *inspectra.Inspectra, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := engine.Reload(); err != nil {
			log.WithError(err).Error("重新加载指纹库出现错误")
			schemas.InternalError(c, err.Error())
			return
		}

		schemas.SuccessCreate(c, gin.H{"count": engine.Count()})
	}
}

// TechnologiesCountApi 指纹库产品数量
func TechnologiesCountApi(engine *inspectra.Inspectra) gin.HandlerFunc {
	return func(c *gin.Context) {
		schemas.Success(c, gin.H{"count": engine.Count()})
	}
}
