package api

import (
	"github.com/asaskevich/govalidator"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"gitlab.example.com/zhangweijie/inspectra/middlerware/schemas"
	"gitlab.example.com/zhangweijie/inspectra/services/fingerprint"
	"gitlab.example.com/zhangweijie/inspectra/services/fingerprint/inspectra"
)

// InspectApi 创建识别任务并同步返回结果
func InspectApi(engine *inspectra.Inspectra, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var validParams schemas.InspectTaskCreateSchema
		if err := c.ShouldBindJSON(&validParams); err != nil {
			schemas.BadRequest(c, schemas.JsonParseErr)
			return
		}

		// URL 不合法直接拒绝任务
		for _, url := range validParams.URL {
			if !govalidator.IsURL(url) {
				schemas.BadRequest(c, schemas.URLInvalid)
				return
			}
		}

		finalResult, err := fingerprint.InspectMainWorker(c.Request.Context(), engine, log, &validParams)
		if err != nil {
			schemas.InternalError(c, err.Error())
			return
		}

		schemas.Success(c, finalResult)
	}
}
