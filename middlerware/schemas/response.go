package schemas

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	JsonParseErr = "参数解析出错"
	URLInvalid   = "URL 格式不合法"
)

// Success 请求成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"code": 200,
		"msg":  "SUCCESS",
		"data": data,
	})
}

// SuccessCreate 创建成功响应
func SuccessCreate(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, gin.H{
		"code": 201,
		"msg":  "SUCCESS",
		"data": data,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"code": 400,
		"msg":  msg,
		"data": nil,
	})
}

// InternalError 服务内部错误响应
func InternalError(c *gin.Context, msg string) {
	c.JSON(http.StatusInternalServerError, gin.H{
		"code": 500,
		"msg":  msg,
		"data": nil,
	})
}
