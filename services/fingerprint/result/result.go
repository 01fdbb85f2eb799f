package result

import (
	"gitlab.example.com/zhangweijie/inspectra/services/fingerprint/inspectra"
)

// FingerResult 单个 URL 的识别结果
type FingerResult struct {
	URL          string            `json:"url"`          // URL
	StatusCode   int               `json:"status_code"`  // 响应状态码
	Title        string            `json:"title"`        // 网页标题
	Headers      map[string]string `json:"headers"`      // 响应头
	Technologies *inspectra.Report `json:"technologies"` // 识别出的产品组件
	Favicon      string            `json:"favicon"`      // 图标
	FaviconHash  string            `json:"favicon_hash"` // 图标 hash 值
	Certificate  string            `json:"certificate"`  // 证书数据
}
