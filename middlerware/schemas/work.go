package schemas

// InspectTaskCreateSchema 识别任务参数
type InspectTaskCreateSchema struct {
	URL        []string `json:"url" binding:"required"`
	Scraper    string   `json:"scraper" binding:"oneof='' rod colly"` // 使用哪种爬取框架，有 rod 和 colly 两个选择，默认为 rod
	MaxDepth   int      `json:"max_depth" binding:"gte=0,lte=3"`      // 最大递归深度
	UserAgent  string   `json:"user_agent"`                           // 自定义 UA
	ByCategory bool     `json:"by_category"`                          // 结果按类别分组
}
