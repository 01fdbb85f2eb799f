package inspectra

// Element DOM 选择结果，tag 为标签名，Attrs 为属性集合，InnerHTML 为标签内部源码
type Element struct {
	Tag       string
	Attrs     map[string][]string
	InnerHTML string
}

// Attr 获取属性值列表，属性不存在时返回 nil
func (e *Element) Attr(name string) []string {
	if e.Attrs == nil {
		return nil
	}
	return e.Attrs[name]
}

// Evaluator 绑定到页面上下文的 DOM 选择和 JS 执行能力，由外部采集器提供
type Evaluator interface {
	// Select 执行 CSS 选择器并返回命中的全部元素
	Select(selector string) []Element
	// EvalJS 在页面上下文中执行 JS 表达式并返回字符串结果
	EvalJS(expr string) (string, error)
}

// WebPage 探测快照，在匹配开始前由采集器填充完毕，匹配过程中只读共享
type WebPage struct {
	URL        string
	HTML       string
	Headers    map[string][]string // 键为小写
	Cookies    map[string]string   // 键为小写
	Meta       map[string][]string // 键为小写
	DNS        map[string][]string // 键为小写记录类型
	Scripts    []string            // 脚本内容分片
	ScriptSrc  []string            // 脚本外链地址
	XHR        []string
	CSS        []string
	Robots     string
	CertIssuer []string
	Evaluator  Evaluator
}

// Select 缺少页面上下文时永远不命中
func (w *WebPage) Select(selector string) []Element {
	if w.Evaluator == nil {
		return nil
	}
	return w.Evaluator.Select(selector)
}

// EvalJS 缺少页面上下文时视为执行失败
func (w *WebPage) EvalJS(expr string) (string, error) {
	if w.Evaluator == nil {
		return "", errNoEvaluator
	}
	return w.Evaluator.EvalJS(expr)
}

// listChannelValues 列表型通道取值表，字符串型通道包装为单元素列表，空值视为缺失
var listChannelValues = map[string]func(*WebPage) []string{
	"url": func(w *WebPage) []string {
		if w.URL == "" {
			return nil
		}
		return []string{w.URL}
	},
	"html": func(w *WebPage) []string {
		if w.HTML == "" {
			return nil
		}
		return []string{w.HTML}
	},
	"robots": func(w *WebPage) []string {
		if w.Robots == "" {
			return nil
		}
		return []string{w.Robots}
	},
	"scripts":   func(w *WebPage) []string { return w.Scripts },
	"scriptSrc": func(w *WebPage) []string { return w.ScriptSrc },
	"xhr":       func(w *WebPage) []string { return w.XHR },
	"css":       func(w *WebPage) []string { return w.CSS },
}

// fieldChannelValues 字典型通道取值表
var fieldChannelValues = map[string]func(*WebPage) map[string][]string{
	"headers": func(w *WebPage) map[string][]string { return w.Headers },
	"meta":    func(w *WebPage) map[string][]string { return w.Meta },
	"dns":     func(w *WebPage) map[string][]string { return w.DNS },
	"cookies": func(w *WebPage) map[string][]string {
		if len(w.Cookies) == 0 {
			return nil
		}
		values := make(map[string][]string, len(w.Cookies))
		for name, value := range w.Cookies {
			values[name] = []string{value}
		}
		return values
	},
}
