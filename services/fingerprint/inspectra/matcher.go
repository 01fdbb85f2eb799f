package inspectra

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// errNoEvaluator 快照未绑定页面上下文
var errNoEvaluator = errors.New("snapshot has no page evaluator")

// Evidence 单次规则命中产生的证据
type Evidence struct {
	Technology string
	Key        string   // 通道 + 字段 + 规则串，作为证据指纹
	Confidence int      // [0,100]
	Value      string   // 命中的原始值
	Versions   []string // 由版本模板解析出的版本号
}

// evidenceKey 证据指纹格式与指纹库规则一一对应
func evidenceKey(channel, field, patternStr string) string {
	return fmt.Sprintf("%s %s %s", channel, field, patternStr)
}

// collector 汇聚单个指纹评估期间产生的证据，供通道级并发写入
type collector struct {
	mu       sync.Mutex
	evidence []Evidence
}

func (c *collector) add(ev Evidence) {
	c.mu.Lock()
	c.evidence = append(c.evidence, ev)
	c.mu.Unlock()
}

// Evaluate 将指纹与探测快照进行比对，返回全部证据。
// 各通道、各 DOM 规则、各 JS 表达式独立评估并发执行，
// 不因单个通道命中而提前终止，置信度按证据逐条记录
func (sig *Signature) Evaluate(page *WebPage) []Evidence {
	res := &collector{}
	var wg sync.WaitGroup

	for channel, patterns := range sig.list {
		wg.Add(1)
		go func(channel string, patterns []*pattern) {
			defer wg.Done()
			sig.matchList(page, channel, patterns, res)
		}(channel, patterns)
	}
	for channel, fields := range sig.fields {
		wg.Add(1)
		go func(channel string, fields map[string][]*pattern) {
			defer wg.Done()
			sig.matchFields(page, channel, fields, res)
		}(channel, fields)
	}
	for _, rule := range sig.dom {
		wg.Add(1)
		go func(rule *domRule) {
			defer wg.Done()
			sig.matchDom(page, rule, res)
		}(rule)
	}
	for expr, patterns := range sig.js {
		wg.Add(1)
		go func(expr string, patterns []*pattern) {
			defer wg.Done()
			sig.matchJS(page, expr, patterns, res)
		}(expr, patterns)
	}
	if sig.app.CertIssuer != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sig.matchCertIssuer(page, res)
		}()
	}

	wg.Wait()
	return res.evidence
}

// matchList 列表型通道：每条规则逐一比对通道内的每个值
func (sig *Signature) matchList(page *WebPage, channel string, patterns []*pattern, res *collector) {
	accessor, ok := listChannelValues[channel]
	if !ok {
		return
	}
	values := accessor(page)
	for _, p := range patterns {
		for _, value := range values {
			if value != "" && p.matchString(value) {
				res.add(Evidence{
					Technology: sig.Name,
					Key:        evidenceKey(channel, "main", p.str),
					Confidence: p.confidence,
					Value:      value,
					Versions:   p.resolveVersions(value),
				})
			}
		}
	}
}

// matchFields 字典型通道：只比对指纹和快照中同时存在的字段
func (sig *Signature) matchFields(page *WebPage, channel string, fields map[string][]*pattern, res *collector) {
	accessor, ok := fieldChannelValues[channel]
	if !ok {
		return
	}
	values := accessor(page)
	if len(values) == 0 {
		return
	}
	for field, patterns := range fields {
		fieldValues, ok := values[field]
		if !ok {
			continue
		}
		for _, p := range patterns {
			for _, value := range fieldValues {
				if p.matchString(value) {
					res.add(Evidence{
						Technology: sig.Name,
						Key:        evidenceKey(channel, field, p.str),
						Confidence: p.confidence,
						Value:      value,
						Versions:   p.resolveVersions(value),
					})
				}
			}
		}
	}
}

// matchDom 单条 DOM 规则：存在性、文本内容、属性值三类检查
func (sig *Signature) matchDom(page *WebPage, rule *domRule, res *collector) {
	elements := page.Select(rule.selector)

	for _, p := range rule.exists {
		if len(elements) > 0 {
			res.add(Evidence{
				Technology: sig.Name,
				Key:        evidenceKey("dom", "exists", p.str),
				Confidence: p.confidence,
			})
		}
	}
	for _, p := range rule.text {
		for _, element := range elements {
			if p.matchString(element.InnerHTML) {
				res.add(Evidence{
					Technology: sig.Name,
					Key:        evidenceKey("dom", "text", p.str),
					Confidence: p.confidence,
					Value:      element.InnerHTML,
					Versions:   p.resolveVersions(element.InnerHTML),
				})
				break
			}
		}
	}
	for attrName, patterns := range rule.attrs {
		for _, p := range patterns {
			for _, element := range elements {
				matched := ""
				for _, value := range element.Attr(attrName) {
					if value != "" && p.matchString(value) {
						matched = value
						break
					}
				}
				if matched != "" {
					res.add(Evidence{
						Technology: sig.Name,
						Key:        evidenceKey("dom", "attribute", p.str),
						Confidence: p.confidence,
						Value:      matched,
						Versions:   p.resolveVersions(matched),
					})
					break
				}
			}
		}
	}
}

// matchJS 执行表达式后比对结果。循环引用异常按命中处理（哨兵值），
// 其他执行失败按未命中处理；空结果和 none 视为未命中；
// 非空结果配合任意规则即记为命中，规则只做存在性门槛不做内容过滤
func (sig *Signature) matchJS(page *WebPage, expr string, patterns []*pattern, res *collector) {
	content, err := page.EvalJS(expr)
	if err != nil {
		if !strings.Contains(err.Error(), "circular reference") {
			return
		}
		content = "Error occurred, but success."
	}
	if content == "" || strings.EqualFold(content, "none") {
		return
	}
	for _, p := range patterns {
		res.add(Evidence{
			Technology: sig.Name,
			Key:        evidenceKey("js", expr, p.str),
			Confidence: p.confidence,
			Value:      content,
			Versions:   p.resolveVersions(content),
		})
	}
}

// matchCertIssuer 证书颁发者子串比对
func (sig *Signature) matchCertIssuer(page *WebPage, res *collector) {
	for _, issuer := range page.CertIssuer {
		if strings.Contains(issuer, sig.app.CertIssuer) {
			res.add(Evidence{
				Technology: sig.Name,
				Key:        evidenceKey("certIssuer", "main", sig.app.CertIssuer),
				Confidence: 100,
				Value:      issuer,
			})
		}
	}
}
