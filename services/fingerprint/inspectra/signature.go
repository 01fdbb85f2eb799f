package inspectra

import (
	"strings"
)

// listChannelKeys 列表型通道，值为规则字符串或规则字符串列表
var listChannelKeys = []string{"scriptSrc", "scripts", "url", "xhr", "html", "robots", "css"}

// fieldChannelKeys 字典型通道，值为 字段名 -> 规则字符串(列表)
var fieldChannelKeys = []string{"headers", "dns", "meta", "cookies"}

// application 指纹库中单个产品的原始定义，字段类型保持宽松，
// 由 Signature 编译阶段做归一
type application struct {
	Name        string      `json:"name,omitempty" yaml:"name,omitempty"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	CPE         string      `json:"cpe,omitempty" yaml:"cpe,omitempty"`
	Website     string      `json:"website,omitempty" yaml:"website,omitempty"`
	Pricing     []string    `json:"pricing,omitempty" yaml:"pricing,omitempty"`
	OSS         bool        `json:"oss,omitempty" yaml:"oss,omitempty"`
	SaaS        bool        `json:"saas,omitempty" yaml:"saas,omitempty"`
	Cats        []int       `json:"cats,omitempty" yaml:"cats,omitempty"`
	URL         interface{} `json:"url,omitempty" yaml:"url,omitempty"`
	XHR         interface{} `json:"xhr,omitempty" yaml:"xhr,omitempty"`
	HTML        interface{} `json:"html,omitempty" yaml:"html,omitempty"`
	CSS         interface{} `json:"css,omitempty" yaml:"css,omitempty"`
	Robots      interface{} `json:"robots,omitempty" yaml:"robots,omitempty"`
	Scripts     interface{} `json:"scripts,omitempty" yaml:"scripts,omitempty"`
	ScriptSrc   interface{} `json:"scriptSrc,omitempty" yaml:"scriptSrc,omitempty"`
	Headers     interface{} `json:"headers,omitempty" yaml:"headers,omitempty"`
	Cookies     interface{} `json:"cookies,omitempty" yaml:"cookies,omitempty"`
	Meta        interface{} `json:"meta,omitempty" yaml:"meta,omitempty"`
	DNS         interface{} `json:"dns,omitempty" yaml:"dns,omitempty"`
	JS          interface{} `json:"js,omitempty" yaml:"js,omitempty"`
	Dom         interface{} `json:"dom,omitempty" yaml:"dom,omitempty"`
	Implies     interface{} `json:"implies,omitempty" yaml:"implies,omitempty"`
	Requires    interface{} `json:"requires,omitempty" yaml:"requires,omitempty"`
	Excludes    interface{} `json:"excludes,omitempty" yaml:"excludes,omitempty"`
	CertIssuer  string      `json:"certIssuer,omitempty" yaml:"certIssuer,omitempty"`
}

// listChannelValue 按通道名取原始定义字段
func (app *application) listChannelValue(channel string) interface{} {
	switch channel {
	case "scriptSrc":
		return app.ScriptSrc
	case "scripts":
		return app.Scripts
	case "url":
		return app.URL
	case "xhr":
		return app.XHR
	case "html":
		return app.HTML
	case "robots":
		return app.Robots
	case "css":
		return app.CSS
	}
	return nil
}

// fieldChannelValue 按通道名取原始定义字段
func (app *application) fieldChannelValue(channel string) interface{} {
	switch channel {
	case "headers":
		return app.Headers
	case "dns":
		return app.DNS
	case "meta":
		return app.Meta
	case "cookies":
		return app.Cookies
	}
	return nil
}

// domRule 单个选择器的 DOM 匹配规则
type domRule struct {
	selector string
	exists   []*pattern            // 元素存在性检查，规则串即选择器
	text     []*pattern            // 元素内部源码匹配
	attrs    map[string][]*pattern // 属性名 -> 属性值匹配
}

// Signature 编译后的产品指纹，由指纹库构建一次后只读
type Signature struct {
	Name   string
	app    *application
	list   map[string][]*pattern            // 列表型通道
	fields map[string]map[string][]*pattern // 字典型通道，键已小写
	js     map[string][]*pattern            // JS 表达式保持大小写
	dom    []*domRule
}

// newSignature 把原始定义编译为可执行指纹
func newSignature(name string, app *application) *Signature {
	sig := &Signature{
		Name:   name,
		app:    app,
		list:   make(map[string][]*pattern),
		fields: make(map[string]map[string][]*pattern),
		js:     make(map[string][]*pattern),
	}
	for _, channel := range listChannelKeys {
		if patterns := parsePatternList(app.listChannelValue(channel)); len(patterns) > 0 {
			sig.list[channel] = patterns
		}
	}
	for _, channel := range fieldChannelKeys {
		if fields := parseFieldPatterns(app.fieldChannelValue(channel), true); len(fields) > 0 {
			sig.fields[channel] = fields
		}
	}
	// JS 表达式区分大小写，不做键名归一
	sig.js = parseFieldPatterns(app.JS, false)
	sig.dom = parseDomRules(app.Dom)
	return sig
}

// parseFieldPatterns 解析字典型通道定义，lower 控制字段名是否小写归一
func parseFieldPatterns(value interface{}, lower bool) map[string][]*pattern {
	fields, ok := value.(map[string]interface{})
	if !ok {
		return nil
	}
	result := make(map[string][]*pattern, len(fields))
	for key, item := range fields {
		if lower {
			key = strings.ToLower(key)
		}
		result[key] = parsePatternList(item)
	}
	return result
}

// parseDomRules 解析 DOM 通道定义。裸字符串或字符串列表表示存在性检查，
// 字典形式按 选择器 -> {exists, text, attributes} 展开
func parseDomRules(value interface{}) (rules []*domRule) {
	switch doms := value.(type) {
	case string, []interface{}:
		for _, p := range parsePatternList(doms) {
			rules = append(rules, &domRule{selector: p.str, exists: []*pattern{p}})
		}
	case map[string]interface{}:
		for selector, rawClause := range doms {
			clause, ok := rawClause.(map[string]interface{})
			if !ok {
				continue
			}
			rule := &domRule{selector: selector}
			if _, ok := clause["exists"]; ok {
				rule.exists = parsePatternList(selector)
			}
			if text, ok := clause["text"]; ok {
				rule.text = parsePatternList(text)
			}
			if attributes, ok := clause["attributes"].(map[string]interface{}); ok {
				rule.attrs = make(map[string][]*pattern, len(attributes))
				for attrName, attrValue := range attributes {
					rule.attrs[attrName] = parsePatternList(attrValue)
				}
			}
			rules = append(rules, rule)
		}
	}
	return rules
}

// dependencyList 解析 implies/requires/excludes 定义为名称列表
func dependencyList(value interface{}) []string {
	return toStringSlice(value)
}
