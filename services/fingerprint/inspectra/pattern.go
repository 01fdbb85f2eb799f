package inspectra

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hashicorp/go-version"
)

// pattern 单条指纹规则，编译完成后不再修改
type pattern struct {
	str        string
	regex      *regexp.Regexp
	version    string
	confidence int
	extras     map[string]string
}

// versionValidRegex 合法版本号格式
var versionValidRegex = regexp.MustCompile(`^\d+(\.\d+)*$`)

// parsePattern 解析规则表达式，格式为 <regex>[\;key:value]*
// 首段为匹配表达式，忽略大小写编译；后续段为 key:value 附加属性，
// 识别 version 和 confidence，其余键原样保留。正则编译失败时
// regex 保持为 nil，表示永远不命中，保证指纹库可以带病加载
func parsePattern(str string) *pattern {
	appPattern := &pattern{confidence: 100}
	slice := strings.Split(str, `\;`)
	for i, item := range slice {
		if i > 0 {
			additional := strings.SplitN(item, ":", 2)
			if len(additional) > 1 {
				switch additional[0] {
				case "version":
					appPattern.version = additional[1]
				case "confidence":
					if confidence, err := strconv.Atoi(additional[1]); err == nil {
						appPattern.confidence = confidence
					}
				default:
					if appPattern.extras == nil {
						appPattern.extras = make(map[string]string)
					}
					appPattern.extras[additional[0]] = additional[1]
				}
			}
		} else {
			appPattern.str = item
			if reg, err := regexp.Compile("(?i)" + item); err == nil {
				appPattern.regex = reg
			}
		}
	}
	return appPattern
}

// parsePatternList 规则定义允许是单个字符串或字符串列表
func parsePatternList(value interface{}) (patterns []*pattern) {
	for _, str := range toStringSlice(value) {
		patterns = append(patterns, parsePattern(str))
	}
	return patterns
}

// toStringSlice 将 string / []interface{} 归一为字符串列表
func toStringSlice(value interface{}) (result []string) {
	switch content := value.(type) {
	case string:
		result = append(result, content)
	case []interface{}:
		for _, item := range content {
			if str, ok := item.(string); ok {
				result = append(result, str)
			}
		}
	case []string:
		result = append(result, content...)
	}
	return result
}

// matchString 比对单个值，编译失败的规则永远不命中
func (p *pattern) matchString(value string) bool {
	return p.regex != nil && p.regex.MatchString(value)
}

// resolveVersions 规则命中后从匹配值中解析版本号。重新应用正则枚举全部
// 捕获组，先处理 \N?<真值>:<假值> 条件表达式，再替换其余 \N 反向引用，
// 结果只有符合版本号格式时才会保留，按发现顺序去重返回
func (p *pattern) resolveVersions(value string) (versions []string) {
	if p.regex == nil || p.version == "" {
		return nil
	}
	seen := make(map[string]struct{})
	for _, groups := range p.regex.FindAllStringSubmatch(value, -1) {
		resolved := p.version
		for i := 1; i < len(groups); i++ {
			ternary := regexp.MustCompile(fmt.Sprintf(`\\%d\?([^:]*):(.*)$`, i))
			if m := ternary.FindStringSubmatch(resolved); len(m) == 3 {
				if groups[i] != "" {
					resolved = strings.ReplaceAll(resolved, m[0], m[1])
				} else {
					resolved = strings.ReplaceAll(resolved, m[0], m[2])
				}
			}
		}
		for i := 1; i < len(groups); i++ {
			resolved = strings.ReplaceAll(resolved, fmt.Sprintf(`\%d`, i), groups[i])
		}
		if resolved == "" || !versionValidRegex.MatchString(resolved) {
			continue
		}
		if _, ok := seen[resolved]; !ok {
			seen[resolved] = struct{}{}
			versions = append(versions, resolved)
		}
	}
	return versions
}

// bestVersion 从版本列表中挑选最高版本，无法按语义比较时退回字典序
func bestVersion(versions []string) (res string) {
	var best *version.Version
	for _, item := range versions {
		if parsed, err := version.NewVersion(item); err == nil {
			if best == nil || parsed.GreaterThan(best) {
				best = parsed
				res = item
			}
		}
	}
	if best == nil {
		for _, item := range versions {
			if item > res {
				res = item
			}
		}
	}
	return res
}
