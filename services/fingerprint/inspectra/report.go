package inspectra

import (
	"sort"
	"strconv"

	"github.com/iancoleman/orderedmap"
)

// Technology 检测结果中单个产品的完整信息（平铺模式），
// confidence 保持为最后一个字段，序列化字段顺序对下游有约定
type Technology struct {
	Categories  []string       `json:"cats"`
	Description string         `json:"description,omitempty"`
	Versions    []string       `json:"versions"`
	Version     string         `json:"version,omitempty"`
	CPE         string         `json:"cpe,omitempty"`
	Website     string         `json:"website,omitempty"`
	Pricing     []string       `json:"pricing,omitempty"`
	OSS         bool           `json:"oss"`
	SaaS        bool           `json:"saas"`
	Confidence  map[string]int `json:"confidence"`
}

// CategoryTechnology 按类别分组模式下的产品条目
type CategoryTechnology struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Versions    []string       `json:"versions"`
	Version     string         `json:"version,omitempty"`
	CPE         string         `json:"cpe,omitempty"`
	Website     string         `json:"website,omitempty"`
	Pricing     []string       `json:"pricing,omitempty"`
	OSS         bool           `json:"oss"`
	SaaS        bool           `json:"saas"`
	Confidence  map[string]int `json:"confidence"`
}

// Report 一次检测的最终输出，Count 恒等于排除后平铺集合的产品数，
// 与输出模式无关
type Report struct {
	Technologies interface{} `json:"technologies"`
	Count        int         `json:"count"`
}

// Options 检测选项
type Options struct {
	ByCategory bool // 按类别分组输出
}

// buildReport 把检测记录与指纹库元数据合并为最终报告
func (ins *Inspectra) buildReport(d *detected, options Options) *Report {
	report := &Report{Count: len(d.apps)}
	if options.ByCategory {
		report.Technologies = ins.formatByCategory(d)
	} else {
		report.Technologies = ins.formatFlat(d)
	}
	return report
}

// formatFlat 平铺模式：类别 ID 替换为类别名
func (ins *Inspectra) formatFlat(d *detected) map[string]*Technology {
	result := make(map[string]*Technology, len(d.apps))
	for name, record := range d.apps {
		app, ok := ins.apps[name]
		if !ok {
			app = &application{}
		}
		result[name] = &Technology{
			Categories:  ins.categoryNames(app.Cats),
			Description: app.Description,
			Versions:    record.Versions,
			Version:     bestVersion(record.Versions),
			CPE:         app.CPE,
			Website:     app.Website,
			Pricing:     app.Pricing,
			OSS:         app.OSS,
			SaaS:        app.SaaS,
			Confidence:  record.Confidence,
		}
	}
	return result
}

// formatByCategory 分组模式：产品归入其全部类别名下，
// 类别按配置的优先级升序排列，多类别产品在每个类别下都出现一次
func (ins *Inspectra) formatByCategory(d *detected) *orderedmap.OrderedMap {
	type group struct {
		name         string
		priority     int
		technologies []*CategoryTechnology
	}
	groups := make(map[string]*group)
	names := make([]string, 0, len(d.apps))
	for name := range d.apps {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		record := d.apps[name]
		app, ok := ins.apps[name]
		if !ok {
			continue
		}
		entry := &CategoryTechnology{
			Name:        name,
			Description: app.Description,
			Versions:    record.Versions,
			Version:     bestVersion(record.Versions),
			CPE:         app.CPE,
			Website:     app.Website,
			Pricing:     app.Pricing,
			OSS:         app.OSS,
			SaaS:        app.SaaS,
			Confidence:  record.Confidence,
		}
		for _, catID := range app.Cats {
			category, ok := ins.categories[strconv.Itoa(catID)]
			if !ok {
				continue
			}
			g, ok := groups[category.Name]
			if !ok {
				g = &group{name: category.Name, priority: category.Priority}
				groups[category.Name] = g
			}
			g.technologies = append(g.technologies, entry)
		}
	}

	sorted := make([]*group, 0, len(groups))
	for _, g := range groups {
		sorted = append(sorted, g)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].priority != sorted[j].priority {
			return sorted[i].priority < sorted[j].priority
		}
		return sorted[i].name < sorted[j].name
	})

	result := orderedmap.New()
	for _, g := range sorted {
		result.Set(g.name, g.technologies)
	}
	return result
}

// categoryNames 类别 ID 列表转类别名列表，未知 ID 跳过
func (ins *Inspectra) categoryNames(cats []int) []string {
	names := make([]string, 0, len(cats))
	for _, catID := range cats {
		if category, ok := ins.categories[strconv.Itoa(catID)]; ok {
			names = append(names, category.Name)
		}
	}
	return names
}
