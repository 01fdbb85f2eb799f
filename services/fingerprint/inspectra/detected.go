package inspectra

import (
	"fmt"
	"sync"
)

// DetectionRecord 单个产品累计的检测结果。证据按指纹去重，
// 重复命中同一条规则只记录一次；版本按发现顺序去重追加
type DetectionRecord struct {
	Confidence map[string]int `json:"confidence"`
	Versions   []string       `json:"versions"`
}

func newDetectionRecord() *DetectionRecord {
	return &DetectionRecord{
		Confidence: make(map[string]int),
		Versions:   []string{},
	}
}

// addVersion 追加未出现过的版本号
func (record *DetectionRecord) addVersion(version string) {
	for _, existing := range record.Versions {
		if existing == version {
			return
		}
	}
	record.Versions = append(record.Versions, version)
}

// hasFullConfidence 是否存在置信度恰为 100 的证据
func (record *DetectionRecord) hasFullConfidence() bool {
	for _, confidence := range record.Confidence {
		if confidence == 100 {
			return true
		}
	}
	return false
}

// detected 全部产品的检测结果集合，匹配期间并发写入
type detected struct {
	mu   sync.Mutex
	apps map[string]*DetectionRecord
}

func newDetected() *detected {
	return &detected{apps: make(map[string]*DetectionRecord)}
}

// addEvidence 记录一条证据，首条证据创建检测记录
func (d *detected) addEvidence(ev Evidence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	record, ok := d.apps[ev.Technology]
	if !ok {
		record = newDetectionRecord()
		d.apps[ev.Technology] = record
	}
	record.Confidence[ev.Key] = ev.Confidence
	for _, version := range ev.Versions {
		record.addVersion(version)
	}
}

// names 当前已检出的产品名快照
func (d *detected) names() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, 0, len(d.apps))
	for name := range d.apps {
		names = append(names, name)
	}
	return names
}

// resolveDependencies 单跳展开 implies/requires：对每个已确认产品读取其
// 依赖列表，条目可带 \;confidence:N 后缀。无后缀按 100 记入；后缀 >= 50
// 按给定置信度记入；后缀 < 50 丢弃。记入即新建（或整体替换）目标产品的
// 检测记录，经由依赖引入的产品不再触发下一轮展开
func (ins *Inspectra) resolveDependencies(d *detected) {
	for _, name := range d.names() {
		app, ok := ins.apps[name]
		if !ok {
			continue
		}
		ins.resolveDependencyList(d, name, "implies", app.Implies)
		ins.resolveDependencyList(d, name, "requires", app.Requires)
	}
}

func (ins *Inspectra) resolveDependencyList(d *detected, source, relation string, value interface{}) {
	for _, entry := range dependencyList(value) {
		parsed := parsePattern(entry)
		if parsed.confidence < 50 {
			continue
		}
		record := newDetectionRecord()
		record.Confidence[fmt.Sprintf("%s %s", relation, source)] = parsed.confidence
		d.mu.Lock()
		d.apps[parsed.str] = record
		d.mu.Unlock()
	}
}

// resolveExcludes 单轮排除：对每个已检出产品读取 excludes 列表，
// 被排除目标只有在自身持有置信度 100 的证据时才得以保留，
// 与发起排除一方自身的置信度无关。先统一标记，再统一删除
func (ins *Inspectra) resolveExcludes(d *detected) {
	d.mu.Lock()
	defer d.mu.Unlock()
	marked := make(map[string]struct{})
	for name := range d.apps {
		app, ok := ins.apps[name]
		if !ok {
			continue
		}
		for _, entry := range dependencyList(app.Excludes) {
			target := parsePattern(entry).str
			if record, ok := d.apps[target]; !ok || !record.hasFullConfidence() {
				marked[target] = struct{}{}
			}
		}
	}
	for name := range marked {
		delete(d.apps, name)
	}
}
