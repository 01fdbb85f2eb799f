package inspectra

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Config 引擎配置项
type Config struct {
	FingerDir string // 指纹库目录，为空时使用内置指纹数据
	Workers   int    // 指纹评估并发数
}

const defaultWorkers = 10

// Inspectra 指纹识别引擎。指纹库构建一次后只读，
// 单次检测共享同一个只读快照，可安全并发调用 Inspect
type Inspectra struct {
	mu         sync.RWMutex
	config     *Config
	apps       map[string]*application
	signatures map[string]*Signature
	categories map[string]*Category
	logger     logrus.FieldLogger
}

// New 初始化引擎并加载指纹库，日志器由调用方注入
func New(config *Config, logger logrus.FieldLogger) (*Inspectra, error) {
	if config == nil {
		config = &Config{}
	}
	if config.Workers <= 0 {
		config.Workers = defaultWorkers
	}
	ins := &Inspectra{config: config, logger: logger}
	if err := ins.loadCatalog(); err != nil {
		return nil, err
	}
	return ins, nil
}

// Reload 重新加载指纹库，加载失败时保留原有指纹库
func (ins *Inspectra) Reload() error {
	return ins.loadCatalog()
}

// Count 指纹库中的产品数量
func (ins *Inspectra) Count() int {
	ins.mu.RLock()
	defer ins.mu.RUnlock()
	return len(ins.signatures)
}

// Inspect 对探测快照执行一次完整检测：按指纹扇出评估（有界工作池），
// 汇聚证据，单跳展开 implies/requires，执行排除过滤，输出报告。
// 所有已提交的评估任务全部结束后才会返回，不因先命中而取消同级任务
func (ins *Inspectra) Inspect(page *WebPage, options Options) (*Report, error) {
	ins.mu.RLock()
	defer ins.mu.RUnlock()
	signatures := make([]*Signature, 0, len(ins.signatures))
	for _, sig := range ins.signatures {
		signatures = append(signatures, sig)
	}

	det := newDetected()
	tasks := make(chan *Signature)
	var wg sync.WaitGroup
	for i := 0; i < ins.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sig := range tasks {
				for _, ev := range sig.Evaluate(page) {
					det.addEvidence(ev)
				}
			}
		}()
	}
	for _, sig := range signatures {
		tasks <- sig
	}
	close(tasks)
	wg.Wait()

	ins.resolveDependencies(det)
	ins.resolveExcludes(det)

	return ins.buildReport(det, options), nil
}
