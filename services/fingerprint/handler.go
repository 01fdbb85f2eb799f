package fingerprint

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.zoe.im/surferua"

	"gitlab.example.com/zhangweijie/inspectra/global"
	"gitlab.example.com/zhangweijie/inspectra/middlerware/schemas"
	"gitlab.example.com/zhangweijie/inspectra/services/fingerprint/inspectra"
	"gitlab.example.com/zhangweijie/inspectra/services/fingerprint/inspectra/scraper"
	"gitlab.example.com/zhangweijie/inspectra/services/fingerprint/result"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// defaultUserAgent 未指定 UA 时随机生成一个桌面浏览器 UA
func defaultUserAgent() string {
	return surferua.New().Desktop().Chrome().String()
}

type Worker struct {
	ID         int // 任务执行者 ID
	Ctx        context.Context
	Wg         *sync.WaitGroup
	Engine     *inspectra.Inspectra
	Log        logrus.FieldLogger
	TaskChan   chan Task                  // 子任务通道
	ResultChan chan []result.FingerResult // 子任务结果通道
}

type Task struct {
	TargetURL  string // 子任务目标网站
	Scraper    scraper.Scraper
	MaxDepth   int
	ByCategory bool
}

// NewWorker 初始化 worker
func NewWorker(ctx context.Context, wg *sync.WaitGroup, id int, engine *inspectra.Inspectra, log logrus.FieldLogger, taskChan chan Task, resultChan chan []result.FingerResult) *Worker {
	return &Worker{
		ID:         id,
		Ctx:        ctx,
		Wg:         wg,
		Engine:     engine,
		Log:        log,
		TaskChan:   taskChan,
		ResultChan: resultChan,
	}
}

// NewScraper 根据配置创建采集器
func NewScraper(kind string, maxDepth int, userAgent string, log logrus.FieldLogger) (scraper.Scraper, error) {
	config := global.Config.Scraper
	if userAgent == "" {
		userAgent = defaultUserAgent()
	}

	var s scraper.Scraper
	switch kind {
	case "colly":
		s = &scraper.CollyScraper{
			Log:                   log,
			TimeoutSeconds:        config.TimeoutSeconds,
			LoadingTimeoutSeconds: config.LoadingTimeoutSeconds,
			UserAgent:             userAgent,
		}
	default:
		s = &scraper.RodScraper{
			Log:                   log,
			PageSize:              config.PageSize,
			TimeoutSeconds:        config.TimeoutSeconds,
			LoadingTimeoutSeconds: config.LoadingTimeoutSeconds,
			UserAgent:             userAgent,
		}
	}
	if err := s.Init(); err != nil {
		log.WithError(err).Error("初始化采集器出现错误")
		return nil, err
	}
	s.SetDepth(maxDepth)
	return s, nil
}

// inspectOne 对单个 URL 执行一次采集加识别
func (w *Worker) inspectOne(task Task, targetURL string) (*result.FingerResult, map[string]struct{}, error) {
	scraped, evaluator, err := task.Scraper.Scrape(targetURL)
	if err != nil {
		return nil, nil, err
	}
	defer task.Scraper.Release(evaluator)

	page := scraper.BuildWebPage(scraped, evaluator)
	report, err := w.Engine.Inspect(page, inspectra.Options{ByCategory: task.ByCategory})
	if err != nil {
		return nil, nil, err
	}

	// 重新设置响应头
	newHeaders := make(map[string]string)
	for k, v := range scraped.Headers {
		newHeaders[k] = strings.Join(v, ",")
	}

	certInfo, err := json.Marshal(scraped.Certificate)
	if err != nil {
		certInfo = []byte{}
	}

	fingerResult := &result.FingerResult{
		URL:          scraped.URL,
		StatusCode:   scraped.StatusCode,
		Title:        scraped.Title,
		Headers:      newHeaders,
		Technologies: report,
		Favicon:      scraped.Favicon,
		FaviconHash:  scraped.FaviconHash,
		Certificate:  string(certInfo),
	}

	// 需要递归抓取时收集同主机链接
	var links map[string]struct{}
	if task.MaxDepth > 0 && scraped.HTML != "" {
		doc, docErr := goquery.NewDocumentFromReader(strings.NewReader(scraped.HTML))
		if docErr == nil {
			links = scraper.CollectLinks(doc, targetURL)
		}
	}

	return fingerResult, links, nil
}

// inspectTarget 从目标 URL 出发按深度预算递归识别
func (w *Worker) inspectTarget(task Task) []result.FingerResult {
	var fingerResults []result.FingerResult
	visited := make(map[string]struct{})
	queue := []string{task.TargetURL}
	maxVisited := global.Config.Scraper.MaxVisitedLinks
	delay := time.Duration(global.Config.Scraper.DelaySeconds) * time.Second

	for depth := 0; depth <= task.MaxDepth && len(queue) > 0; depth++ {
		var nextQueue []string
		for _, targetURL := range queue {
			if _, ok := visited[targetURL]; ok {
				continue
			}
			if len(visited) >= maxVisited && depth > 0 {
				break
			}
			visited[targetURL] = struct{}{}
			if depth > 0 && delay > 0 {
				time.Sleep(delay)
			}

			fingerResult, links, err := w.inspectOne(task, targetURL)
			if err != nil {
				w.Log.WithError(err).Warnf("识别 %s 出现错误", targetURL)
				continue
			}
			fingerResults = append(fingerResults, *fingerResult)

			for link := range links {
				if _, ok := visited[link]; !ok {
					nextQueue = append(nextQueue, link)
				}
			}
		}
		queue = nextQueue
	}

	return fingerResults
}

// inspectRun 带超时地执行识别，避免单个 URL 卡死整个任务
func (w *Worker) inspectRun(task Task) ([]result.FingerResult, error) {
	resCh := make(chan []result.FingerResult, 1)

	go func() {
		resCh <- w.inspectTarget(task)
	}()

	select {
	case fingerResults := <-resCh:
		return fingerResults, nil
	case <-time.After(60 * time.Second):
		return nil, errors.Errorf("%s fingerprint timeout", task.TargetURL)
	}
}

// GroupInspectWorker 指纹识别方法
func (w *Worker) GroupInspectWorker() {
	go func() {
		defer w.Wg.Done()
		for task := range w.TaskChan {
			select {
			case <-w.Ctx.Done():
				return
			default:
				fingerResults, err := w.inspectRun(task)
				if err != nil {
					w.Log.WithError(err).Warn("识别任务执行出现错误")
				}
				for _, fingerResult := range fingerResults {
					w.Log.Infof("------------> URL %s -------> Title %s -------> Count %d", fingerResult.URL, fingerResult.Title, fingerResult.Technologies.Count)
				}
				select {
				case <-w.Ctx.Done():
					return
				default:
					w.ResultChan <- fingerResults
				}
			}
		}
	}()
}

// InspectMainWorker 识别任务入口，按 URL 分发到工作池并汇总结果
func InspectMainWorker(ctx context.Context, engine *inspectra.Inspectra, log logrus.FieldLogger, validParams *schemas.InspectTaskCreateSchema) ([][]result.FingerResult, error) {
	scraperIns, err := NewScraper(validParams.Scraper, validParams.MaxDepth, validParams.UserAgent, log)
	if err != nil {
		return nil, err
	}
	defer scraperIns.Close()

	taskChan := make(chan Task, len(validParams.URL))
	resultChan := make(chan []result.FingerResult, len(validParams.URL))
	var wg sync.WaitGroup
	// 创建并启动多个工作者
	for i := 0; i < global.Config.Server.Worker; i++ {
		worker := NewWorker(ctx, &wg, i, engine, log, taskChan, resultChan)
		worker.GroupInspectWorker()
		wg.Add(1)
	}

	go func() {
		// 通知消费者所有任务已经推送完毕
		defer close(taskChan)
		for _, url := range validParams.URL {
			taskChan <- Task{
				TargetURL:  url,
				Scraper:    scraperIns,
				MaxDepth:   validParams.MaxDepth,
				ByCategory: validParams.ByCategory,
			}
		}
	}()

	go func() {
		wg.Wait()
		// 通知消费者所有任务结果已经推送完毕
		close(resultChan)
	}()

	var finalResult [][]result.FingerResult
	for fingerprintResult := range resultChan {
		if len(fingerprintResult) > 0 {
			finalResult = append(finalResult, fingerprintResult)
		}
	}

	select {
	case <-ctx.Done():
		return finalResult, errors.New("任务被取消")
	default:
		return finalResult, nil
	}
}
