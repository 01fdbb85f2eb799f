package scraper

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"

	"gitlab.example.com/zhangweijie/inspectra/services/fingerprint/inspectra"
)

// RodScraper 基于无头浏览器的采集器，支持 JS 渲染和 DOM/JS 探测
type RodScraper struct {
	Browser               *rod.Browser
	Log                   logrus.FieldLogger
	pagePool              rod.PagePool
	PageSize              int
	TimeoutSeconds        int
	LoadingTimeoutSeconds int
	UserAgent             string
	protoUserAgent        *proto.NetworkSetUserAgentOverride
	lock                  *sync.RWMutex
	robotsMap             map[string]*robotstxt.RobotsData
	depth                 int
}

func (s *RodScraper) CanRenderPage() bool {
	return true
}

func (s *RodScraper) SetDepth(depth int) {
	s.depth = depth
}

func (s *RodScraper) Init() error {
	return rod.Try(func() {
		// 寻找可执行程序的路径
		path, _ := launcher.LookPath()
		u := launcher.New().Bin(path).NoSandbox(true).MustLaunch()
		s.lock = &sync.RWMutex{}
		s.robotsMap = make(map[string]*robotstxt.RobotsData)
		// 允许使用给定字符串覆盖用户代理
		s.protoUserAgent = &proto.NetworkSetUserAgentOverride{UserAgent: s.UserAgent}
		// MustIgnoreCertErrors 忽略证书错误
		s.Browser = rod.New().ControlURL(u).MustConnect().MustIgnoreCertErrors(true)
		s.pagePool = rod.NewPagePool(s.PageSize)
	})
}

// 检查是否允许抓取，robots.txt 排除协议只在递归抓取时生效
func (s *RodScraper) checkRobots(u *url.URL) error {
	s.lock.RLock()
	robot, ok := s.robotsMap[u.Host]
	s.lock.RUnlock()

	if !ok {
		tr := &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
		client := &http.Client{Transport: tr}
		resp, err := client.Get(u.Scheme + "://" + u.Host + "/robots.txt")
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		robot, err = robotstxt.FromResponse(resp)
		if err != nil {
			return err
		}

		s.lock.Lock()
		s.robotsMap[u.Host] = robot
		s.lock.Unlock()
	}

	uaGroup := robot.FindGroup(s.UserAgent)
	eu := u.EscapedPath()
	if u.RawQuery != "" {
		eu += "?" + u.Query().Encode()
	}
	if !uaGroup.Test(eu) {
		return errors.New("robots.txt 不允许抓取该路径")
	}

	return nil
}

// Scrape 渲染页面并采集探测快照数据
func (s *RodScraper) Scrape(paramURL string) (*ScrapedData, inspectra.Evaluator, error) {
	scraped := &ScrapedData{}

	parsedURL, err := url.Parse(paramURL)
	if err != nil {
		return scraped, nil, err
	}

	// 当递归深度大于 0 的时候需要检查 robots 排除协议
	if s.depth > 0 {
		if err = s.checkRobots(parsedURL); err != nil {
			return scraped, nil, err
		}
	}

	// 获取目标 URL 的 DNS 解析数据
	scraped.DNS = scrapeDNS(paramURL, s.Log)

	// 创建一个新的页面，不在当前方法中关闭页面是因为还需要在该页面加载 JS 代码
	page := s.GetPage()

	// 当 HTTP 响应可用时触发
	var e proto.NetworkResponseReceived
	wait := page.WaitEvent(&e)
	// 自动处理页面弹出的对话框
	go page.MustHandleDialog()

	// 记录页面发出的 XHR 请求的主机
	var xhrLock sync.Mutex
	go page.EachEvent(func(request *proto.NetworkRequestWillBeSent) {
		if request.Type == proto.NetworkResourceTypeXHR || request.Type == proto.NetworkResourceTypeFetch {
			if requestURL, reqErr := url.Parse(request.Request.URL); reqErr == nil && requestURL.Hostname() != "" {
				xhrLock.Lock()
				scraped.XHR = append(scraped.XHR, requestURL.Hostname())
				xhrLock.Unlock()
			}
		}
	})()

	errRod := rod.Try(func() {
		page.Timeout(time.Duration(s.TimeoutSeconds) * time.Second).
			MustSetUserAgent(s.protoUserAgent).MustNavigate(paramURL)
	})
	if errRod != nil {
		s.Release(&rodEvaluator{page: page, scraper: s})
		return scraped, nil, errRod
	}

	// 等待页面响应
	wait()

	// 等待动态内容加载
	if s.LoadingTimeoutSeconds > 0 {
		_ = rod.Try(func() {
			page.Timeout(time.Duration(s.LoadingTimeoutSeconds) * time.Second).MustWaitLoad()
		})
	}

	// 获取安全验证信息
	if e.Response.SecurityDetails != nil && len(e.Response.SecurityDetails.Issuer) > 0 {
		scraped.CertIssuer = append(scraped.CertIssuer, e.Response.SecurityDetails.Issuer)
	}

	scraped.URL = e.Response.URL
	scraped.StatusCode = e.Response.Status

	// 获取响应头，键为小写
	scraped.Headers = make(map[string][]string)
	for header, value := range e.Response.Headers {
		lowerCaseKey := strings.ToLower(header)
		scraped.Headers[lowerCaseKey] = append(scraped.Headers[lowerCaseKey], value.String())
	}

	// 获取渲染后的页面源码
	html, errRod := page.HTML()
	if errRod == nil {
		scraped.HTML = html
	}

	// 获取标题
	info, errRod := page.Info()
	if errRod == nil {
		scraped.Title = info.Title
	}

	// 获取脚本外链和内联脚本
	scripts, _ := page.Elements("script")
	for _, script := range scripts {
		if src, _ := script.Property("src"); src.Val() != nil && src.String() != "" {
			scraped.ScriptSrc = append(scraped.ScriptSrc, src.String())
		} else if text, textErr := script.Text(); textErr == nil && strings.TrimSpace(text) != "" {
			scraped.Scripts = append(scraped.Scripts, chunkString(text, scriptChunkSize)...)
		}
	}
	// 下载外链脚本内容
	scraped.Scripts = append(scraped.Scripts, downloadBodies(paramURL, scraped.ScriptSrc, s.TimeoutSeconds)...)

	// 获取 meta 信息
	metas, _ := page.Elements("meta")
	scraped.Meta = make(map[string][]string)
	for _, meta := range metas {
		name, _ := meta.Attribute("name")
		if name == nil {
			name, _ = meta.Attribute("property")
		}

		if name != nil {
			if content, _ := meta.Attribute("content"); content != nil {
				nameLower := strings.ToLower(*name)
				scraped.Meta[nameLower] = append(scraped.Meta[nameLower], *content)
			}
		}
	}

	// 获取 cookies，键小写归一
	scraped.Cookies = make(map[string]string)
	var str []string
	cookies, _ := page.Cookies(str)
	for _, cookie := range cookies {
		scraped.Cookies[strings.ToLower(cookie.Name)] = cookie.Value
	}

	// 获取样式内容
	doc, docErr := goquery.NewDocumentFromReader(strings.NewReader(scraped.HTML))
	if docErr == nil {
		scraped.CSS = collectCSS(doc, paramURL, s.TimeoutSeconds)
	}

	// 获取 robots.txt 正文
	scraped.Robots = fetchRobots(paramURL, s.TimeoutSeconds)

	// 获取 Favicon
	favicon, faviconHash := getFavicon(scraped.HTML, paramURL, s.Log)
	scraped.Favicon = favicon
	scraped.FaviconHash = faviconHash

	return scraped, &rodEvaluator{page: page, doc: newDocEvaluator(scraped.HTML), scraper: s}, nil
}

// Release 回收页面资源
func (s *RodScraper) Release(evaluator inspectra.Evaluator) {
	re, ok := evaluator.(*rodEvaluator)
	if !ok || re.page == nil {
		return
	}
	err := re.page.Navigate("about:blank")
	if err != nil {
		s.Log.Warn("回收页面出现问题")
	} else {
		s.pagePool.Put(re.page)
	}
}

// createPage 生成一个 page 对象
func (s *RodScraper) createPage() (page *rod.Page) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.Browser == nil {
		path, _ := launcher.LookPath()
		u := launcher.New().Bin(path).NoSandbox(true).MustLaunch()
		s.Browser = rod.New().ControlURL(u).MustConnect().MustIgnoreCertErrors(true)
	}
	page = stealth.MustPage(s.Browser)
	return
}

func (s *RodScraper) GetPage() *rod.Page {
	s.lock.Lock()
	if s.pagePool == nil {
		s.pagePool = rod.NewPagePool(s.PageSize)
	}
	s.lock.Unlock()
	return s.pagePool.Get(s.createPage)
}

// Close 关闭浏览器
func (s *RodScraper) Close() {
	if s.Browser != nil {
		pages, _ := s.Browser.Pages()
		for _, page := range pages {
			err := page.Close()
			if err != nil {
				s.Log.Warn("关闭页面出现问题")
				continue
			}
		}
		err := s.Browser.Close()
		if err != nil {
			s.Log.WithError(err).Error("关闭浏览器出现错误")
		}
	} else {
		s.Log.Warn("关闭浏览器出现错误，浏览器实例为 nil")
	}
}

// rodEvaluator 绑定渲染页面的求值器，DOM 选择基于渲染后的源码，JS 在页面上下文中执行
type rodEvaluator struct {
	page    *rod.Page
	doc     *docEvaluator
	scraper *RodScraper
}

func (e *rodEvaluator) Select(selector string) []inspectra.Element {
	if e.doc == nil {
		return nil
	}
	return e.doc.Select(selector)
}

// wrapJSExpr 含连字符的键不能作为裸标识符求值（会被解释为减法），
// 转为全局对象的属性访问
func wrapJSExpr(expr string) string {
	if strings.Contains(expr, "-") {
		return fmt.Sprintf("(window||global)['%s']", expr)
	}
	return expr
}

// EvalJS 在页面上下文中执行表达式。
// 避免加载 JS 时卡死导致无法释放资源，所以使用 ctx，保证操作会被取消从而释放资源
func (e *rodEvaluator) EvalJS(expr string) (string, error) {
	if e.page == nil {
		return "", errors.New("页面已回收")
	}
	expr = wrapJSExpr(expr)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
	defer cancel()
	type evalResult struct {
		response *proto.RuntimeRemoteObject
		err      error
	}
	resCh := make(chan evalResult, 1)

	go func() {
		response, resErr := e.page.Eval(expr)
		resCh <- evalResult{response: response, err: resErr}
	}()

	select {
	case res := <-resCh:
		if res.err != nil {
			return "", res.err
		}
		if res.response != nil && res.response.Value.Val() != nil {
			if res.response.Type == "string" || res.response.Type == "number" {
				return res.response.Value.String(), nil
			}
			// 对象等无法转为文本的结果只确认存在
			return "true", nil
		}
		return "", nil
	case <-ctx.Done():
		return "", errors.New("EvalJS timeout")
	}
}
