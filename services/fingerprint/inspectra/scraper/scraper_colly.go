package scraper

import (
	"crypto/tls"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/extensions"
	"github.com/sirupsen/logrus"

	"gitlab.example.com/zhangweijie/inspectra/services/certificate"
	"gitlab.example.com/zhangweijie/inspectra/services/fingerprint/inspectra"
)

// CollyScraper 静态抓取结构，不渲染页面
type CollyScraper struct {
	Collector             *colly.Collector
	Transport             *http.Transport
	Response              *http.Response
	Log                   logrus.FieldLogger
	TimeoutSeconds        int
	LoadingTimeoutSeconds int
	UserAgent             string
	depth                 int
}

type inspectraTransport struct {
	*http.Transport
	respCallBack func(resp *http.Response)
}

func newInspectraTransport(t *http.Transport, f func(resp *http.Response)) *inspectraTransport {
	return &inspectraTransport{t, f}
}

func (it *inspectraTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rsp, err := it.Transport.RoundTrip(req)
	it.respCallBack(rsp)
	return rsp, err
}

// Init 初始化 colly 抓取
func (s *CollyScraper) Init() error {
	s.Transport = &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: time.Second * time.Duration(s.TimeoutSeconds),
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   2 * time.Second,
		ExpectContinueTimeout: time.Duration(s.TimeoutSeconds) * time.Second,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: true},
	}
	s.Collector = colly.NewCollector()
	s.Collector.UserAgent = s.UserAgent

	setResp := func(r *http.Response) {
		s.Response = r
	}

	// 自定义传输，保留原始响应以便提取证书信息
	s.Collector.WithTransport(newInspectraTransport(s.Transport, setResp))

	// 为请求设置有效的 Referer HTTP 标头
	extensions.Referer(s.Collector)

	return nil
}

func (s *CollyScraper) CanRenderPage() bool {
	return false
}

func (s *CollyScraper) SetDepth(depth int) {
	s.depth = depth
}

// 从响应头中收集数据，错误响应也走同一套提取
func (s *CollyScraper) collectResponse(scraped *ScrapedData, r *colly.Response) {
	if r.Request != nil {
		scraped.URL = r.Request.URL.String()
	}
	if r.StatusCode != 0 {
		scraped.StatusCode = r.StatusCode
	}

	// 获取响应头数据，键为小写
	scraped.Headers = make(map[string][]string)
	if r.Headers != nil {
		for key, value := range *r.Headers {
			lowerCaseKey := strings.ToLower(key)
			scraped.Headers[lowerCaseKey] = value
		}
	}

	if r.Body != nil {
		scraped.HTML = string(r.Body)
	}

	// 获取 cookies，键小写归一
	scraped.Cookies = parseSetCookies(scraped.Headers["set-cookie"])

	if s.Response != nil && s.Response.TLS != nil && len(s.Response.TLS.PeerCertificates) > 0 {
		// 获取证书信息
		certInfo := certificate.GetCertInfoOfResponse(s.Response)
		scraped.Certificate = certInfo
		scraped.CertIssuer = append(scraped.CertIssuer, certInfo.IssuerStrings()...)
	}
}

// Scrape 抓取流程
func (s *CollyScraper) Scrape(paramURL string) (*ScrapedData, inspectra.Evaluator, error) {
	scraped := &ScrapedData{}
	// 获取 DNS 解析数据
	scraped.DNS = scrapeDNS(paramURL, s.Log)

	if s.depth > 0 {
		s.Collector.IgnoreRobotsTxt = false
	}

	s.Collector.OnResponse(func(r *colly.Response) {
		s.collectResponse(scraped, r)
	})
	s.Collector.OnError(func(r *colly.Response, err error) {
		s.collectResponse(scraped, r)
	})

	// 获取 title
	s.Collector.OnHTML("title", func(e *colly.HTMLElement) {
		scraped.Title = e.Text
	})

	// 设置超时时间
	s.Collector.SetRequestTimeout(time.Duration(s.TimeoutSeconds) * time.Second)
	if err := s.Collector.Visit(paramURL); err != nil && scraped.HTML == "" {
		return scraped, nil, err
	}

	// 从源码中提取 meta、脚本和样式
	doc, docErr := goquery.NewDocumentFromReader(strings.NewReader(scraped.HTML))
	if docErr == nil {
		scraped.Meta = collectMeta(doc)
		scraped.ScriptSrc = collectScriptSrc(doc)
		doc.Find("script").Each(func(i int, sel *goquery.Selection) {
			if _, ok := sel.Attr("src"); !ok {
				if text := strings.TrimSpace(sel.Text()); text != "" {
					scraped.Scripts = append(scraped.Scripts, chunkString(text, scriptChunkSize)...)
				}
			}
		})
		scraped.Scripts = append(scraped.Scripts, downloadBodies(paramURL, scraped.ScriptSrc, s.TimeoutSeconds)...)
		scraped.CSS = collectCSS(doc, paramURL, s.TimeoutSeconds)
	}

	// 获取 robots.txt 正文
	scraped.Robots = fetchRobots(paramURL, s.TimeoutSeconds)

	// 获取 Favicon
	favicon, faviconHash := getFavicon(scraped.HTML, paramURL, s.Log)
	scraped.Favicon = favicon
	scraped.FaviconHash = faviconHash

	return scraped, newDocEvaluator(scraped.HTML), nil
}

// Release 静态抓取没有需要回收的页面资源
func (s *CollyScraper) Release(evaluator inspectra.Evaluator) {}

func (s *CollyScraper) Close() {}
