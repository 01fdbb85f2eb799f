package scraper

import (
	"bytes"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/miekg/dns"
	"github.com/projectdiscovery/retryabledns"
	"github.com/sirupsen/logrus"
	"github.com/spaolacci/murmur3"

	"gitlab.example.com/zhangweijie/inspectra/services/certificate"
	"gitlab.example.com/zhangweijie/inspectra/services/fingerprint/inspectra"
)

// ScrapedData 请求数据，构建探测快照的全部原料
type ScrapedData struct {
	URL         string
	StatusCode  int
	Title       string
	HTML        string
	Headers     map[string][]string // 键为小写
	ScriptSrc   []string            // 脚本外链地址
	Scripts     []string            // 下载的脚本内容分片
	Cookies     map[string]string
	Meta        map[string][]string
	DNS         map[string][]string
	XHR         []string
	CSS         []string
	Robots      string
	CertIssuer  []string
	Favicon     string
	FaviconHash string
	Certificate *certificate.Certificate
}

// Scraper 采集接口，负责在匹配开始前填充完整的探测快照
type Scraper interface {
	// Init 初始化
	Init() error
	// CanRenderPage 是否进行 JS 渲染页面
	CanRenderPage() bool
	// Scrape 请求页面并采集数据，返回绑定页面上下文的求值器
	Scrape(paramURL string) (*ScrapedData, inspectra.Evaluator, error)
	// Release 回收页面资源
	Release(evaluator inspectra.Evaluator)
	// SetDepth 设置递归深度
	SetDepth(depth int)
	// Close 关闭采集器
	Close()
}

// BuildWebPage 把采集数据组装为引擎的探测快照
func BuildWebPage(scraped *ScrapedData, evaluator inspectra.Evaluator) *inspectra.WebPage {
	return &inspectra.WebPage{
		URL:        scraped.URL,
		HTML:       scraped.HTML,
		Headers:    scraped.Headers,
		Cookies:    scraped.Cookies,
		Meta:       scraped.Meta,
		DNS:        scraped.DNS,
		Scripts:    scraped.Scripts,
		ScriptSrc:  scraped.ScriptSrc,
		XHR:        scraped.XHR,
		CSS:        scraped.CSS,
		Robots:     scraped.Robots,
		CertIssuer: scraped.CertIssuer,
		Evaluator:  evaluator,
	}
}

// newInsecureClient 采集用 HTTP 客户端，接受任意证书
func newInsecureClient(timeoutSeconds int) *http.Client {
	return &http.Client{
		Timeout: time.Duration(timeoutSeconds) * time.Second,
		Transport: &http.Transport{
			TLSClientConfig:   &tls.Config{InsecureSkipVerify: true},
			DisableKeepAlives: true,
		},
	}
}

// defaultResolvers 采集 DNS 数据使用的公共解析器
var defaultResolvers = []string{"8.8.8.8:53", "1.1.1.1:53"}

// dnsRecordTypes 需要采集的记录类型
var dnsRecordTypes = []uint16{dns.TypeA, dns.TypeAAAA, dns.TypeCNAME, dns.TypeMX, dns.TypeNS, dns.TypeTXT}

// scrapeDNS 获取目标域名的 DNS 解析数据，键为小写记录类型。
// 重试由解析客户端负责，识别引擎本身不做重试
func scrapeDNS(paramURL string, log logrus.FieldLogger) map[string][]string {
	scrapedDNS := make(map[string][]string)
	u, err := url.Parse(paramURL)
	if err != nil || u.Hostname() == "" {
		return scrapedDNS
	}
	domain := strings.TrimPrefix(u.Hostname(), "www.")

	client, err := retryabledns.New(defaultResolvers, 3)
	if err != nil {
		log.WithError(err).Warn("初始化 DNS 客户端失败")
		return scrapedDNS
	}
	data, err := client.QueryMultiple(domain, dnsRecordTypes)
	if err != nil || data == nil {
		return scrapedDNS
	}
	scrapedDNS["a"] = data.A
	scrapedDNS["aaaa"] = data.AAAA
	scrapedDNS["cname"] = data.CNAME
	scrapedDNS["mx"] = data.MX
	scrapedDNS["ns"] = data.NS
	scrapedDNS["txt"] = data.TXT
	return scrapedDNS
}

// fetchRobots 获取站点 robots.txt 正文，失败时返回空串
func fetchRobots(paramURL string, timeoutSeconds int) string {
	u, err := url.Parse(paramURL)
	if err != nil || u.Host == "" {
		return ""
	}
	client := newInsecureClient(timeoutSeconds)
	resp, err := client.Get(u.Scheme + "://" + u.Host + "/robots.txt")
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ""
	}
	return string(body)
}

// scriptChunkSize 脚本内容分片大小，控制单次正则匹配的开销
const scriptChunkSize = 3000

// downloadBodies 并发下载脚本和样式表正文并分片
func downloadBodies(baseURL string, srcList []string, timeoutSeconds int) []string {
	client := newInsecureClient(timeoutSeconds)
	var mu sync.Mutex
	var chunks []string
	var wg sync.WaitGroup
	for _, src := range srcList {
		wg.Add(1)
		go func(src string) {
			defer wg.Done()
			content := fetchBody(client, baseURL, src)
			if content == "" {
				return
			}
			mu.Lock()
			chunks = append(chunks, chunkString(content, scriptChunkSize)...)
			mu.Unlock()
		}(src)
	}
	wg.Wait()
	return chunks
}

func fetchBody(client *http.Client, baseURL, src string) string {
	target := src
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		base, err := url.Parse(baseURL)
		if err != nil {
			return ""
		}
		ref, err := url.Parse(src)
		if err != nil {
			return ""
		}
		target = base.ResolveReference(ref).String()
	}
	resp, err := client.Get(target)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return ""
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ""
	}
	return string(body)
}

func chunkString(s string, size int) (chunks []string) {
	for len(s) > size {
		chunks = append(chunks, s[:size])
		s = s[size:]
	}
	if len(s) > 0 {
		chunks = append(chunks, s)
	}
	return chunks
}

// parseSetCookies 解析 Set-Cookie 响应头。每个头只取首段的 name=value，
// path、domain 等属性段丢弃；cookie 名小写归一，与指纹字段名的归一保持一致
func parseSetCookies(headers []string) map[string]string {
	cookies := make(map[string]string)
	for _, header := range headers {
		pair := strings.SplitN(header, ";", 2)[0]
		keyValue := strings.SplitN(pair, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(keyValue[0]))
		if name == "" {
			continue
		}
		cookies[name] = keyValue[1]
	}
	return cookies
}

// CollectLinks 从页面中提取与当前 URL 同主机的可跳转链接
func CollectLinks(doc *goquery.Document, currentURL string) map[string]struct{} {
	ret := make(map[string]struct{})
	if doc == nil {
		return ret
	}
	parsedCurrentURL, err := url.Parse(currentURL)
	if err != nil {
		return ret
	}
	var protocolRegex = regexp.MustCompile(`^https?`)

	doc.Find("body a").Each(func(index int, item *goquery.Selection) {
		rawLink, exists := item.Attr("href")
		if !exists {
			return
		}
		parsedLink, err := url.Parse(rawLink)
		if err != nil {
			return
		}
		// 如果未获取到协议，则使用当前 URL 的协议
		if parsedLink.Scheme == "" {
			parsedLink.Scheme = parsedCurrentURL.Scheme
		}
		if matched := protocolRegex.MatchString(parsedLink.Scheme); matched && (parsedLink.Host == "" || parsedLink.Host == parsedCurrentURL.Host) {
			if strings.Trim(parsedLink.Path, "/") != "" {
				ret[parsedLink.Scheme+"://"+parsedCurrentURL.Host+"/"+strings.Trim(parsedLink.Path, "/")] = struct{}{}
			} else {
				ret[parsedLink.Scheme+"://"+parsedCurrentURL.Host] = struct{}{}
			}
		}
	})
	return ret
}

// docEvaluator 基于静态 HTML 的求值器，只支持 DOM 选择
type docEvaluator struct {
	doc *goquery.Document
}

func newDocEvaluator(html string) *docEvaluator {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return &docEvaluator{}
	}
	return &docEvaluator{doc: doc}
}

// Select 执行 CSS 选择器，非法选择器按无命中处理
func (e *docEvaluator) Select(selector string) (elements []inspectra.Element) {
	if e.doc == nil {
		return nil
	}
	defer func() {
		if err := recover(); err != nil {
			elements = nil
		}
	}()
	e.doc.Find(selector).Each(func(i int, s *goquery.Selection) {
		if len(s.Nodes) == 0 {
			return
		}
		attrs := make(map[string][]string)
		for _, attr := range s.Nodes[0].Attr {
			attrs[attr.Key] = append(attrs[attr.Key], attr.Val)
		}
		inner, _ := s.Html()
		elements = append(elements, inspectra.Element{
			Tag:       goquery.NodeName(s),
			Attrs:     attrs,
			InnerHTML: inner,
		})
	})
	return elements
}

// EvalJS 静态页面无法执行 JS
func (e *docEvaluator) EvalJS(expr string) (string, error) {
	return "", fmt.Errorf("静态采集不支持执行 JS")
}

// collectMeta 从静态页面提取 meta 信息，键为小写
func collectMeta(doc *goquery.Document) map[string][]string {
	meta := make(map[string][]string)
	if doc == nil {
		return meta
	}
	doc.Find("meta").Each(func(i int, s *goquery.Selection) {
		name, exists := s.Attr("name")
		if !exists {
			name, exists = s.Attr("property")
		}
		if !exists {
			return
		}
		if content, ok := s.Attr("content"); ok {
			meta[strings.ToLower(name)] = append(meta[strings.ToLower(name)], content)
		}
	})
	return meta
}

// collectScriptSrc 从静态页面提取脚本外链
func collectScriptSrc(doc *goquery.Document) (srcList []string) {
	if doc == nil {
		return nil
	}
	doc.Find("script").Each(func(i int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok && src != "" {
			srcList = append(srcList, src)
		}
	})
	return srcList
}

// collectCSS 汇总内联样式与外链样式表内容
func collectCSS(doc *goquery.Document, baseURL string, timeoutSeconds int) (cssRules []string) {
	if doc == nil {
		return nil
	}
	doc.Find("style").Each(func(i int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			cssRules = append(cssRules, chunkString(text, scriptChunkSize)...)
		}
	})
	var hrefs []string
	doc.Find("link[rel='stylesheet']").Each(func(i int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && href != "" {
			hrefs = append(hrefs, href)
		}
	})
	cssRules = append(cssRules, downloadBodies(baseURL, hrefs, timeoutSeconds)...)
	return cssRules
}

// 获取 favicon 数据
func getFavicon(response string, paramURL string, log logrus.FieldLogger) (string, string) {
	faviconReg := regexp.MustCompile(`href="(.*?favicon....)"`)
	faviconRegResult := faviconReg.FindAllStringSubmatch(response, -1)
	var faviconPath string
	u, err := url.Parse(paramURL)
	if err != nil {
		log.Warn("获取 favicon 出现错误")
		return "", ""
	}
	paramURL = u.Scheme + "://" + u.Host
	if len(faviconRegResult) > 0 {
		fav := faviconRegResult[0][1]
		if strings.HasPrefix(fav, "//") {
			faviconPath = "http:" + fav
		} else if strings.HasPrefix(fav, "http") {
			faviconPath = fav
		} else {
			faviconPath = paramURL + "/" + strings.TrimLeft(fav, "/")
		}
	} else {
		faviconPath = paramURL + "/favicon.ico"
	}
	return getFaviconHash(faviconPath, log)
}

// hashFavicon 计算 favicon 的 mmh3 哈希
func hashFavicon(favicon []byte) (string, string) {
	stdBase64 := base64.StdEncoding.EncodeToString(favicon)
	stdBase64 = insertInto(stdBase64, 76, '\n')
	hasher := murmur3.New32WithSeed(0)
	hasher.Write([]byte(stdBase64))
	return stdBase64, fmt.Sprintf("%d", int32(hasher.Sum32()))
}

// 在某个位置插入数据
func insertInto(s string, interval int, sep rune) string {
	var buffer bytes.Buffer
	before := interval - 1
	last := len(s) - 1
	for i, char := range s {
		buffer.WriteRune(char)
		if i%interval == before && i != last {
			buffer.WriteRune(sep)
		}
	}
	buffer.WriteRune(sep)
	return buffer.String()
}

// 获取 favicon 和 favicon Hash 数据
func getFaviconHash(host string, log logrus.FieldLogger) (string, string) {
	client := newInsecureClient(8)
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse // 不进入重定向
	}
	resp, err := client.Get(host)
	if err != nil {
		log.Warn("请求图标发生错误")
		return "", ""
	}
	defer resp.Body.Close()
	if resp.StatusCode < 300 {
		favicon, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", ""
		}
		return hashFavicon(favicon)
	}
	return "", ""
}
