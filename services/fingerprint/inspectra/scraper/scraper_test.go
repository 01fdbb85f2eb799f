package scraper

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.example.com/zhangweijie/inspectra/services/fingerprint/inspectra"
)

func mustDocument(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestCollectLinks(t *testing.T) {
	doc := mustDocument(t, `<html><body>
		<a href="/about/">About</a>
		<a href="https://example.com/contact">Contact</a>
		<a href="https://other.example.com/away">Away</a>
		<a href="mailto:admin@example.com">Mail</a>
		<a href="/about/">Duplicate</a>
	</body></html>`)

	links := CollectLinks(doc, "https://example.com/index")
	assert.Contains(t, links, "https://example.com/about")
	assert.Contains(t, links, "https://example.com/contact")
	// 跨主机和非 HTTP 协议的链接被丢弃
	assert.NotContains(t, links, "https://other.example.com/away")
	assert.Len(t, links, 2)
}

func TestChunkString(t *testing.T) {
	assert.Equal(t, []string{"abc"}, chunkString("abc", 5))
	assert.Equal(t, []string{"abcde", "fg"}, chunkString("abcdefg", 5))
	assert.Empty(t, chunkString("", 5))
}

func TestHashFavicon(t *testing.T) {
	favicon, hash := hashFavicon([]byte("favicon-bytes"))
	assert.NotEmpty(t, favicon)
	assert.NotEmpty(t, hash)
	// 相同输入哈希稳定
	_, hash2 := hashFavicon([]byte("favicon-bytes"))
	assert.Equal(t, hash, hash2)
	_, hash3 := hashFavicon([]byte("other-bytes"))
	assert.NotEqual(t, hash, hash3)
}

func TestInsertInto(t *testing.T) {
	assert.Equal(t, "ab\ncd\n", insertInto("abcd", 2, '\n'))
}

func TestDocEvaluatorSelect(t *testing.T) {
	evaluator := newDocEvaluator(`<html><body>
		<div id="app" data-v-app class="root">hello <span>world</span></div>
	</body></html>`)

	elements := evaluator.Select("[data-v-app]")
	require.Len(t, elements, 1)
	assert.Equal(t, "div", elements[0].Tag)
	assert.Equal(t, []string{"app"}, elements[0].Attr("id"))
	assert.Contains(t, elements[0].InnerHTML, "<span>world</span>")

	assert.Empty(t, evaluator.Select("#missing"))
}

func TestDocEvaluatorEvalJS(t *testing.T) {
	evaluator := newDocEvaluator("<html></html>")
	_, err := evaluator.EvalJS("window.jQuery")
	assert.Error(t, err)
}

func TestCollectMeta(t *testing.T) {
	doc := mustDocument(t, `<html><head>
		<meta name="Generator" content="WordPress 6.0">
		<meta property="og:title" content="Demo">
		<meta charset="utf-8">
	</head></html>`)

	meta := collectMeta(doc)
	assert.Equal(t, []string{"WordPress 6.0"}, meta["generator"])
	assert.Equal(t, []string{"Demo"}, meta["og:title"])
	assert.NotContains(t, meta, "charset")
}

func TestCollectScriptSrc(t *testing.T) {
	doc := mustDocument(t, `<html><body>
		<script src="/js/jquery.min.js"></script>
		<script>var inline = 1;</script>
		<script src="https://cdn.example.com/app.js"></script>
	</body></html>`)

	srcList := collectScriptSrc(doc)
	assert.Equal(t, []string{"/js/jquery.min.js", "https://cdn.example.com/app.js"}, srcList)
}

func TestParseSetCookies(t *testing.T) {
	cookies := parseSetCookies([]string{
		"PHPSESSID=abc123; path=/; HttpOnly",
		"_ga=GA1.2.3; domain=.example.com; expires=Thu, 01 Jan 2026 00:00:00 GMT",
		"malformed",
	})
	// cookie 名小写归一，属性段不混入快照
	assert.Equal(t, "abc123", cookies["phpsessid"])
	assert.Equal(t, "GA1.2.3", cookies["_ga"])
	assert.NotContains(t, cookies, "PHPSESSID")
	assert.NotContains(t, cookies, "path")
	assert.NotContains(t, cookies, "domain")
	assert.NotContains(t, cookies, "expires")
	assert.Len(t, cookies, 2)
}

func TestScrapedCookiesMatchSignatures(t *testing.T) {
	engine, err := inspectra.New(nil, logrus.New())
	require.NoError(t, err)

	scraped := &ScrapedData{
		URL:     "https://example.com",
		Cookies: parseSetCookies([]string{"PHPSESSID=abc123; path=/"}),
	}
	report, err := engine.Inspect(BuildWebPage(scraped, nil), inspectra.Options{})
	require.NoError(t, err)

	technologies, ok := report.Technologies.(map[string]*inspectra.Technology)
	require.True(t, ok)
	assert.Contains(t, technologies, "PHP")
}

func TestWrapJSExpr(t *testing.T) {
	assert.Equal(t, "jQuery.fn.jquery", wrapJSExpr("jQuery.fn.jquery"))
	// 连字符键转为全局对象属性访问，避免被当作减法求值
	assert.Equal(t, "(window||global)['__cf-beacon']", wrapJSExpr("__cf-beacon"))
}

func TestBuildWebPage(t *testing.T) {
	scraped := &ScrapedData{
		URL:     "https://example.com",
		HTML:    "<html></html>",
		Headers: map[string][]string{"server": {"nginx"}},
		Robots:  "User-agent: *",
	}
	page := BuildWebPage(scraped, nil)
	assert.Equal(t, scraped.URL, page.URL)
	assert.Equal(t, scraped.Headers, page.Headers)
	assert.Equal(t, scraped.Robots, page.Robots)
	assert.Nil(t, page.Evaluator)
}
