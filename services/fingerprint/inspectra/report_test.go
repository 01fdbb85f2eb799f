package inspectra

import (
	"testing"

	"github.com/iancoleman/orderedmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportByCategoryOrdering(t *testing.T) {
	engine := newTestEngine(t, `{
		"jQuery": {"cats": [12], "scriptSrc": "jquery"},
		"WordPress": {"cats": [1], "html": "wp-content"}
	}`)
	page := &WebPage{
		URL:       "https://example.com",
		HTML:      "<link href='/wp-content/a.css'>",
		ScriptSrc: []string{"/js/jquery.min.js"},
	}

	report, err := engine.Inspect(page, Options{ByCategory: true})
	require.NoError(t, err)
	grouped, ok := report.Technologies.(*orderedmap.OrderedMap)
	require.True(t, ok)

	// 类别按优先级升序输出，CMS 在 JavaScript libraries 之前
	assert.Equal(t, []string{"CMS", "JavaScript libraries"}, grouped.Keys())

	rawCMS, ok := grouped.Get("CMS")
	require.True(t, ok)
	cms, ok := rawCMS.([]*CategoryTechnology)
	require.True(t, ok)
	require.Len(t, cms, 1)
	assert.Equal(t, "WordPress", cms[0].Name)

	// Count 与输出模式无关
	assert.Equal(t, 2, report.Count)
}

func TestReportMultiCategory(t *testing.T) {
	engine := newTestEngine(t, `{
		"Demo": {"cats": [1, 12], "html": "demo"}
	}`)
	page := &WebPage{URL: "https://example.com", HTML: "demo page"}

	report, err := engine.Inspect(page, Options{ByCategory: true})
	require.NoError(t, err)
	grouped := report.Technologies.(*orderedmap.OrderedMap)

	// 多类别产品在每个类别下各出现一次
	assert.Equal(t, []string{"CMS", "JavaScript libraries"}, grouped.Keys())
	assert.Equal(t, 1, report.Count)
}

func TestReportFlatCategoryNames(t *testing.T) {
	engine := newTestEngine(t, `{
		"Demo": {"cats": [1, 999], "html": "demo"}
	}`)
	page := &WebPage{URL: "https://example.com", HTML: "demo page"}

	report, err := engine.Inspect(page, Options{})
	require.NoError(t, err)
	demo := flatTechnologies(t, report)["Demo"]
	require.NotNil(t, demo)
	// 未知类别 ID 跳过
	assert.Equal(t, []string{"CMS"}, demo.Categories)
}

func TestReportMetadataPassthrough(t *testing.T) {
	engine := newTestEngine(t, `{
		"Demo": {
			"cats": [1],
			"html": "demo",
			"description": "demo product",
			"website": "https://demo.example",
			"cpe": "cpe:2.3:a:demo:demo:*:*:*:*:*:*:*:*",
			"oss": true
		}
	}`)
	page := &WebPage{URL: "https://example.com", HTML: "demo page"}

	report, err := engine.Inspect(page, Options{})
	require.NoError(t, err)
	demo := flatTechnologies(t, report)["Demo"]
	require.NotNil(t, demo)
	assert.Equal(t, "demo product", demo.Description)
	assert.Equal(t, "https://demo.example", demo.Website)
	assert.True(t, demo.OSS)
	assert.False(t, demo.SaaS)
}
