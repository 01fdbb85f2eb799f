package inspectra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustApplication(t *testing.T, doc string) *application {
	t.Helper()
	app := &application{}
	require.NoError(t, json.Unmarshal([]byte(doc), app))
	return app
}

func TestNewSignatureChannels(t *testing.T) {
	app := mustApplication(t, `{
		"cats": [1],
		"html": "<generator>wordpress</generator>",
		"scriptSrc": ["wp-content", "wp-includes"],
		"headers": {"X-Powered-By": "php", "Server": "nginx"},
		"cookies": {"PHPSESSID": ""},
		"js": {"jQuery.fn.jquery": ""}
	}`)
	sig := newSignature("Demo", app)

	assert.Len(t, sig.list["html"], 1)
	assert.Len(t, sig.list["scriptSrc"], 2)
	// 字典型通道字段名小写归一
	assert.Contains(t, sig.fields["headers"], "x-powered-by")
	assert.Contains(t, sig.fields["headers"], "server")
	assert.Contains(t, sig.fields["cookies"], "phpsessid")
	// JS 表达式保持大小写
	assert.Contains(t, sig.js, "jQuery.fn.jquery")
	assert.NotContains(t, sig.js, "jquery.fn.jquery")
}

func TestParseDomRules(t *testing.T) {
	t.Run("裸字符串为存在性检查", func(t *testing.T) {
		app := mustApplication(t, `{"dom": "#wpadminbar"}`)
		sig := newSignature("Demo", app)
		require.Len(t, sig.dom, 1)
		assert.Equal(t, "#wpadminbar", sig.dom[0].selector)
		assert.Len(t, sig.dom[0].exists, 1)
	})

	t.Run("选择器列表", func(t *testing.T) {
		app := mustApplication(t, `{"dom": ["#a", "#b"]}`)
		sig := newSignature("Demo", app)
		assert.Len(t, sig.dom, 2)
	})

	t.Run("字典形式", func(t *testing.T) {
		app := mustApplication(t, `{"dom": {
			"link[href*='bootstrap']": {
				"exists": "",
				"text": "v([\\d.]+)\\;version:\\1",
				"attributes": {"href": "bootstrap"}
			}
		}}`)
		sig := newSignature("Demo", app)
		require.Len(t, sig.dom, 1)
		rule := sig.dom[0]
		assert.Equal(t, "link[href*='bootstrap']", rule.selector)
		assert.Len(t, rule.exists, 1)
		assert.Len(t, rule.text, 1)
		assert.Len(t, rule.attrs["href"], 1)
	})
}

func TestToStringSlice(t *testing.T) {
	assert.Equal(t, []string{"a"}, toStringSlice("a"))
	assert.Equal(t, []string{"a", "b"}, toStringSlice([]interface{}{"a", "b"}))
	assert.Equal(t, []string{"a"}, toStringSlice([]string{"a"}))
	assert.Empty(t, toStringSlice(nil))
	assert.Empty(t, toStringSlice(42))
}
