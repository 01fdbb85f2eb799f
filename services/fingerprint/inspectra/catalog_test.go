package inspectra

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalogDir(t *testing.T, technologies map[string]string, categories string) string {
	t.Helper()
	dir := t.TempDir()
	techDir := filepath.Join(dir, "technologies")
	require.NoError(t, os.MkdirAll(techDir, 0o755))
	for name, content := range technologies {
		require.NoError(t, os.WriteFile(filepath.Join(techDir, name), []byte(content), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "categories.json"), []byte(categories), 0o644))
	return dir
}

func TestLoadCatalogEmbedded(t *testing.T) {
	engine, err := New(nil, logrus.New())
	require.NoError(t, err)
	assert.Greater(t, engine.Count(), 0)
}

func TestLoadCatalogDir(t *testing.T) {
	dir := writeCatalogDir(t, map[string]string{
		"a.json": `{"Nginx": {"cats": [22], "headers": {"Server": "nginx"}}}`,
		"b.yaml": "Apache:\n  cats: [22]\n  headers:\n    Server: apache\n",
	}, `{"22": {"name": "Web servers", "priority": 8}}`)

	engine, err := New(&Config{FingerDir: dir}, logrus.New())
	require.NoError(t, err)
	assert.Equal(t, 2, engine.Count())
}

func TestLoadCatalogMalformedDocumentSkipped(t *testing.T) {
	dir := writeCatalogDir(t, map[string]string{
		"bad.json":  `{not valid json`,
		"good.json": `{"Nginx": {"cats": [22], "headers": {"Server": "nginx"}}}`,
	}, `{"22": {"name": "Web servers", "priority": 8}}`)

	engine, err := New(&Config{FingerDir: dir}, logrus.New())
	require.NoError(t, err)
	assert.Equal(t, 1, engine.Count())
}

func TestLoadCatalogMergeOverwrite(t *testing.T) {
	// 同名产品后读文档覆盖先读文档
	dir := writeCatalogDir(t, map[string]string{
		"1-first.json":  `{"Demo": {"cats": [22], "html": "first"}}`,
		"2-second.json": `{"Demo": {"cats": [22], "html": "second"}}`,
	}, `{"22": {"name": "Web servers", "priority": 8}}`)

	engine, err := New(&Config{FingerDir: dir}, logrus.New())
	require.NoError(t, err)
	require.Equal(t, 1, engine.Count())
	assert.Equal(t, "second", engine.apps["Demo"].HTML)
}

func TestLoadCatalogBrokenCategoriesNonFatal(t *testing.T) {
	// 类别文档损坏只丢失类别名，指纹照常加载生效
	dir := writeCatalogDir(t, map[string]string{
		"a.json": `{"Nginx": {"cats": [22], "headers": {"Server": "nginx"}}}`,
	}, `{broken`)

	engine, err := New(&Config{FingerDir: dir}, logrus.New())
	require.NoError(t, err)
	require.Equal(t, 1, engine.Count())

	page := &WebPage{
		URL:     "https://example.com",
		Headers: map[string][]string{"server": {"nginx/1.18.0"}},
	}
	report, err := engine.Inspect(page, Options{})
	require.NoError(t, err)
	technologies, ok := report.Technologies.(map[string]*Technology)
	require.True(t, ok)
	require.Contains(t, technologies, "Nginx")
	assert.Empty(t, technologies["Nginx"].Categories)
}

func TestLoadCatalogEmptyFails(t *testing.T) {
	dir := writeCatalogDir(t, map[string]string{
		"bad.json": `{not valid json`,
	}, `{"22": {"name": "Web servers", "priority": 8}}`)

	_, err := New(&Config{FingerDir: dir}, logrus.New())
	assert.Error(t, err)
}

func TestReloadKeepsCatalogOnFailure(t *testing.T) {
	dir := writeCatalogDir(t, map[string]string{
		"a.json": `{"Nginx": {"cats": [22], "headers": {"Server": "nginx"}}}`,
	}, `{"22": {"name": "Web servers", "priority": 8}}`)

	engine, err := New(&Config{FingerDir: dir}, logrus.New())
	require.NoError(t, err)
	require.Equal(t, 1, engine.Count())

	// 指纹库目录损坏后重载失败，原有指纹继续可用
	require.NoError(t, os.RemoveAll(filepath.Join(dir, "technologies")))
	assert.Error(t, engine.Reload())
	assert.Equal(t, 1, engine.Count())
}
