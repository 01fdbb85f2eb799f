package inspectra

import (
	"embed"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

//go:embed assets
var assetsFS embed.FS

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Category 产品类别元数据
type Category struct {
	Name     string `json:"name"`
	Priority int    `json:"priority"`
}

// loadCatalog 加载指纹库。FingerDir 非空时从磁盘目录读取，
// 否则使用内置指纹数据。技术定义文档逐个合并，同名产品后读覆盖先读；
// 单个文档损坏时记录日志后跳过，指纹库尽量带病加载
func (ins *Inspectra) loadCatalog() error {
	apps := make(map[string]*application)
	categories := make(map[string]*Category)

	var loadErr error
	if ins.config.FingerDir != "" {
		loadErr = loadCatalogDir(ins.config.FingerDir, apps, categories, ins.logger)
	} else {
		loadErr = loadCatalogEmbedded(apps, categories, ins.logger)
	}
	if loadErr != nil {
		return loadErr
	}
	if len(apps) < 1 {
		return errors.New("无法加载指纹库产品数据")
	}

	signatures := make(map[string]*Signature, len(apps))
	for name, app := range apps {
		app.Name = name
		signatures[name] = newSignature(name, app)
	}

	ins.mu.Lock()
	ins.apps = apps
	ins.categories = categories
	ins.signatures = signatures
	ins.mu.Unlock()
	return nil
}

// loadCatalogDir 从磁盘目录读取 technologies/*.json|yaml 和 categories.json
func loadCatalogDir(dir string, apps map[string]*application, categories map[string]*Category, log logrus.FieldLogger) error {
	techDir := filepath.Join(dir, "technologies")
	files, err := os.ReadDir(techDir)
	if err != nil {
		return errors.Wrap(err, "读取指纹库目录失败")
	}
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(techDir, file.Name()))
		if err != nil {
			log.WithError(err).Warnf("无法读取指纹文档 %s", file.Name())
			continue
		}
		mergeTechnologyDocument(file.Name(), content, apps, log)
	}

	// 类别文档损坏只影响类别名展示，指纹库照常可用
	content, err := os.ReadFile(filepath.Join(dir, "categories.json"))
	if err != nil {
		log.WithError(err).Warn("无法读取产品类别文档")
		return nil
	}
	if err := parseCategoryDocument(content, categories); err != nil {
		log.WithError(err).Warn("无法解析产品类别文档")
	}
	return nil
}

// loadCatalogEmbedded 读取编译期内置的指纹数据
func loadCatalogEmbedded(apps map[string]*application, categories map[string]*Category, log logrus.FieldLogger) error {
	err := fs.WalkDir(assetsFS, "assets/technologies", func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return err
		}
		content, err := assetsFS.ReadFile(path)
		if err != nil {
			return err
		}
		mergeTechnologyDocument(entry.Name(), content, apps, log)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "读取内置指纹数据失败")
	}
	content, err := assetsFS.ReadFile("assets/categories.json")
	if err != nil {
		log.WithError(err).Warn("无法读取内置产品类别数据")
		return nil
	}
	if err := parseCategoryDocument(content, categories); err != nil {
		log.WithError(err).Warn("无法解析内置产品类别数据")
	}
	return nil
}

// mergeTechnologyDocument 解析单个技术定义文档并合并进指纹集合，
// 文档格式由扩展名决定，解析失败只影响该文档
func mergeTechnologyDocument(name string, content []byte, apps map[string]*application, log logrus.FieldLogger) {
	parsed := make(map[string]*application)
	var err error
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		err = json.Unmarshal(content, &parsed)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(content, &parsed)
	default:
		return
	}
	if err != nil {
		log.WithError(err).Warnf("无法解析指纹文档 %s", name)
		return
	}
	for key, app := range parsed {
		if app != nil {
			apps[key] = app
		}
	}
}

// parseCategoryDocument 类别文档键为类别 ID 字符串
func parseCategoryDocument(content []byte, categories map[string]*Category) error {
	return json.Unmarshal(content, &categories)
}
