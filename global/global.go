package global

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// ServerConfig 服务配置
type ServerConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	Worker  int    `mapstructure:"worker"`   // 任务执行者数量
	RootDir string `mapstructure:"root_dir"` // 数据目录
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Path       string `mapstructure:"path"` // 为空时只输出到标准输出
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// EngineConfig 识别引擎配置
type EngineConfig struct {
	FingerDir string `mapstructure:"finger_dir"` // 指纹库目录，为空时使用内置指纹库
	Workers   int    `mapstructure:"workers"`    // 单次识别的并发数
}

// ScraperConfig 采集配置
type ScraperConfig struct {
	Kind                  string `mapstructure:"kind"` // rod 或 colly
	TimeoutSeconds        int    `mapstructure:"timeout_seconds"`
	LoadingTimeoutSeconds int    `mapstructure:"loading_timeout_seconds"`
	PageSize              int    `mapstructure:"page_size"` // 浏览器页面池大小
	MaxVisitedLinks       int    `mapstructure:"max_visited_links"`
	DelaySeconds          int    `mapstructure:"delay_seconds"` // 递归抓取的间隔
}

type AppConfig struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logger  LoggerConfig  `mapstructure:"logger"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Scraper ScraperConfig `mapstructure:"scraper"`
}

// Config 全局配置，InitConfig 之后可用
var Config = defaultConfig()

func defaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Host:   "0.0.0.0",
			Port:   8080,
			Worker: 5,
		},
		Logger: LoggerConfig{
			Level:      "info",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
		},
		Engine: EngineConfig{
			Workers: 10,
		},
		Scraper: ScraperConfig{
			Kind:                  "rod",
			TimeoutSeconds:        8,
			LoadingTimeoutSeconds: 4,
			PageSize:              5,
			MaxVisitedLinks:       10,
			DelaySeconds:          1,
		},
	}
}

// InitConfig 加载配置文件和环境变量，配置文件可省略
func InitConfig(configPath string) error {
	v := viper.New()
	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}
	v.SetEnvPrefix("INSPECTRA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// 配置文件缺失时使用默认值加环境变量
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && configPath != "" {
			return errors.Wrap(err, "读取配置文件失败")
		}
	}

	config := defaultConfig()
	if err := v.Unmarshal(config); err != nil {
		return errors.Wrap(err, "解析配置失败")
	}
	Config = config
	return nil
}
