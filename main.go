package main

import (
	"flag"
	"fmt"

	"github.com/gin-gonic/gin"

	"gitlab.example.com/zhangweijie/inspectra/global"
	"gitlab.example.com/zhangweijie/inspectra/middlerware/logger"
	"gitlab.example.com/zhangweijie/inspectra/routers"
	"gitlab.example.com/zhangweijie/inspectra/services/fingerprint/inspectra"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径")
	flag.Parse()

	if err := global.InitConfig(*configPath); err != nil {
		panic(err)
	}

	log := logger.InitLogger(global.Config.Logger)

	engine, err := inspectra.New(&inspectra.Config{
		FingerDir: global.Config.Engine.FingerDir,
		Workers:   global.Config.Engine.Workers,
	}, log)
	if err != nil {
		log.WithError(err).Fatal("初始化识别引擎出现错误")
	}
	log.Infof("指纹库加载完成，共 %d 条产品指纹", engine.Count())

	gin.SetMode(gin.ReleaseMode)
	ginEngine := gin.New()
	ginEngine.Use(gin.Recovery())

	routers.InitPingRouter(ginEngine)
	routers.InitInspectRouter(ginEngine, engine, log)
	routers.InitTechnologiesRouter(ginEngine, engine, log)

	addr := fmt.Sprintf("%s:%d", global.Config.Server.Host, global.Config.Server.Port)
	log.Infof("服务启动于 %s", addr)
	if err := ginEngine.Run(addr); err != nil {
		log.WithError(err).Fatal("服务启动失败")
	}
}
