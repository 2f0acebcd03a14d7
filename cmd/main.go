package main

import (
	"log"
	"os"

	"go.uber.org/zap"
	"okx-stoch-sentry/pkg/config"
	"okx-stoch-sentry/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Println("加载配置失败:", err)
		return 1
	}

	// 初始化日志
	syncLogger, err := logger.Init(cfg.Log)
	if err != nil {
		log.Println("初始化日志失败:", err)
		return 1
	}
	defer syncLogger()

	app, err := NewApp(cfg)
	if err != nil {
		zap.L().Error("❌ 初始化失败", zap.Error(err))
		return 1
	}

	app.Start()
	app.WaitForShutdown()
	app.Stop()

	return exitCode(app.Err())
}

// exitCode 调度器异常退出时返回非零，交给守护进程重启
func exitCode(err error) int {
	if err != nil {
		return 1
	}
	return 0
}
