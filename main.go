package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"slaparena/server"
)

// slaparena 入口：读取配置，启动 HTTP + WebSocket 服务，并预创建房间
func main() {
	var (
		configPath string
		addr       string
		logFile    string
		webDir     string
	)
	flag.StringVar(&configPath, "config", "", "path to YAML config (defaults are used when empty)")
	flag.StringVar(&addr, "addr", "", "server listen address, overrides server.addr, e.g. :8080")
	flag.StringVar(&logFile, "log", "", "log file path, overrides log.file")
	flag.StringVar(&webDir, "web", "web", "static files directory, empty to disable")
	flag.Parse()

	cfg, err := server.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if logFile != "" {
		cfg.Log.File = logFile
	}

	// 使用 zap 日志写入文件（带滚动）
	if err := server.InitLogger(cfg.Log); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer server.SyncLogger()

	rm, err := server.NewRoomManager(cfg.Room)
	if err != nil {
		server.Log.Fatalf("room manager: %v", err)
	}
	for _, spec := range cfg.Rooms {
		if err := rm.Preset(spec.ID, spec.Variant); err != nil {
			server.Log.Fatalf("preset room %s: %v", spec.ID, err)
		}
		if _, err := rm.GetOrCreateRoom(spec.ID, spec.Variant); err != nil {
			server.Log.Fatalf("create room %s: %v", spec.ID, err)
		}
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.SetupRoutes(rm, webDir),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		server.Log.Infof("slaparena listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			server.Log.Fatalf("listen: %v", err)
		}
	}()

	// 优雅退出（Ctrl+C）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	server.Log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		server.Log.Errorf("http shutdown: %v", err)
	}
	rm.Shutdown()
}
