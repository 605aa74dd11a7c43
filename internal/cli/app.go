package cli

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"teampulse.app/agent/config"
	"teampulse.app/agent/internal/logging"
	"teampulse.app/agent/internal/models"
	"teampulse.app/agent/internal/storage"
	"teampulse.app/agent/internal/summary"
)

// App 一次命令执行所需的组件
type App struct {
	Config     *models.Config
	ConfigPath string
	Store      *storage.Coordinator

	kv     *storage.KV
	dir    *storage.RootHandle
	logOut *logging.Output
}

// openApp 加载配置、设置日志并初始化存储
func openApp(configPath string, verbose bool) (*App, error) {
	if err := config.LoadEnvFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.EnsureDirectories(cfg); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	var logOut *logging.Output
	switch {
	case cfg.EnableLogging:
		logOut, err = logging.Setup(cfg.LogFile, cfg.MaxLogSizeMB, verbose)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	case !verbose:
		log.SetOutput(io.Discard)
	}

	app, err := newApp(cfg, configPath)
	if err != nil {
		if logOut != nil {
			logOut.Close()
		}
		return nil, err
	}
	app.logOut = logOut
	return app, nil
}

// newApp 基于已加载的配置初始化存储，配置了共享目录时在启动时绑定
func newApp(cfg *models.Config, configPath string) (*App, error) {
	kv, err := storage.OpenKV(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	store := storage.NewCoordinator(kv, storage.NewLocalBackend(kv), storage.NewFolderBackend())
	app := &App{
		Config:     cfg,
		ConfigPath: configPath,
		Store:      store,
		kv:         kv,
	}

	if cfg.SharedFolderDir != "" {
		if err := app.bindFolder(cfg.SharedFolderDir); err != nil {
			// 目录不可用时保持未绑定，读取降级为空
			log.Printf("Failed to bind shared folder %s: %v", cfg.SharedFolderDir, err)
		}
	}

	return app, nil
}

// bindFolder 打开目录并绑定到协调器，替换之前的句柄
func (a *App) bindFolder(path string) error {
	dir, err := storage.OpenDirectory(path)
	if err != nil {
		return err
	}
	if err := a.Store.BindFolderHandle(dir); err != nil {
		dir.Close()
		return err
	}
	if a.dir != nil {
		a.dir.Close()
	}
	a.dir = dir
	log.Printf("Shared folder bound: %s", dir.Path())
	return nil
}

// Close 释放存储和日志资源
func (a *App) Close() error {
	if a.dir != nil {
		a.dir.Close()
	}
	err := a.kv.Close()
	if a.logOut != nil {
		a.logOut.Close()
	}
	return err
}

// Completer 根据配置选择补全后端
func (a *App) Completer(useMock bool) summary.Completer {
	if useMock || a.Config.UseMock {
		return summary.NewMockClient(time.Duration(a.Config.MockDelayMS) * time.Millisecond)
	}
	var opts []summary.RemoteOption
	if token := os.Getenv("TEAMPULSE_API_TOKEN"); token != "" {
		opts = append(opts, summary.WithBearerToken(token))
	}
	return summary.NewRemoteClient(a.Config.APIBaseURL, opts...)
}

// Generator 创建报告生成器
func (a *App) Generator(useMock bool) *summary.Generator {
	return summary.NewGenerator(a.Store, summary.NewCompiler(a.Config.TemplatePath), a.Completer(useMock), a.Config.ReportDir)
}

// withApp 打开应用并在结束后关闭
func withApp(fn func(app *App) error) error {
	app, err := openApp(configPath, verbose)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}
