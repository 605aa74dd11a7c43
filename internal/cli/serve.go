package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"teampulse.app/agent/internal/models"
	"teampulse.app/agent/internal/proxy"
	"teampulse.app/agent/internal/scheduler"
	"teampulse.app/agent/internal/tasks"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the summary proxy in front of Azure OpenAI",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		return withApp(func(app *App) error {
			if addr == "" {
				addr = app.Config.Proxy.Addr
			}
			return RunServe(cmd.Context(), app, addr)
		})
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "监听地址（默认取配置 proxy.addr）")
}

// proxyConfig 由应用配置生成代理配置
func proxyConfig(pc models.ProxyConfig) proxy.Config {
	return proxy.Config{
		Endpoint:   pc.Endpoint,
		Deployment: pc.Deployment,
		APIVersion: pc.APIVersion,
	}
}

// RunServe 启动代理服务和后台任务，直到 ctx 取消
func RunServe(ctx context.Context, app *App, addr string) error {
	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	pcfg := proxyConfig(app.Config.Proxy)
	srv := proxy.NewServer(pcfg, proxy.NewAzureClient(pcfg, proxy.CredentialsFromEnv()))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := scheduler.NewScheduler(scheduler.DefaultHeartbeat)
	now := time.Now()
	sched.Register(tasks.NewStorageCheckTask(app.Store), now)
	if app.logOut != nil {
		sched.Register(tasks.NewLogRotateTask(app.logOut), now.Add(tasks.LogRotateInterval))
	}
	go func() {
		if err := sched.Start(ctx); err != nil {
			log.Printf("Scheduler error: %v", err)
		}
	}()

	if pcfg.Endpoint == "" {
		log.Println("Warning: AZURE_OPENAI_ENDPOINT is not configured; requests will fail with 500")
	}
	log.Printf("Summary proxy listening on %s", addr)
	fmt.Printf("Summary proxy listening on %s (Ctrl+C to stop)\n", addr)

	err := srv.Run(ctx, addr)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Println("Summary proxy stopped")
	return nil
}
