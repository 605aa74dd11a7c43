package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
	"teampulse.app/agent/internal/models"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *models.Config {
	homeDir, _ := os.UserHomeDir()
	base := filepath.Join(homeDir, "teampulse")
	return &models.Config{
		DataDir:       filepath.Join(base, "data"),
		ReportDir:     filepath.Join(base, "reports"),
		LogFile:       filepath.Join(base, "logs", "app.log"),
		MaxLogSizeMB:  10,
		EnableLogging: true,
		APIBaseURL:    "http://localhost:7071/api",
		Model:         "gpt-4.1",
		MockDelayMS:   1500,
		Proxy: models.ProxyConfig{
			Addr:       ":7071",
			APIVersion: "2025-01-01-preview",
		},
	}
}

// DefaultPath 默认配置文件路径
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "teampulse", "config.yaml")
}

// Load 从文件加载配置，如果不存在则使用默认配置
// 支持 YAML 和 JSON 格式，根据文件扩展名自动识别；环境变量优先级最高
func Load(configPath string) (*models.Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := decode(configPath, data, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	resolvePaths(cfg)

	return cfg, nil
}

func decode(configPath string, data []byte, cfg *models.Config) error {
	ext := strings.ToLower(filepath.Ext(configPath))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse JSON config: %w", err)
		}
	default:
		// 默认使用 YAML，失败再尝试 JSON
		if err := yaml.Unmarshal(data, cfg); err != nil {
			if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
				return fmt.Errorf("parse config (tried YAML and JSON): YAML error: %w, JSON error: %v", err, jsonErr)
			}
		}
	}
	return nil
}

// applyEnvOverrides 用环境变量覆盖配置
func applyEnvOverrides(cfg *models.Config) {
	set := func(dst *string, key string) {
		if val := os.Getenv(key); val != "" {
			*dst = val
		}
	}
	set(&cfg.APIBaseURL, "TEAMPULSE_API_BASE_URL")
	set(&cfg.Model, "TEAMPULSE_MODEL")
	set(&cfg.Proxy.Endpoint, "AZURE_OPENAI_ENDPOINT")
	set(&cfg.Proxy.Deployment, "AZURE_OPENAI_DEPLOYMENT_NAME")
	set(&cfg.Proxy.APIVersion, "AZURE_OPENAI_API_VERSION")
}

// LoadEnvFile 从 .env 文件加载环境变量（本地开发时存放 AZURE_* 凭证），
// 文件不存在时忽略，已有的环境变量不会被覆盖
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// resolvePaths 根据 WorkDir 解析配置中的路径
func resolvePaths(cfg *models.Config) {
	if cfg.WorkDir != "" {
		if absPath, err := filepath.Abs(cfg.WorkDir); err == nil {
			cfg.WorkDir = absPath
		}
	}

	resolve := func(path string) string {
		if path == "" || filepath.IsAbs(path) || cfg.WorkDir == "" {
			return path
		}
		return filepath.Join(cfg.WorkDir, path)
	}

	cfg.DataDir = resolve(cfg.DataDir)
	cfg.ReportDir = resolve(cfg.ReportDir)
	cfg.LogFile = resolve(cfg.LogFile)
	cfg.SharedFolderDir = resolve(cfg.SharedFolderDir)
	cfg.TemplatePath = resolve(cfg.TemplatePath)
}

// Save 保存配置到文件
// 根据文件扩展名自动选择 YAML 或 JSON 格式
func Save(cfg *models.Config, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".json":
		data, err = json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON config: %w", err)
		}
	default:
		data, err = yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshal YAML config: %w", err)
		}
	}

	return os.WriteFile(configPath, data, 0644)
}

// EnsureDirectories 确保必要的目录存在
func EnsureDirectories(cfg *models.Config) error {
	dirs := []string{cfg.DataDir, cfg.ReportDir}
	if cfg.LogFile != "" {
		dirs = append(dirs, filepath.Dir(cfg.LogFile))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
