package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayout 记录日期格式
const DateLayout = "2006-01-02"

// ErrValidation 调用方输入不合法（缺少必填字段等），不重试
var ErrValidation = errors.New("validation error")

// Category 成果分类
type Category string

const (
	CategoryFeature  Category = "Feature"
	CategoryBugFix   Category = "Bug Fix"
	CategoryProcess  Category = "Process"
	CategoryTeam     Category = "Team"
	CategoryLearning Category = "Learning"
)

// Categories 返回全部分类（固定顺序）
func Categories() []Category {
	return []Category{CategoryFeature, CategoryBugFix, CategoryProcess, CategoryTeam, CategoryLearning}
}

// ParseCategory 解析分类名称，忽略大小写，支持 BugFix 等写法
func ParseCategory(s string) (Category, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	switch key {
	case "bugfix", "bug-fix", "bug_fix":
		return CategoryBugFix, nil
	}
	for _, c := range Categories() {
		if strings.ToLower(string(c)) == key {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unknown category %q", ErrValidation, s)
}

// Valid 是否为已知分类
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// ID 记录唯一标识
// 旧版本地数据中 id 可能是数字（时间戳），反序列化时一并接受
type ID string

// UnmarshalJSON 同时接受字符串和数字
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// NewID 生成新的记录 ID
func NewID() ID {
	return ID(uuid.New().String())
}

// Accomplishment 表示一条团队成果记录
type Accomplishment struct {
	ID           ID       `json:"id"`                     // 创建时分配，不可变
	Title        string   `json:"title"`                  // 标题
	Date         string   `json:"date"`                   // 格式: YYYY-MM-DD
	Category     Category `json:"category"`               // 分类
	Description  string   `json:"description"`            // 描述
	Contributors string   `json:"contributors,omitempty"` // 贡献者（逗号分隔）
}

// NewAccomplishment 创建并校验一条新记录
func NewAccomplishment(title, date string, category Category, description, contributors string) (Accomplishment, error) {
	a := Accomplishment{
		ID:           NewID(),
		Title:        strings.TrimSpace(title),
		Date:         strings.TrimSpace(date),
		Category:     category,
		Description:  strings.TrimSpace(description),
		Contributors: strings.TrimSpace(contributors),
	}
	if err := a.Validate(); err != nil {
		return Accomplishment{}, err
	}
	return a, nil
}

// Validate 校验必填字段
func (a Accomplishment) Validate() error {
	if strings.TrimSpace(a.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(a.Date) == "" {
		return fmt.Errorf("%w: date is required", ErrValidation)
	}
	if _, err := a.Day(); err != nil {
		return fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrValidation, a.Date)
	}
	if !a.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrValidation, a.Category)
	}
	if strings.TrimSpace(a.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrValidation)
	}
	return nil
}

// Day 解析记录日期
func (a Accomplishment) Day() (time.Time, error) {
	return time.Parse(DateLayout, a.Date)
}

// StorageType 存储后端类型
type StorageType string

const (
	StorageLocal        StorageType = "local"
	StorageSharedFolder StorageType = "sharedfolder"
)

// ParseStorageType 解析存储类型，未知值回退到 local
func ParseStorageType(s string) StorageType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sharedfolder", "shared-folder", "shared_folder", "folder":
		return StorageSharedFolder
	default:
		return StorageLocal
	}
}

// FolderState 共享文件夹后端的连接状态
type FolderState string

const (
	FolderUnbound   FolderState = "unbound"   // 未绑定目录句柄
	FolderBound     FolderState = "bound"     // 已绑定，未验证
	FolderConnected FolderState = "connected" // 探测写入成功
)

// StorageStatus 存储状态快照
type StorageStatus struct {
	StorageType      StorageType `json:"storageType"`
	SharedFolderPath string      `json:"sharedFolderPath"`
	Connected        bool        `json:"connected"`
	FolderState      FolderState `json:"folderState"`
	LastLoadError    string      `json:"lastLoadError,omitempty"`
}

// Config 应用配置
type Config struct {
	WorkDir         string `yaml:"work_dir" json:"work_dir"`                   // 相对路径的基准目录
	DataDir         string `yaml:"data_dir" json:"data_dir"`                   // 数据目录（bbolt 文件）
	ReportDir       string `yaml:"report_dir" json:"report_dir"`               // 报告目录
	LogFile         string `yaml:"log_file" json:"log_file"`                   // 日志文件
	MaxLogSizeMB    int    `yaml:"max_log_size_mb" json:"max_log_size_mb"`     // 日志轮转阈值（MB）
	EnableLogging   bool   `yaml:"enable_logging" json:"enable_logging"`       // 是否写日志文件
	SharedFolderDir string `yaml:"shared_folder_dir" json:"shared_folder_dir"` // 用户授权的共享目录

	// 报告生成配置
	APIBaseURL   string `yaml:"api_base_url" json:"api_base_url"`     // 代理地址，如 http://localhost:7071/api
	Model        string `yaml:"model" json:"model"`                   // 模型/部署名
	UseMock      bool   `yaml:"use_mock" json:"use_mock"`             // 使用离线生成器
	MockDelayMS  int    `yaml:"mock_delay_ms" json:"mock_delay_ms"`   // 离线生成器模拟延迟
	TemplatePath string `yaml:"template_path" json:"template_path"`   // 自定义提示词模板

	Proxy ProxyConfig `yaml:"proxy" json:"proxy"`
}

// ProxyConfig 代理服务配置，密钥只从环境变量读取
type ProxyConfig struct {
	Addr       string `yaml:"addr" json:"addr"`
	Endpoint   string `yaml:"endpoint" json:"endpoint"`
	Deployment string `yaml:"deployment" json:"deployment"`
	APIVersion string `yaml:"api_version" json:"api_version"`
}
