package storage

import (
	"errors"
	"log"

	"teampulse.app/agent/internal/models"
)

var (
	// ErrIO 存储读写或探测失败
	ErrIO = errors.New("storage i/o error")

	// ErrNoHandle 共享文件夹后端尚未绑定目录句柄
	ErrNoHandle = errors.New("no shared folder selected")
)

// Backend 成果记录存储后端接口
type Backend interface {
	// Type 返回后端类型
	Type() models.StorageType

	// SaveAll 覆盖保存全部记录
	SaveAll(records []models.Accomplishment) error

	// LoadAll 读取全部记录，任何失败都降级为空列表
	LoadAll() []models.Accomplishment

	// TestConnection 探测后端是否可写
	TestConnection() bool

	// load 严格读取，错误原样返回（迁移使用）
	load() ([]models.Accomplishment, error)
}

// loadAll 后端共用的降级策略：记录错误，返回空列表
func loadAll(b Backend) []models.Accomplishment {
	records, err := b.load()
	if err != nil {
		log.Printf("Failed to load from %s: %v", b.Type(), err)
		return []models.Accomplishment{}
	}
	return records
}
