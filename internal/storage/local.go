package storage

import (
	"encoding/json"
	"fmt"

	"teampulse.app/agent/internal/models"
)

// LocalBackend 本地键值存储后端，整份集合保存为一个键
type LocalBackend struct {
	kv *KV
}

// NewLocalBackend 创建本地后端
func NewLocalBackend(kv *KV) *LocalBackend {
	return &LocalBackend{kv: kv}
}

// Type 返回后端类型
func (b *LocalBackend) Type() models.StorageType {
	return models.StorageLocal
}

// SaveAll 覆盖保存全部记录
func (b *LocalBackend) SaveAll(records []models.Accomplishment) error {
	if records == nil {
		records = []models.Accomplishment{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal accomplishments: %w", err)
	}
	if err := b.kv.PutBytes(KeyAccomplishments, data); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrIO, KeyAccomplishments, err)
	}
	return nil
}

// LoadAll 读取全部记录，不存在或格式错误时返回空列表
func (b *LocalBackend) LoadAll() []models.Accomplishment {
	return loadAll(b)
}

// TestConnection 本地后端始终可用
func (b *LocalBackend) TestConnection() bool {
	return true
}

func (b *LocalBackend) load() ([]models.Accomplishment, error) {
	data, ok, err := b.kv.GetBytes(KeyAccomplishments)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrIO, KeyAccomplishments, err)
	}
	if !ok {
		return []models.Accomplishment{}, nil
	}
	return decodeRecords(data)
}
