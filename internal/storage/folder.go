package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"sync"
	"time"

	"teampulse.app/agent/internal/models"
)

const (
	// RecordFileName 共享文件夹中的数据文件名
	RecordFileName = "team_accomplishments.json"

	// ProbeFileName 连接探测使用的临时文件名
	ProbeFileName = "teampulse_test.json"
)

// FolderBackend 共享文件夹存储后端
type FolderBackend struct {
	mu     sync.RWMutex
	handle DirectoryHandle
	now    func() time.Time
}

// NewFolderBackend 创建共享文件夹后端（未绑定目录）
func NewFolderBackend() *FolderBackend {
	return &FolderBackend{now: time.Now}
}

// Type 返回后端类型
func (b *FolderBackend) Type() models.StorageType {
	return models.StorageSharedFolder
}

// Bind 绑定目录句柄，nil 表示解除绑定
func (b *FolderBackend) Bind(handle DirectoryHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handle = handle
}

// Handle 当前绑定的目录句柄
func (b *FolderBackend) Handle() DirectoryHandle {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.handle
}

// SaveAll 以 {accomplishments, lastUpdated, version} 格式写入数据文件
func (b *FolderBackend) SaveAll(records []models.Accomplishment) error {
	handle := b.Handle()
	if handle == nil {
		return fmt.Errorf("%w: %w", ErrIO, ErrNoHandle)
	}

	data, err := encodeRecordFile(records, b.now())
	if err != nil {
		return err
	}

	file, err := handle.GetFile(RecordFileName, true)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrIO, RecordFileName, err)
	}
	if err := file.Write(data); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrIO, RecordFileName, err)
	}
	return nil
}

// LoadAll 读取数据文件，文件不存在或读取失败时返回空列表
func (b *FolderBackend) LoadAll() []models.Accomplishment {
	return loadAll(b)
}

func (b *FolderBackend) load() ([]models.Accomplishment, error) {
	handle := b.Handle()
	if handle == nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, ErrNoHandle)
	}

	file, err := handle.GetFile(RecordFileName, false)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// 首次使用，文件还不存在
			return []models.Accomplishment{}, nil
		}
		return nil, fmt.Errorf("%w: open %s: %w", ErrIO, RecordFileName, err)
	}

	data, err := file.Read()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []models.Accomplishment{}, nil
		}
		return nil, fmt.Errorf("%w: read %s: %w", ErrIO, RecordFileName, err)
	}

	return decodeRecords(data)
}

// TestConnection 写入探测文件并删除，成功返回 true
func (b *FolderBackend) TestConnection() bool {
	handle := b.Handle()
	if handle == nil {
		return false
	}

	if err := probe(handle, b.now()); err != nil {
		log.Printf("Shared folder connection test failed: %v", err)
		// 尽量清理，避免残留探测文件
		_ = handle.RemoveEntry(ProbeFileName)
		return false
	}
	return true
}

func probe(handle DirectoryHandle, now time.Time) error {
	payload, err := json.Marshal(map[string]any{
		"test":      true,
		"timestamp": now.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	file, err := handle.GetFile(ProbeFileName, true)
	if err != nil {
		return fmt.Errorf("create probe file: %w", err)
	}
	if err := file.Write(payload); err != nil {
		return fmt.Errorf("write probe file: %w", err)
	}
	written, err := file.Read()
	if err != nil {
		return fmt.Errorf("verify probe file: %w", err)
	}
	if string(written) != string(payload) {
		return errors.New("verify probe file: content mismatch")
	}
	if err := handle.RemoveEntry(ProbeFileName); err != nil {
		return fmt.Errorf("remove probe file: %w", err)
	}
	return nil
}
