package tasks

import (
	"context"
	"errors"
	"log"
	"time"

	"teampulse.app/agent/internal/models"
	"teampulse.app/agent/internal/scheduler"
)

// StorageCheckInterval 共享文件夹连接检查间隔
const StorageCheckInterval = 5 * time.Minute

// ErrFolderUnreachable 共享文件夹探测失败
var ErrFolderUnreachable = errors.New("shared folder unreachable")

// ConnectionChecker 存储协调器的连接检查能力
type ConnectionChecker interface {
	CheckConnection() bool
	Status() models.StorageStatus
}

// StorageCheckTask 定期探测共享文件夹，状态变化时记录日志
type StorageCheckTask struct {
	scheduler.Interval
	store ConnectionChecker
	last  *bool
}

// NewStorageCheckTask 创建连接检查任务
func NewStorageCheckTask(store ConnectionChecker) *StorageCheckTask {
	return &StorageCheckTask{
		Interval: scheduler.Interval{Every: StorageCheckInterval},
		store:    store,
	}
}

// ID 返回任务 ID
func (t *StorageCheckTask) ID() string {
	return "storage-check"
}

// Name 返回任务名称
func (t *StorageCheckTask) Name() string {
	return "共享文件夹连接检查"
}

// Execute 仅当当前后端为已绑定的共享文件夹时探测
func (t *StorageCheckTask) Execute(context.Context) error {
	status := t.store.Status()
	if status.StorageType != models.StorageSharedFolder || status.FolderState == models.FolderUnbound {
		return nil
	}

	ok := t.store.CheckConnection()
	if t.last == nil || *t.last != ok {
		log.Printf("Shared folder %q connection: %v", status.SharedFolderPath, ok)
	}
	t.last = &ok

	if !ok {
		return ErrFolderUnreachable
	}
	return nil
}
