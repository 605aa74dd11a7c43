package storage

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"teampulse.app/agent/internal/models"
)

// Coordinator 存储协调器：决定当前后端，对外提供统一的保存/读取/迁移入口
type Coordinator struct {
	mu       sync.Mutex // 保护状态字段
	saveMu   sync.Mutex // 串行化写入，避免慢写覆盖后到的快写
	prefs    PreferenceStore
	backends map[models.StorageType]Backend
	folder   *FolderBackend

	storageType   models.StorageType
	folderPath    string
	folderState   models.FolderState
	lastLoadError string
}

// Option 单次保存/读取的覆盖参数
type Option func(*target)

type target struct {
	storageType models.StorageType
	folderPath  string
}

// WithBackend 覆盖本次操作使用的后端
func WithBackend(t models.StorageType) Option {
	return func(tg *target) {
		if t != "" {
			tg.storageType = t
		}
	}
}

// WithFolderPath 覆盖本次操作的共享文件夹显示路径
func WithFolderPath(path string) Option {
	return func(tg *target) {
		tg.folderPath = path
	}
}

// NewCoordinator 创建协调器并从偏好存储加载配置
func NewCoordinator(prefs PreferenceStore, local Backend, folder *FolderBackend) *Coordinator {
	c := &Coordinator{
		prefs:  prefs,
		folder: folder,
		backends: map[models.StorageType]Backend{
			models.StorageLocal:        local,
			models.StorageSharedFolder: folder,
		},
		folderState: models.FolderUnbound,
	}
	c.Reload()
	return c
}

// Reload 重新读取持久化的偏好，缺省为 local
func (c *Coordinator) Reload() {
	c.mu.Lock()
	defer c.mu.Unlock()

	value, _ := c.prefs.Get(KeyStorageType)
	c.storageType = models.ParseStorageType(value)
	c.folderPath, _ = c.prefs.Get(KeySharedFolder)
}

// SetBackend 切换当前后端并立即持久化偏好
func (c *Coordinator) SetBackend(t models.StorageType) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setBackendLocked(t)
}

func (c *Coordinator) setBackendLocked(t models.StorageType) error {
	c.storageType = t
	if err := c.prefs.Set(KeyStorageType, string(t)); err != nil {
		return fmt.Errorf("persist storage type: %w", err)
	}
	return nil
}

// SetFolderPath 设置共享文件夹显示路径并立即持久化
func (c *Coordinator) SetFolderPath(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setFolderPathLocked(path)
}

func (c *Coordinator) setFolderPathLocked(path string) error {
	c.folderPath = path
	if err := c.prefs.Set(KeySharedFolder, path); err != nil {
		return fmt.Errorf("persist shared folder: %w", err)
	}
	return nil
}

// BindFolderHandle 绑定外部获取的目录句柄，显示路径取自句柄名称
func (c *Coordinator) BindFolderHandle(handle DirectoryHandle) error {
	c.folder.Bind(handle)

	c.mu.Lock()
	defer c.mu.Unlock()

	if handle == nil {
		c.folderState = models.FolderUnbound
		return nil
	}
	c.folderState = models.FolderBound
	if name := handle.Name(); name != "" {
		return c.setFolderPathLocked(name)
	}
	return nil
}

// resolve 计算本次操作的有效后端，不修改偏好
func (c *Coordinator) resolve(opts []Option) (Backend, target, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tg := target{storageType: c.storageType}
	for _, opt := range opts {
		opt(&tg)
	}

	backend, ok := c.backends[tg.storageType]
	if !ok || backend == nil {
		return nil, tg, fmt.Errorf("unknown storage type %q", tg.storageType)
	}
	return backend, tg, nil
}

// rememberFolderPath 路径覆盖与当前不同时更新偏好
func (c *Coordinator) rememberFolderPath(tg target) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tg.storageType == models.StorageSharedFolder && tg.folderPath != "" && tg.folderPath != c.folderPath {
		return c.setFolderPathLocked(tg.folderPath)
	}
	return nil
}

// Save 校验并保存全部记录到有效后端，成功后才记住路径覆盖
func (c *Coordinator) Save(records []models.Accomplishment, opts ...Option) error {
	backend, tg, err := c.resolve(opts)
	if err != nil {
		return err
	}
	if err := c.saveTo(backend, records); err != nil {
		return err
	}
	return c.rememberFolderPath(tg)
}

func (c *Coordinator) saveTo(backend Backend, records []models.Accomplishment) error {
	if err := validateRecords(records); err != nil {
		return err
	}

	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	if err := backend.SaveAll(records); err != nil {
		log.Printf("Failed to save accomplishments to %s: %v", backend.Type(), err)
		if backend.Type() == models.StorageSharedFolder {
			c.demoteFolder()
		}
		return err
	}
	return nil
}

// validateRecords 持久化前校验每条记录的必填字段
func validateRecords(records []models.Accomplishment) error {
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("record %d (id %q): %w", i, r.ID, err)
		}
	}
	return nil
}

// demoteFolder 写入失败后撤销信任，保留句柄
func (c *Coordinator) demoteFolder() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.folderState == models.FolderConnected {
		c.folderState = models.FolderBound
	}
}

// Load 从有效后端读取全部记录，失败时返回空列表
func (c *Coordinator) Load(opts ...Option) []models.Accomplishment {
	records, err := c.LoadStrict(opts...)
	if err != nil {
		return []models.Accomplishment{}
	}
	return records
}

// LoadStrict 与 Load 相同，但读取失败时返回错误，供先读后写的调用方使用
func (c *Coordinator) LoadStrict(opts ...Option) ([]models.Accomplishment, error) {
	backend, tg, err := c.resolve(opts)
	if err != nil {
		log.Printf("Failed to load accomplishments: %v", err)
		c.setLoadError(err)
		return nil, err
	}
	if err := c.rememberFolderPath(tg); err != nil {
		return nil, err
	}

	records, err := backend.load()
	c.setLoadError(err)
	if err != nil {
		log.Printf("Failed to load accomplishments from %s: %v", backend.Type(), err)
		if !errors.Is(err, ErrIO) {
			err = fmt.Errorf("%w: %w", ErrIO, err)
		}
		return nil, err
	}
	return records, nil
}

func (c *Coordinator) setLoadError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.lastLoadError = err.Error()
	} else {
		c.lastLoadError = ""
	}
}

// Migrate 从源后端迁移数据到目标后端，两步都成功后才切换当前后端并记住目标路径
func (c *Coordinator) Migrate(from, to models.StorageType, fromPath, toPath string) error {
	source, _, err := c.resolve([]Option{WithBackend(from), WithFolderPath(fromPath)})
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	records, err := source.load()
	if err != nil {
		log.Printf("Data migration failed while loading from %s: %v", from, err)
		return fmt.Errorf("migrate: load from %s: %w", from, err)
	}

	dest, _, err := c.resolve([]Option{WithBackend(to), WithFolderPath(toPath)})
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := c.saveTo(dest, records); err != nil {
		log.Printf("Data migration failed while saving to %s: %v", to, err)
		return fmt.Errorf("migrate: save to %s: %w", to, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.setBackendLocked(to); err != nil {
		return err
	}
	if to == models.StorageSharedFolder && toPath != "" {
		if err := c.setFolderPathLocked(toPath); err != nil {
			return err
		}
	}

	log.Printf("Migrated %d accomplishment(s) from %s to %s", len(records), from, to)
	return nil
}

// TestConnection 探测共享文件夹后端，并更新连接状态
func (c *Coordinator) TestConnection() bool {
	ok := c.folder.TestConnection()

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case ok:
		c.folderState = models.FolderConnected
	case c.folder.Handle() != nil:
		c.folderState = models.FolderBound
	default:
		c.folderState = models.FolderUnbound
	}
	return ok
}

// CheckConnection 仅当当前后端为共享文件夹且已绑定句柄时才探测
func (c *Coordinator) CheckConnection() bool {
	c.mu.Lock()
	active := c.storageType
	c.mu.Unlock()

	if active != models.StorageSharedFolder || c.folder.Handle() == nil {
		return false
	}
	return c.TestConnection()
}

// Status 返回当前状态快照，不做任何 I/O
func (c *Coordinator) Status() models.StorageStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return models.StorageStatus{
		StorageType:      c.storageType,
		SharedFolderPath: c.folderPath,
		Connected:        c.folderState == models.FolderConnected,
		FolderState:      c.folderState,
		LastLoadError:    c.lastLoadError,
	}
}
