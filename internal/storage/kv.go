package storage

import (
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	kvFileName    = "teampulse.bolt"
	kvBucketPrefs = "prefs" // key: preference key -> raw value
)

// 持久化的偏好键
const (
	KeyStorageType     = "teampulse_storage_type"
	KeySharedFolder    = "teampulse_shared_folder"
	KeyAccomplishments = "teampulse_accomplishments"
)

// PreferenceStore 键值偏好存储（对应浏览器 localStorage）
type PreferenceStore interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// KV 基于 bbolt 的键值存储
type KV struct {
	db *bbolt.DB
}

// OpenKV 打开（或创建）dataDir 下的键值数据库
func OpenKV(dataDir string) (*KV, error) {
	path := filepath.Join(dataDir, kvFileName)

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(kvBucketPrefs))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &KV{db: db}, nil
}

// Close 关闭数据库
func (k *KV) Close() error {
	return k.db.Close()
}

// GetBytes 读取原始值，不存在时 ok 为 false
func (k *KV) GetBytes(key string) (value []byte, ok bool, err error) {
	err = k.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(kvBucketPrefs)).Get([]byte(key))
		if v == nil {
			return nil
		}
		// bbolt 返回的切片只在事务内有效
		value = append([]byte(nil), v...)
		ok = true
		return nil
	})
	return value, ok, err
}

// PutBytes 覆盖写入原始值
func (k *KV) PutBytes(key string, value []byte) error {
	return k.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(kvBucketPrefs)).Put([]byte(key), value)
	})
}

// Delete 删除键
func (k *KV) Delete(key string) error {
	return k.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(kvBucketPrefs)).Delete([]byte(key))
	})
}

// Get 实现 PreferenceStore，读取失败视为不存在
func (k *KV) Get(key string) (string, bool) {
	v, ok, err := k.GetBytes(key)
	if err != nil || !ok {
		return "", false
	}
	return string(v), true
}

// Set 实现 PreferenceStore
func (k *KV) Set(key, value string) error {
	return k.PutBytes(key, []byte(value))
}
