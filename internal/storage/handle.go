package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DirectoryHandle 用户授权的目录能力，核心只接收和保存，从不自行构造授权
type DirectoryHandle interface {
	// Name 目录显示名
	Name() string

	// GetFile 打开目录中的文件，create 为 true 时不存在则创建
	// 文件不存在且 create 为 false 时返回的错误满足 errors.Is(err, fs.ErrNotExist)
	GetFile(name string, create bool) (FileHandle, error)

	// RemoveEntry 删除目录中的文件
	RemoveEntry(name string) error
}

// FileHandle 目录中的单个文件
type FileHandle interface {
	Read() ([]byte, error)
	Write(data []byte) error
}

// RootHandle 基于 os.Root 的目录句柄，所有访问都限制在授权目录内
type RootHandle struct {
	root *os.Root
	name string
}

// OpenDirectory 打开本地目录作为目录句柄
func OpenDirectory(path string) (*RootHandle, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	root, err := os.OpenRoot(abs)
	if err != nil {
		return nil, fmt.Errorf("open directory %s: %w", abs, err)
	}
	return &RootHandle{root: root, name: filepath.Base(abs)}, nil
}

// Name 目录显示名
func (h *RootHandle) Name() string {
	return h.name
}

// Path 目录绝对路径
func (h *RootHandle) Path() string {
	return h.root.Name()
}

// Close 释放目录
func (h *RootHandle) Close() error {
	return h.root.Close()
}

// GetFile 打开目录中的文件
func (h *RootHandle) GetFile(name string, create bool) (FileHandle, error) {
	if create {
		f, err := h.root.OpenFile(name, os.O_RDWR|os.O_CREATE, 0644)
		if err != nil {
			return nil, err
		}
		_ = f.Close()
	} else if _, err := h.root.Stat(name); err != nil {
		return nil, err
	}
	return &rootFile{root: h.root, name: name}, nil
}

// RemoveEntry 删除目录中的文件
func (h *RootHandle) RemoveEntry(name string) error {
	return h.root.Remove(name)
}

type rootFile struct {
	root *os.Root
	name string
}

func (f *rootFile) Read() ([]byte, error) {
	file, err := f.root.Open(f.name)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

func (f *rootFile) Write(data []byte) error {
	file, err := f.root.OpenFile(f.name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
