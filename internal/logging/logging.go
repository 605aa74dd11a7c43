package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Output 标准 log 的文件输出，支持运行期间轮转
type Output struct {
	mu           sync.Mutex
	path         string
	maxLogSizeMB int
	verbose      bool
	f            *os.File
}

// Setup 轮转并打开日志文件，将标准 log 输出重定向到该文件。
// verbose 为 true 时同时输出到 stderr。
func Setup(logFile string, maxLogSizeMB int, verbose bool) (*Output, error) {
	if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	o := &Output{path: logFile, maxLogSizeMB: maxLogSizeMB, verbose: verbose}

	rotated, err := RotateIfNeeded(logFile, maxLogSizeMB)
	if err != nil {
		log.Printf("Log rotation failed: %v", err)
	}
	if err := o.open(); err != nil {
		return nil, err
	}
	if rotated {
		log.Printf("Log file rotated: %s -> %s.old", logFile, logFile)
	}
	return o, nil
}

func (o *Output) open() error {
	f, err := os.OpenFile(o.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	if o.verbose {
		log.SetOutput(io.MultiWriter(f, os.Stderr))
	} else {
		log.SetOutput(f)
	}
	o.f = f
	return nil
}

// Path 日志文件路径
func (o *Output) Path() string {
	return o.path
}

// Rotate 超过大小限制时轮转并重新打开日志文件
func (o *Output) Rotate() (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	rotated, err := RotateIfNeeded(o.path, o.maxLogSizeMB)
	if err != nil || !rotated {
		return false, err
	}

	old := o.f
	if err := o.open(); err != nil {
		return true, err
	}
	if old != nil {
		old.Close()
	}
	log.Printf("Log file rotated: %s -> %s.old", o.path, o.path)
	return true, nil
}

// Close 恢复 stderr 输出并关闭日志文件
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	log.SetOutput(os.Stderr)
	if o.f == nil {
		return nil
	}
	err := o.f.Close()
	o.f = nil
	return err
}

// RotateIfNeeded 日志超过 maxLogSizeMB 时重命名为 .old，返回是否发生轮转
func RotateIfNeeded(logFile string, maxLogSizeMB int) (bool, error) {
	if maxLogSizeMB <= 0 {
		// 未设置大小限制，跳过
		return false, nil
	}

	info, err := os.Stat(logFile)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat log file: %w", err)
	}

	fileSizeMB := float64(info.Size()) / (1024 * 1024)
	if fileSizeMB <= float64(maxLogSizeMB) {
		return false, nil
	}

	oldLogFile := logFile + ".old"

	// 如果 .old 文件已存在，先删除
	if _, err := os.Stat(oldLogFile); err == nil {
		if err := os.Remove(oldLogFile); err != nil {
			return false, fmt.Errorf("remove old backup: %w", err)
		}
	}

	if err := os.Rename(logFile, oldLogFile); err != nil {
		return false, fmt.Errorf("rename log file: %w", err)
	}
	return true, nil
}
