package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"teampulse.app/agent/internal/models"
)

// RecordFileVersion 共享文件格式版本
const RecordFileVersion = "1.0"

// RecordFile 共享文件夹中的数据文件结构
type RecordFile struct {
	Accomplishments []models.Accomplishment `json:"accomplishments"`
	LastUpdated     time.Time               `json:"lastUpdated"`
	Version         string                  `json:"version"`
}

// encodeRecordFile 生成带包装的格式化 JSON
func encodeRecordFile(records []models.Accomplishment, now time.Time) ([]byte, error) {
	if records == nil {
		records = []models.Accomplishment{}
	}
	data, err := json.MarshalIndent(RecordFile{
		Accomplishments: records,
		LastUpdated:     now.UTC(),
		Version:         RecordFileVersion,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal record file: %w", err)
	}
	return data, nil
}

// decodeRecords 解析记录集合，同时兼容包装格式和裸数组
func decodeRecords(data []byte) ([]models.Accomplishment, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return []models.Accomplishment{}, nil
	}

	var records []models.Accomplishment
	if data[0] == '[' {
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("unmarshal records: %w", err)
		}
	} else {
		var file RecordFile
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("unmarshal record file: %w", err)
		}
		records = file.Accomplishments
	}

	if records == nil {
		records = []models.Accomplishment{}
	}
	return records, nil
}
