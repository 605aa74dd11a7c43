package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teampulse.app/agent/internal/models"
)

type fakeRotator struct {
	rotated bool
	err     error
	calls   int
}

func (f *fakeRotator) Rotate() (bool, error) {
	f.calls++
	return f.rotated, f.err
}

func TestLogRotateTask(t *testing.T) {
	r := &fakeRotator{rotated: true}
	task := NewLogRotateTask(r)

	require.NoError(t, task.Execute(context.Background()))
	assert.Equal(t, 1, r.calls)
	assert.Equal(t, LogRotateInterval, task.Every)

	r.err = errors.New("permission denied")
	assert.Error(t, task.Execute(context.Background()))
}

type fakeChecker struct {
	status models.StorageStatus
	ok     bool
	checks int
}

func (f *fakeChecker) CheckConnection() bool {
	f.checks++
	return f.ok
}

func (f *fakeChecker) Status() models.StorageStatus {
	return f.status
}

func TestStorageCheckSkipsLocalBackend(t *testing.T) {
	c := &fakeChecker{status: models.StorageStatus{StorageType: models.StorageLocal}}
	require.NoError(t, NewStorageCheckTask(c).Execute(context.Background()))
	assert.Equal(t, 0, c.checks)
}

func TestStorageCheckSkipsUnboundFolder(t *testing.T) {
	c := &fakeChecker{status: models.StorageStatus{
		StorageType: models.StorageSharedFolder,
		FolderState: models.FolderUnbound,
	}}
	require.NoError(t, NewStorageCheckTask(c).Execute(context.Background()))
	assert.Equal(t, 0, c.checks)
}

func TestStorageCheckReportsUnreachable(t *testing.T) {
	c := &fakeChecker{status: models.StorageStatus{
		StorageType:      models.StorageSharedFolder,
		SharedFolderPath: "team-share",
		FolderState:      models.FolderBound,
	}}
	task := NewStorageCheckTask(c)

	err := task.Execute(context.Background())
	assert.ErrorIs(t, err, ErrFolderUnreachable)

	c.ok = true
	assert.NoError(t, task.Execute(context.Background()))
	assert.Equal(t, 2, c.checks)
}
