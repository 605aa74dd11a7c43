package cli

import (
	"fmt"
	"io"
	"log"
	"path/filepath"

	"github.com/spf13/cobra"

	"teampulse.app/agent/config"
	"teampulse.app/agent/internal/models"
	"teampulse.app/agent/internal/storage"
)

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Inspect and configure where accomplishments are stored",
}

var storageStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active backend and shared folder state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *App) error {
			return RunStorageStatus(cmd.OutOrStdout(), app.Store)
		})
	},
}

var storageUseCmd = &cobra.Command{
	Use:   "use <local|sharedfolder>",
	Short: "Switch the active backend without moving data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *App) error {
			return RunStorageUse(cmd.OutOrStdout(), app.Store, models.ParseStorageType(args[0]))
		})
	},
}

var storageBindCmd = &cobra.Command{
	Use:   "bind <dir>",
	Short: "Grant access to a shared folder and remember it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *App) error {
			return RunStorageBind(cmd.OutOrStdout(), app, args[0])
		})
	},
}

var storageTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Probe the bound shared folder with a test write",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *App) error {
			return RunStorageTest(cmd.OutOrStdout(), app.Store)
		})
	},
}

var storageMigrateCmd = &cobra.Command{
	Use:   "migrate <from> <to>",
	Short: "Copy all accomplishments between backends and switch to the destination",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		fromPath, _ := cmd.Flags().GetString("from-path")
		toPath, _ := cmd.Flags().GetString("to-path")
		return withApp(func(app *App) error {
			return RunStorageMigrate(cmd.OutOrStdout(), app.Store,
				models.ParseStorageType(args[0]), models.ParseStorageType(args[1]), fromPath, toPath)
		})
	},
}

func init() {
	storageMigrateCmd.Flags().String("from-path", "", "源共享文件夹显示路径")
	storageMigrateCmd.Flags().String("to-path", "", "目标共享文件夹显示路径")

	storageCmd.AddCommand(storageStatusCmd, storageUseCmd, storageBindCmd, storageTestCmd, storageMigrateCmd)
}

// StorageController 存储命令使用的协调器能力
type StorageController interface {
	SetBackend(t models.StorageType) error
	TestConnection() bool
	Migrate(from, to models.StorageType, fromPath, toPath string) error
	Status() models.StorageStatus
}

// RunStorageStatus 输出存储状态
func RunStorageStatus(w io.Writer, store StorageController) error {
	st := store.Status()

	fmt.Fprintf(w, "当前后端：%s\n", st.StorageType)
	if st.SharedFolderPath != "" {
		fmt.Fprintf(w, "共享文件夹：%s\n", st.SharedFolderPath)
	}
	fmt.Fprintf(w, "文件夹状态：%s\n", st.FolderState)
	fmt.Fprintf(w, "已连接：%v\n", st.Connected)
	if st.LastLoadError != "" {
		fmt.Fprintf(w, "⚠ 上次读取失败：%s\n", st.LastLoadError)
	}
	return nil
}

// RunStorageUse 切换当前后端
func RunStorageUse(w io.Writer, store StorageController, t models.StorageType) error {
	if err := store.SetBackend(t); err != nil {
		return err
	}
	fmt.Fprintf(w, "✓ 当前后端：%s\n", t)
	if t == models.StorageSharedFolder && store.Status().FolderState == models.FolderUnbound {
		fmt.Fprintln(w, "提示：尚未绑定共享文件夹，请运行 teampulse storage bind <dir>")
	}
	return nil
}

// RunStorageBind 绑定共享目录、探测可写性，并将目录写入配置以便下次启动时绑定
func RunStorageBind(w io.Writer, app *App, dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if err := app.bindFolder(abs); err != nil {
		return fmt.Errorf("failed to bind shared folder: %w", err)
	}

	if !app.Store.TestConnection() {
		return fmt.Errorf("shared folder %s is not writable", abs)
	}

	app.Config.SharedFolderDir = abs
	if err := config.Save(app.Config, app.ConfigPath); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	log.Printf("Shared folder saved to config: %s", abs)

	fmt.Fprintf(w, "✓ 已绑定共享文件夹：%s\n", abs)
	return nil
}

// RunStorageTest 探测共享文件夹
func RunStorageTest(w io.Writer, store StorageController) error {
	if store.TestConnection() {
		fmt.Fprintln(w, "✓ 共享文件夹连接正常")
		return nil
	}
	st := store.Status()
	if st.FolderState == models.FolderUnbound {
		return fmt.Errorf("no shared folder bound: %w", storage.ErrNoHandle)
	}
	return fmt.Errorf("shared folder %s failed the write probe", st.SharedFolderPath)
}

// RunStorageMigrate 迁移数据并切换后端
func RunStorageMigrate(w io.Writer, store StorageController, from, to models.StorageType, fromPath, toPath string) error {
	if err := store.Migrate(from, to, fromPath, toPath); err != nil {
		return err
	}
	fmt.Fprintf(w, "✓ 已从 %s 迁移到 %s\n", from, to)
	return nil
}
