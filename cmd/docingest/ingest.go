package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"docingest-go/internal/model"
	"docingest-go/internal/service"
	"docingest-go/pkg/log"
	"docingest-go/pkg/tasks"

	"github.com/spf13/cobra"
)

// captureDispatcher 记录 Start 创建的任务，由命令在当前进程内同步执行。
type captureDispatcher struct {
	task *tasks.IngestTask
}

func (d *captureDispatcher) Dispatch(_ context.Context, task tasks.IngestTask) error {
	d.task = &task
	return nil
}

func ingestCmd() *cobra.Command {
	var (
		tenant       string
		connectionID string
		folderIDs    []string
		reingest     bool
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "同步执行一次导入任务并输出任务结果",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			dispatcher := &captureDispatcher{}
			a, err := buildApp(ctx, cfg, service.WithDispatcher(dispatcher))
			if err != nil {
				return err
			}
			defer a.Close()

			mode := model.IngestModeIncremental
			if reingest {
				mode = model.IngestModeFull
			}
			jobID, err := a.ingest.Start(ctx, model.IngestRequest{
				Tenant:       tenant,
				ConnectionID: connectionID,
				FolderIDs:    folderIDs,
				Mode:         mode,
			})
			if err != nil {
				return err
			}
			if err := a.ingest.Run(ctx, *dispatcher.task); err != nil {
				return err
			}

			job, err := a.ingest.GetStatus(ctx, jobID)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(job, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			if job.Status == model.JobStatusFailed {
				return fmt.Errorf("导入任务 %s 失败", jobID)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&tenant, "tenant", "t", "", "租户")
	cmd.Flags().StringVar(&connectionID, "connection", "", "文件源连接 ID")
	cmd.Flags().StringSliceVar(&folderIDs, "folder", nil, "文件夹 ID，可重复，默认根目录")
	cmd.Flags().BoolVar(&reingest, "reingest", false, "全量重新导入，不跳过未变化的文件")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("connection")
	return cmd
}
