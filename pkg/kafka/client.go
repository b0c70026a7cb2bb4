// Package kafka 提供了通过 Kafka 分发导入任务的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"docingest-go/internal/config"
	"docingest-go/pkg/log"
	"docingest-go/pkg/tasks"

	"github.com/segmentio/kafka-go"
)

// TaskRunner 执行一个导入任务。失败信息由执行方记录到任务状态中。
type TaskRunner interface {
	Run(ctx context.Context, task tasks.IngestTask) error
}

// Producer 把导入任务写入 Kafka 主题。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 创建 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers(cfg)...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	log.Infof("Kafka 生产者初始化成功, topic: %s", cfg.Topic)
	return &Producer{writer: w}
}

// Dispatch 发送导入任务，以 job_id 作为消息 key。
func (p *Producer) Dispatch(ctx context.Context, task tasks.IngestTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(task.JobID), Value: taskBytes}); err != nil {
		return fmt.Errorf("发送导入任务失败: %w", err)
	}
	return nil
}

// Close 关闭生产者。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// StartConsumer 消费导入任务直到 ctx 结束。任务逐条同步执行，执行完（无论成败）即提交 offset。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, runner TaskRunner) {
	groupID := cfg.GroupID
	if groupID == "" {
		groupID = "docingest-go-consumer"
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers(cfg),
		Topic:    cfg.Topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	defer func() {
		if err := r.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)
	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("Kafka 消费者已停止")
			} else {
				log.Error("从 Kafka 读取消息失败", err)
			}
			return
		}

		var task tasks.IngestTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
		} else {
			log.Infof("开始执行导入任务: JobID=%s, Tenant=%s, offset=%d", task.JobID, task.Tenant, m.Offset)
			if err := runner.Run(ctx, task); err != nil {
				log.Errorf("导入任务执行失败: JobID=%s, Error: %v", task.JobID, err)
			}
		}

		// 任务状态已经记录了结果，重复投递只会重复执行整个任务
		if err := r.CommitMessages(ctx, m); err != nil {
			log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
		}
	}
}

func brokers(cfg config.KafkaConfig) []string {
	var out []string
	for _, b := range strings.Split(cfg.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
