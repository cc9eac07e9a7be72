package services

import (
	"accessgov/pkg/queue"
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// 通知类型
const (
	NotificationRequestSubmitted = "permission_request_submitted"
	NotificationRequestResolved  = "permission_request_resolved"
	NotificationRequestReminder  = "permission_request_reminder"
)

// Notification 待投递的通知，实际发送由外部通知服务完成
type Notification struct {
	Type       string
	Subject    string
	Body       string
	Recipients []string
	Metadata   map[string]interface{}
}

// Notifier 通知投递接口
type Notifier interface {
	Notify(ctx context.Context, n *Notification) error
}

// BacklogReporter 报告尚未被消费的通知数量
type BacklogReporter interface {
	Backlog(ctx context.Context) (int64, error)
}

// QueueNotifier 写入Redis队列，由通知服务消费
type QueueNotifier struct {
	queue     *queue.RedisQueue
	queueName string
}

// NewQueueNotifier 创建队列通知器
func NewQueueNotifier(q *queue.RedisQueue, queueName string) *QueueNotifier {
	return &QueueNotifier{queue: q, queueName: queueName}
}

// Notify 入队
func (n *QueueNotifier) Notify(ctx context.Context, notification *Notification) error {
	return n.queue.Enqueue(ctx, n.queueName, &queue.Message{
		ID:         uuid.NewString(),
		Type:       notification.Type,
		Subject:    notification.Subject,
		Body:       notification.Body,
		Recipients: notification.Recipients,
		Metadata:   notification.Metadata,
	})
}

// Backlog 队列中待消费的通知数
func (n *QueueNotifier) Backlog(ctx context.Context) (int64, error) {
	return n.queue.Length(ctx, n.queueName)
}

// LogNotifier Redis不可用时的退化实现，只写日志
type LogNotifier struct {
	log *logrus.Logger
}

// NewLogNotifier 创建日志通知器
func NewLogNotifier(log *logrus.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Notify 记录日志
func (n *LogNotifier) Notify(_ context.Context, notification *Notification) error {
	n.log.WithFields(logrus.Fields{
		"type":       notification.Type,
		"recipients": notification.Recipients,
	}).Info(notification.Subject)
	return nil
}

// RecordingNotifier 记录所有通知，用于联调和测试
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
	Err  error
}

// Notify 记录通知，Err非空时返回错误
func (n *RecordingNotifier) Notify(_ context.Context, notification *Notification) error {
	if n.Err != nil {
		return n.Err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, *notification)
	return nil
}

// Sent 已记录的通知
func (n *RecordingNotifier) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.sent...)
}

// SentTo 发给指定收件人的指定类型通知
func (n *RecordingNotifier) SentTo(recipient, notificationType string) []Notification {
	var out []Notification
	for _, sent := range n.Sent() {
		if sent.Type != notificationType {
			continue
		}
		for _, r := range sent.Recipients {
			if r == recipient {
				out = append(out, sent)
				break
			}
		}
	}
	return out
}
