package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisQueue Redis队列实现，通知投递服务从队列右侧消费
type RedisQueue struct {
	client *redis.Client
	prefix string
}

// Message 队列中的通知消息
type Message struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Subject    string                 `json:"subject"`
	Body       string                 `json:"body"`
	Recipients []string               `json:"recipients"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Created    int64                  `json:"created"`
}

// Config Redis配置
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	Prefix   string
}

// NewRedisQueue 创建Redis队列实例
func NewRedisQueue(config *Config) *RedisQueue {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password: config.Password,
		DB:       config.DB,
	})

	return NewRedisQueueWithClient(client, config.Prefix)
}

// NewRedisQueueWithClient 使用已有客户端创建队列
func NewRedisQueueWithClient(client *redis.Client, prefix string) *RedisQueue {
	if prefix == "" {
		prefix = "accessgov:queue"
	}

	return &RedisQueue{
		client: client,
		prefix: prefix,
	}
}

// Close 关闭Redis连接
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// Ping 测试Redis连接
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Enqueue 将消息加入指定队列（左侧入队）
func (q *RedisQueue) Enqueue(ctx context.Context, queueName string, message *Message) error {
	if message.Created == 0 {
		message.Created = time.Now().Unix()
	}

	// 序列化消息
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("序列化通知消息失败: %v", err)
	}

	if err := q.client.LPush(ctx, q.getQueueKey(queueName), data).Err(); err != nil {
		return fmt.Errorf("通知入队失败: %v", err)
	}

	return nil
}

// Length 获取队列长度
func (q *RedisQueue) Length(ctx context.Context, queueName string) (int64, error) {
	length, err := q.client.LLen(ctx, q.getQueueKey(queueName)).Result()
	if err != nil {
		return 0, fmt.Errorf("获取队列长度失败: %v", err)
	}
	return length, nil
}

// getQueueKey 获取队列键名
func (q *RedisQueue) getQueueKey(queueName string) string {
	return fmt.Sprintf("%s:%s", q.prefix, queueName)
}
