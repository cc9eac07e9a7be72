package services

import (
	"accessgov/pkg/logger"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ReminderScheduler 定时提醒审批人处理积压的权限变更申请
type ReminderScheduler struct {
	requests  *PermissionRequestService
	notifier  Notifier
	approvers []string
	after     time.Duration
	spec      string
	timeout   time.Duration

	cron    *cron.Cron
	lock    sync.Mutex
	running bool
	now     func() time.Time
}

// NewReminderScheduler 创建提醒调度器
func NewReminderScheduler(requests *PermissionRequestService, notifier Notifier, approvers []string, spec string, after, timeout time.Duration) *ReminderScheduler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ReminderScheduler{
		requests:  requests,
		notifier:  notifier,
		approvers: approvers,
		after:     after,
		spec:      spec,
		timeout:   timeout,
		cron:      cron.New(),
		now:       time.Now,
	}
}

// Start 启动调度器
func (s *ReminderScheduler) Start() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.running {
		return fmt.Errorf("调度器已经在运行")
	}
	if len(s.approvers) == 0 {
		logger.GetLogger().Info("未配置审批人，跳过申请提醒任务")
		return nil
	}

	if _, err := s.cron.AddFunc(s.spec, s.run); err != nil {
		return fmt.Errorf("添加提醒任务失败: %v", err)
	}
	s.cron.Start()
	s.running = true

	logger.GetLogger().Infof("权限申请提醒调度器启动成功，cron: %s", s.spec)
	return nil
}

// Stop 停止调度器
func (s *ReminderScheduler) Stop() {
	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.running {
		return
	}
	logger.GetLogger().Info("停止权限申请提醒调度器")
	<-s.cron.Stop().Done()
	s.running = false
}

func (s *ReminderScheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	count, err := s.RemindPending(ctx)
	if err != nil {
		logger.GetLogger().Errorf("发送申请提醒失败: %v", err)
		return
	}
	if count > 0 {
		logger.GetLogger().Infof("已提醒审批人处理 %d 个积压申请", count)
	}
}

// RemindPending 汇总积压申请并给审批人发送一条提醒，返回积压数量
func (s *ReminderScheduler) RemindPending(ctx context.Context) (int, error) {
	stale, err := s.requests.Pending(ctx, s.now().Add(-s.after))
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 || len(s.approvers) == 0 {
		return len(stale), nil
	}

	lines := make([]string, 0, len(stale))
	ids := make([]uint, 0, len(stale))
	for _, r := range stale {
		lines = append(lines, fmt.Sprintf("#%d %s（%s，提交人 %s，%s）",
			r.ID, r.EmployeeName, r.ChangeType, r.RequestedBy, r.CreatedAt.Format("2006-01-02 15:04")))
		ids = append(ids, r.ID)
	}

	if err := s.notifier.Notify(ctx, &Notification{
		Type:       NotificationRequestReminder,
		Subject:    fmt.Sprintf("有 %d 个权限变更申请等待处理", len(stale)),
		Body:       strings.Join(lines, "\n"),
		Recipients: s.approvers,
		Metadata:   map[string]interface{}{"request_ids": ids},
	}); err != nil {
		return len(stale), fmt.Errorf("提醒入队失败: %w", err)
	}
	return len(stale), nil
}
