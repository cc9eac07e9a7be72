package services

import (
	"accessgov/pkg/logger"
	"accessgov/pkg/metrics"

	"github.com/sirupsen/logrus"
)

// BestEffort 非关键副作用（审计日志、通知）的执行器。
// 失败只记录日志和指标，不向调用方传播，也不回滚已完成的变更。
type BestEffort struct {
	log *logrus.Logger
}

// NewBestEffort 创建执行器
func NewBestEffort(log *logrus.Logger) *BestEffort {
	if log == nil {
		log = logger.GetLogger()
	}
	return &BestEffort{log: log}
}

// Do 执行fn，返回是否成功
func (b *BestEffort) Do(operation string, fields logrus.Fields, fn func() error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			metrics.BestEffortFailures.WithLabelValues(operation).Inc()
			b.log.WithFields(fields).WithField("operation", operation).Errorf("非关键操作panic: %v", r)
			ok = false
		}
	}()

	if err := fn(); err != nil {
		metrics.BestEffortFailures.WithLabelValues(operation).Inc()
		b.log.WithFields(fields).WithField("operation", operation).WithError(err).Warn("非关键操作失败，已忽略")
		return false
	}
	return true
}
