package services

import (
	"accessgov/internal/models"
	"accessgov/internal/store"
	apperrors "accessgov/pkg/errors"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// AuditService 权限审计日志，只提供追加和查询
type AuditService struct {
	logs       store.Collection[models.AuditLogEntry]
	bestEffort *BestEffort
	batchSize  int
	now        func() time.Time
}

// NewAuditService 创建审计服务，batchSize为导出时每批读取的记录数
func NewAuditService(logs store.Collection[models.AuditLogEntry], bestEffort *BestEffort, batchSize int) *AuditService {
	if batchSize <= 0 {
		batchSize = 500
	}
	if bestEffort == nil {
		bestEffort = NewBestEffort(nil)
	}
	return &AuditService{
		logs:       logs,
		bestEffort: bestEffort,
		batchSize:  batchSize,
		now:        time.Now,
	}
}

// AuditQuery 审计查询条件
type AuditQuery struct {
	ActionType string     `form:"action_type"`
	TargetType string     `form:"target_type"`
	TargetID   string     `form:"target_id"`
	Search     string     `form:"search"`
	Range      string     `form:"range"` // today, 7d, 30d, 90d
	From       *time.Time `form:"from" time_format:"2006-01-02"`
	To         *time.Time `form:"to" time_format:"2006-01-02"`
	Page       int        `form:"-"`
	PageSize   int        `form:"-"`
}

// Append 写入一条审计记录
func (s *AuditService) Append(ctx context.Context, entry *models.AuditLogEntry) error {
	if !models.IsValidAuditAction(entry.ActionType) {
		return apperrors.Validation("无效的审计动作类型: " + entry.ActionType)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	entry.FitColumns()
	if err := s.logs.Create(ctx, entry); err != nil {
		return apperrors.Internal("写入审计日志失败", err)
	}
	return nil
}

// Record 以BestEffort方式写入，调用方不关心结果
func (s *AuditService) Record(ctx context.Context, entry *models.AuditLogEntry) {
	s.bestEffort.Do("audit_log", logrus.Fields{
		"action_type": entry.ActionType,
		"target_type": entry.TargetType,
		"target_id":   entry.TargetID,
	}, func() error {
		return s.Append(ctx, entry)
	})
}

// Query 查询审计记录，按时间倒序，返回当前页和总数
func (s *AuditService) Query(ctx context.Context, q AuditQuery) ([]models.AuditLogEntry, int64, error) {
	filter, err := s.filter(q)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.logs.Count(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.Internal("查询审计日志失败", err)
	}

	entries, err := s.logs.Filter(ctx, filter, pageOptions("created_at DESC", q.Page, q.PageSize))
	if err != nil {
		return nil, 0, apperrors.Internal("查询审计日志失败", err)
	}
	return entries, total, nil
}

// Export 以CSV导出查询结果（忽略分页），分批读取
func (s *AuditService) Export(ctx context.Context, q AuditQuery, w io.Writer) (int, error) {
	filter, err := s.filter(q)
	if err != nil {
		return 0, err
	}

	writer := csv.NewWriter(w)
	header := []string{"id", "created_at", "action_type", "performed_by", "target_type", "target_id",
		"target_name", "affected_users_count", "notes", "before", "after"}
	if err := writer.Write(header); err != nil {
		return 0, apperrors.Internal("导出审计日志失败", err)
	}

	written := 0
	for offset := 0; ; offset += s.batchSize {
		entries, err := s.logs.Filter(ctx, filter, store.ListOptions{
			Order:  "created_at DESC",
			Limit:  s.batchSize,
			Offset: offset,
		})
		if err != nil {
			return 0, apperrors.Internal("导出审计日志失败", err)
		}

		for _, entry := range entries {
			changes := entry.GetChanges()
			record := []string{
				strconv.FormatUint(uint64(entry.ID), 10),
				entry.CreatedAt.Format(time.RFC3339),
				entry.ActionType,
				entry.PerformedBy,
				entry.TargetType,
				entry.TargetID,
				entry.TargetName,
				strconv.Itoa(entry.AffectedUsersCount),
				entry.Notes,
				jsonString(changes.Before),
				jsonString(changes.After),
			}
			if err := writer.Write(record); err != nil {
				return 0, apperrors.Internal("导出审计日志失败", err)
			}
		}
		written += len(entries)
		if len(entries) < s.batchSize {
			break
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return 0, apperrors.Internal("导出审计日志失败", err)
	}
	return written, nil
}

// filter 查询条件全部交给存储：等值、时间范围和文本搜索
func (s *AuditService) filter(q AuditQuery) (store.Filter, error) {
	from, to, err := s.window(q)
	if err != nil {
		return nil, err
	}

	filter := store.Filter{}
	if q.ActionType != "" {
		if !models.IsValidAuditAction(q.ActionType) {
			return nil, apperrors.Validation("无效的审计动作类型: " + q.ActionType)
		}
		filter["action_type"] = q.ActionType
	}
	if q.TargetType != "" {
		filter["target_type"] = q.TargetType
	}
	if q.TargetID != "" {
		filter["target_id"] = q.TargetID
	}
	if from != nil || to != nil {
		filter["created_at"] = store.TimeRange{From: from, To: to}
	}
	if search := strings.TrimSpace(q.Search); search != "" {
		filter["search"] = store.Contains{
			Columns: []string{"performed_by", "target_name", "target_id", "notes"},
			Term:    search,
		}
	}
	return filter, nil
}

// window 计算时间窗口 [from, to)
func (s *AuditService) window(q AuditQuery) (*time.Time, *time.Time, error) {
	now := s.now()
	var from, to *time.Time

	switch q.Range {
	case "":
	case "today":
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		from = &start
	case "7d", "30d", "90d":
		days, _ := strconv.Atoi(strings.TrimSuffix(q.Range, "d"))
		start := now.AddDate(0, 0, -days)
		from = &start
	default:
		return nil, nil, apperrors.Validation("无效的时间范围: " + q.Range)
	}

	if q.From != nil {
		from = q.From
	}
	if q.To != nil {
		// 结束日期按整天包含
		end := q.To.AddDate(0, 0, 1)
		to = &end
	}
	if from != nil && to != nil && !from.Before(*to) {
		return nil, nil, apperrors.Validation("开始时间必须早于结束时间")
	}
	return from, to, nil
}

func jsonString(v interface{}) string {
	if v == nil {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
