package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// GormCollection 基于gorm的集合实现
type GormCollection[T any] struct {
	db *gorm.DB
}

// NewGormCollection 创建gorm集合
func NewGormCollection[T any](db *gorm.DB) *GormCollection[T] {
	return &GormCollection[T]{db: db}
}

// translate 统一错误
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}

func (c *GormCollection[T]) query(ctx context.Context, opts ListOptions) *gorm.DB {
	query := c.db.WithContext(ctx).Model(new(T))
	if opts.Order != "" {
		query = query.Order(opts.Order)
	} else {
		query = query.Order("id ASC")
	}
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}
	return query
}

// where 把Filter翻译为SQL条件，列名只来自调用代码
func where(query *gorm.DB, filter Filter) *gorm.DB {
	if len(filter) == 0 {
		return query
	}
	c := filter.split()
	if len(c.equal) > 0 {
		query = query.Where(c.equal)
	}
	for column, r := range c.ranges {
		if r.From != nil {
			query = query.Where(column+" >= ?", *r.From)
		}
		if r.To != nil {
			query = query.Where(column+" < ?", *r.To)
		}
	}
	for _, contains := range c.contains {
		pattern := "%" + likeEscaper.Replace(contains.Term) + "%"
		parts := make([]string, 0, len(contains.Columns))
		args := make([]interface{}, 0, len(contains.Columns))
		for _, column := range contains.Columns {
			parts = append(parts, "LOWER("+column+") LIKE ?")
			args = append(args, pattern)
		}
		query = query.Where("("+strings.Join(parts, " OR ")+")", args...)
	}
	return query
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// Get 根据ID获取
func (c *GormCollection[T]) Get(ctx context.Context, id uint) (*T, error) {
	var record T
	if err := c.db.WithContext(ctx).First(&record, id).Error; err != nil {
		return nil, translate(err)
	}
	return &record, nil
}

// Filter 等值条件查询
func (c *GormCollection[T]) Filter(ctx context.Context, filter Filter, opts ListOptions) ([]T, error) {
	var records []T
	query := where(c.query(ctx, opts), filter)
	if err := query.Find(&records).Error; err != nil {
		return nil, translate(err)
	}
	return records, nil
}

// Count 计数
func (c *GormCollection[T]) Count(ctx context.Context, filter Filter) (int64, error) {
	var total int64
	query := where(c.db.WithContext(ctx).Model(new(T)), filter)
	if err := query.Count(&total).Error; err != nil {
		return 0, translate(err)
	}
	return total, nil
}

// Create 创建
func (c *GormCollection[T]) Create(ctx context.Context, record *T) error {
	return translate(c.db.WithContext(ctx).Create(record).Error)
}

// Update 部分更新，返回更新后的记录
func (c *GormCollection[T]) Update(ctx context.Context, id uint, fields Fields) (*T, error) {
	result := c.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Updates(map[string]interface{}(fields))
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	// RowsAffected为0时记录也可能存在（值未变化），统一重新读取
	return c.Get(ctx, id)
}

// UpdateIf 条件更新
func (c *GormCollection[T]) UpdateIf(ctx context.Context, id uint, cond Filter, fields Fields) (bool, error) {
	query := where(c.db.WithContext(ctx).Model(new(T)).Where("id = ?", id), cond)
	result := query.Updates(map[string]interface{}(fields))
	if result.Error != nil {
		return false, translate(result.Error)
	}
	return result.RowsAffected > 0, nil
}

// List 列表
func (c *GormCollection[T]) List(ctx context.Context, opts ListOptions) ([]T, error) {
	return c.Filter(ctx, nil, opts)
}

// Delete 删除
func (c *GormCollection[T]) Delete(ctx context.Context, id uint) error {
	result := c.db.WithContext(ctx).Delete(new(T), id)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
