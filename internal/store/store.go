// Package store 实体存储的通用访问接口。
//
// 权限引擎把持久层看作按集合划分的远程CRUD存储：get / filter / create / update / list。
// 跨集合没有事务，调用方需要容忍部分完成。
package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate 违反唯一约束
	ErrDuplicate = errors.New("duplicate record")
)

// Filter 字段条件，键为列名（与json字段名一致）
// 值为 TimeRange 时按时间范围匹配，为 Contains 时按多列模糊匹配，其余按等值匹配
type Filter map[string]interface{}

// TimeRange 时间范围 [From, To)，任一端为nil表示不限
type TimeRange struct {
	From *time.Time
	To   *time.Time
}

// Contains 不区分大小写的子串匹配，任一列命中即可
// 作为Filter的值时键只用来区分条件，匹配的列由Columns给出
type Contains struct {
	Columns []string
	Term    string
}

// criteria 拆分后的查询条件
type criteria struct {
	equal    map[string]interface{}
	ranges   map[string]TimeRange
	contains []Contains
}

func (f Filter) split() criteria {
	c := criteria{equal: make(map[string]interface{}, len(f))}
	for key, value := range f {
		switch v := value.(type) {
		case TimeRange:
			if c.ranges == nil {
				c.ranges = make(map[string]TimeRange)
			}
			c.ranges[key] = v
		case Contains:
			term := strings.ToLower(strings.TrimSpace(v.Term))
			if term == "" || len(v.Columns) == 0 {
				continue
			}
			c.contains = append(c.contains, Contains{Columns: v.Columns, Term: term})
		default:
			c.equal[key] = value
		}
	}
	return c
}

// Fields 部分更新的字段
type Fields map[string]interface{}

// ListOptions 排序与分页
type ListOptions struct {
	Order  string // 如 "created_at DESC"
	Limit  int
	Offset int
}

// Collection 单个集合的访问接口
type Collection[T any] interface {
	Get(ctx context.Context, id uint) (*T, error)
	Filter(ctx context.Context, filter Filter, opts ListOptions) ([]T, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	Create(ctx context.Context, record *T) error
	Update(ctx context.Context, id uint, fields Fields) (*T, error)
	// UpdateIf 仅当记录当前满足cond时才更新，返回是否更新成功（check-then-update 原子完成）
	UpdateIf(ctx context.Context, id uint, cond Filter, fields Fields) (bool, error)
	List(ctx context.Context, opts ListOptions) ([]T, error)
	Delete(ctx context.Context, id uint) error
}

// IsNotFound 是否为记录不存在
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicate 是否为唯一约束冲突
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}
