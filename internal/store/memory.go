package store

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryCollection 内存实现，用于本地联调和测试。
// 记录以JSON对象形式保存，列名即json字段名，与gorm列名保持一致。
type MemoryCollection[T any] struct {
	mu     sync.RWMutex
	rows   map[uint]map[string]interface{}
	nextID uint
	unique []uniqueIndex
	now    func() time.Time
}

// uniqueIndex 组合唯一约束，where非空时为部分唯一索引
type uniqueIndex struct {
	fields []string
	where  criteria
}

type memoryConfig struct {
	unique []uniqueIndex
	now    func() time.Time
}

// MemoryOption 内存集合选项
type MemoryOption func(*memoryConfig)

// WithUnique 声明唯一约束（组合字段）
func WithUnique(fields ...string) MemoryOption {
	return func(cfg *memoryConfig) {
		cfg.unique = append(cfg.unique, uniqueIndex{fields: fields})
	}
}

// WithPartialUnique 仅对满足where的记录生效的唯一约束
func WithPartialUnique(where Filter, fields ...string) MemoryOption {
	return func(cfg *memoryConfig) {
		cfg.unique = append(cfg.unique, uniqueIndex{fields: fields, where: compile(where)})
	}
}

// WithClock 指定时间源
func WithClock(now func() time.Time) MemoryOption {
	return func(cfg *memoryConfig) {
		cfg.now = now
	}
}

// NewMemoryCollection 创建内存集合
func NewMemoryCollection[T any](opts ...MemoryOption) *MemoryCollection[T] {
	cfg := &memoryConfig{now: time.Now}
	for _, opt := range opts {
		opt(cfg)
	}
	return &MemoryCollection[T]{
		rows:   make(map[uint]map[string]interface{}),
		unique: cfg.unique,
		now:    cfg.now,
	}
}

// Get 根据ID获取
func (c *MemoryCollection[T]) Get(ctx context.Context, id uint) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	row, ok := c.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return decode[T](row)
}

// Filter 等值条件查询
func (c *MemoryCollection[T]) Filter(ctx context.Context, filter Filter, opts ListOptions) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	cond := compile(filter)
	rows := make([]map[string]interface{}, 0, len(c.rows))
	for _, id := range c.sortedIDs() {
		row := c.rows[id]
		if cond.matches(row) {
			rows = append(rows, row)
		}
	}

	sortRows(rows, opts.Order)

	if opts.Offset > 0 {
		if opts.Offset >= len(rows) {
			rows = nil
		} else {
			rows = rows[opts.Offset:]
		}
	}
	if opts.Limit > 0 && len(rows) > opts.Limit {
		rows = rows[:opts.Limit]
	}

	records := make([]T, 0, len(rows))
	for _, row := range rows {
		record, err := decode[T](row)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, nil
}

// Count 计数
func (c *MemoryCollection[T]) Count(ctx context.Context, filter Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	cond := compile(filter)
	var total int64
	for _, row := range c.rows {
		if cond.matches(row) {
			total++
		}
	}
	return total, nil
}

// Create 创建，回填ID和时间戳
func (c *MemoryCollection[T]) Create(ctx context.Context, record *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	row, err := encode(record)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := normalize(c.now())
	for _, key := range []string{"created_at", "updated_at"} {
		if value, ok := row[key]; ok && isZeroTime(value) {
			row[key] = now
		}
	}
	if err := c.checkUnique(0, row); err != nil {
		return err
	}

	c.nextID++
	id := c.nextID
	row["id"] = normalize(id)
	c.rows[id] = row

	created, err := decode[T](row)
	if err != nil {
		return err
	}
	*record = *created
	return nil
}

// Update 部分更新
func (c *MemoryCollection[T]) Update(ctx context.Context, id uint, fields Fields) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.rows[id]; !ok {
		return nil, ErrNotFound
	}
	row, err := c.apply(id, fields)
	if err != nil {
		return nil, err
	}
	return decode[T](row)
}

// UpdateIf 条件更新，检查与写入在同一把锁内完成
func (c *MemoryCollection[T]) UpdateIf(ctx context.Context, id uint, cond Filter, fields Fields) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	row, ok := c.rows[id]
	if !ok || !compile(cond).matches(row) {
		return false, nil
	}
	if _, err := c.apply(id, fields); err != nil {
		return false, err
	}
	return true, nil
}

// List 列表
func (c *MemoryCollection[T]) List(ctx context.Context, opts ListOptions) ([]T, error) {
	return c.Filter(ctx, nil, opts)
}

// Delete 删除
func (c *MemoryCollection[T]) Delete(ctx context.Context, id uint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.rows[id]; !ok {
		return ErrNotFound
	}
	delete(c.rows, id)
	return nil
}

// apply 写入字段，调用方持有写锁
func (c *MemoryCollection[T]) apply(id uint, fields Fields) (map[string]interface{}, error) {
	current := c.rows[id]
	updated := make(map[string]interface{}, len(current)+len(fields))
	for k, v := range current {
		updated[k] = v
	}
	for k, v := range fields {
		updated[k] = normalize(v)
	}
	if _, ok := updated["updated_at"]; ok {
		updated["updated_at"] = normalize(c.now())
	}
	if err := c.checkUnique(id, updated); err != nil {
		return nil, err
	}
	c.rows[id] = updated
	return updated, nil
}

func (c *MemoryCollection[T]) checkUnique(selfID uint, row map[string]interface{}) error {
	for _, index := range c.unique {
		if !index.where.matches(row) {
			continue
		}
		for id, other := range c.rows {
			if id == selfID || !index.where.matches(other) {
				continue
			}
			same := true
			for _, field := range index.fields {
				if !reflect.DeepEqual(other[field], row[field]) {
					same = false
					break
				}
			}
			if same {
				return fmt.Errorf("%w: %s", ErrDuplicate, strings.Join(index.fields, ","))
			}
		}
	}
	return nil
}

func (c *MemoryCollection[T]) sortedIDs() []uint {
	ids := make([]uint, 0, len(c.rows))
	for id := range c.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ========== 编解码辅助 ==========

func encode(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	row := make(map[string]interface{})
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return row, nil
}

func decode[T any](row map[string]interface{}) (*T, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	var record T
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &record, nil
}

// normalize 转为JSON通用值，保证比较和存储口径一致
func normalize(v interface{}) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

// compile 等值条件转为JSON通用值，与存储口径一致
func compile(filter Filter) criteria {
	c := filter.split()
	for k, v := range c.equal {
		c.equal[k] = normalize(v)
	}
	return c
}

func (c criteria) matches(row map[string]interface{}) bool {
	for k, v := range c.equal {
		if !reflect.DeepEqual(row[k], v) {
			return false
		}
	}
	for column, r := range c.ranges {
		s, ok := row[column].(string)
		if !ok {
			return false
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return false
		}
		if r.From != nil && t.Before(*r.From) {
			return false
		}
		if r.To != nil && !t.Before(*r.To) {
			return false
		}
	}
	for _, contains := range c.contains {
		if !containsAny(row, contains) {
			return false
		}
	}
	return true
}

func containsAny(row map[string]interface{}, contains Contains) bool {
	for _, column := range contains.Columns {
		value, ok := row[column]
		if !ok || value == nil {
			continue
		}
		if strings.Contains(strings.ToLower(fmt.Sprint(value)), contains.Term) {
			return true
		}
	}
	return false
}

func isZeroTime(v interface{}) bool {
	s, ok := v.(string)
	return !ok || strings.HasPrefix(s, "0001-01-01")
}

// sortRows 支持 "field" / "field ASC" / "field DESC"
func sortRows(rows []map[string]interface{}, order string) {
	order = strings.TrimSpace(order)
	if order == "" {
		return
	}
	parts := strings.Fields(order)
	field := parts[0]
	desc := len(parts) > 1 && strings.EqualFold(parts[1], "DESC")

	sort.SliceStable(rows, func(i, j int) bool {
		cmp := compareValues(rows[i][field], rows[j][field])
		if desc {
			return cmp > 0
		}
		return cmp < 0
	})
}

func compareValues(a, b interface{}) int {
	switch av := a.(type) {
	case nil:
		if b == nil {
			return 0
		}
		return -1
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0
		}
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0
		}
		at, aErr := time.Parse(time.RFC3339Nano, av)
		bt, bErr := time.Parse(time.RFC3339Nano, bv)
		if aErr == nil && bErr == nil {
			return at.Compare(bt)
		}
		return strings.Compare(av, bv)
	case bool:
		bv, _ := b.(bool)
		if av == bv {
			return 0
		}
		if !av {
			return -1
		}
		return 1
	}
	if b == nil {
		return 1
	}
	return 0
}
