package models

// PermissionLevel 模块权限级别，严格有序：blocked < view < total
type PermissionLevel string

// 模块权限级别常量
const (
	LevelBlocked PermissionLevel = "blocked" // 禁止访问
	LevelView    PermissionLevel = "view"    // 只读
	LevelTotal   PermissionLevel = "total"   // 完全控制
)

// Rank 级别序号，未知级别按blocked处理
func (l PermissionLevel) Rank() int {
	switch l {
	case LevelView:
		return 1
	case LevelTotal:
		return 2
	default:
		return 0
	}
}

// Valid 是否为合法级别
func (l PermissionLevel) Valid() bool {
	return l == LevelBlocked || l == LevelView || l == LevelTotal
}

// AtLeast 是否不低于指定级别
func (l PermissionLevel) AtLeast(min PermissionLevel) bool {
	return l.Rank() >= min.Rank()
}

// EntityOperation 实体操作类型
type EntityOperation string

// 实体操作常量
const (
	OpCreate EntityOperation = "create" // 创建
	OpRead   EntityOperation = "read"   // 读取
	OpUpdate EntityOperation = "update" // 更新
	OpDelete EntityOperation = "delete" // 删除
)

// AllOperations 全部实体操作
var AllOperations = []EntityOperation{OpCreate, OpRead, OpUpdate, OpDelete}

// Valid 是否为合法操作
func (op EntityOperation) Valid() bool {
	switch op {
	case OpCreate, OpRead, OpUpdate, OpDelete:
		return true
	}
	return false
}

// ModulePermissions 模块名 -> 权限级别
type ModulePermissions map[string]PermissionLevel

// Level 获取模块级别，未配置的模块视为blocked
func (m ModulePermissions) Level(module string) PermissionLevel {
	if level, ok := m[module]; ok && level.Valid() {
		return level
	}
	return LevelBlocked
}

// Clone 复制一份
func (m ModulePermissions) Clone() ModulePermissions {
	out := make(ModulePermissions, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// EntityPermissions 实体名 -> 允许的操作
type EntityPermissions map[string][]EntityOperation

// Allows 是否允许对实体执行操作
func (e EntityPermissions) Allows(entity string, op EntityOperation) bool {
	for _, granted := range e[entity] {
		if granted == op {
			return true
		}
	}
	return false
}
