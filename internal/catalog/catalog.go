// Package catalog 权限目录：模块、页面、实体归属、岗位默认档案。
//
// 目录是部署时加载的版本化配置，运行期只读；加载后按key建立索引，
// 权限判定只通过这里的查询方法访问规则行。
package catalog

import (
	"sort"
	"strings"

	"accessgov/internal/models"
)

// Catalog 权限目录
type Catalog struct {
	Version         string                            `yaml:"version" json:"version" validate:"required"`
	FallbackProfile string                            `yaml:"fallback_profile" json:"fallback_profile" validate:"required"`
	DefaultLevels   map[string]models.PermissionLevel `yaml:"default_levels" json:"default_levels" validate:"dive,keys,required,endkeys,oneof=blocked view total"`
	Modules         []Module                          `yaml:"modules" json:"modules" validate:"required,min=1,dive"`
	Pages           []Page                            `yaml:"pages" json:"pages" validate:"dive"`
	JobRoles        []JobRoleRule                     `yaml:"job_roles" json:"job_roles" validate:"dive"`
	Tiers           []Tier                            `yaml:"tiers" json:"tiers" validate:"dive"`

	modules  map[string]*Module
	pages    map[string]*Page
	entities map[string]string
	jobRoles map[string]*JobRoleRule
	tiers    map[string]*Tier
}

// Module 功能模块
type Module struct {
	Key      string   `yaml:"key" json:"key" validate:"required"`
	Name     string   `yaml:"name" json:"name"`
	Entities []string `yaml:"entities" json:"entities"`
	JobRoles []string `yaml:"job_roles" json:"job_roles,omitempty"` // 岗位白名单，为空表示不限制
}

// Page 页面访问规则
type Page struct {
	ID           string                 `yaml:"id" json:"id" validate:"required"`
	Title        string                 `yaml:"title" json:"title"`
	Public       bool                   `yaml:"public" json:"public"`
	InternalOnly bool                   `yaml:"internal_only" json:"internal_only"`
	JobRoles     []string               `yaml:"job_roles" json:"job_roles,omitempty"`
	Module       string                 `yaml:"module" json:"module,omitempty"`
	MinLevel     models.PermissionLevel `yaml:"min_level" json:"min_level,omitempty" validate:"omitempty,oneof=blocked view total"`
	Capabilities []string               `yaml:"capabilities" json:"capabilities,omitempty"`
}

// RequiredLevel 页面要求的模块级别，未配置时为view
func (p *Page) RequiredLevel() models.PermissionLevel {
	if p.MinLevel == "" {
		return models.LevelView
	}
	return p.MinLevel
}

// JobRoleRule 岗位 -> 默认档案
type JobRoleRule struct {
	JobRole string `yaml:"job_role" json:"job_role" validate:"required"`
	Profile string `yaml:"profile" json:"profile" validate:"required"`
	Tier    string `yaml:"tier" json:"tier,omitempty"`
}

// Tier 岗位层级的默认权限，逐项列出
type Tier struct {
	Key         string                            `yaml:"key" json:"key" validate:"required"`
	Description string                            `yaml:"description" json:"description"`
	Modules     map[string]models.PermissionLevel `yaml:"modules" json:"modules" validate:"dive,keys,required,endkeys,oneof=blocked view total"`
	Roles       []string                          `yaml:"roles" json:"roles,omitempty"`
}

// NormalizeJobRole 岗位比较口径：去空格、小写
func NormalizeJobRole(jobRole string) string {
	return strings.ToLower(strings.TrimSpace(jobRole))
}

// ========== 查询 ==========

// Page 按ID查找页面
func (c *Catalog) Page(id string) (*Page, bool) {
	page, ok := c.pages[id]
	return page, ok
}

// Module 按key查找模块
func (c *Catalog) Module(key string) (*Module, bool) {
	module, ok := c.modules[key]
	return module, ok
}

// EntityModule 实体所属模块
func (c *Catalog) EntityModule(entity string) (string, bool) {
	module, ok := c.entities[entity]
	return module, ok
}

// EntityJobRoles 实体的岗位白名单，继承所属模块
func (c *Catalog) EntityJobRoles(entity string) []string {
	key, ok := c.entities[entity]
	if !ok {
		return nil
	}
	return c.modules[key].JobRoles
}

// HasEntity 是否为目录中的实体
func (c *Catalog) HasEntity(entity string) bool {
	_, ok := c.entities[entity]
	return ok
}

// Tier 按key查找层级
func (c *Catalog) Tier(key string) (*Tier, bool) {
	tier, ok := c.tiers[key]
	return tier, ok
}

// ProfileNameFor 岗位对应的默认档案名和层级，未知岗位返回兜底档案
func (c *Catalog) ProfileNameFor(jobRole string) (name string, tier string) {
	if rule, ok := c.jobRoles[NormalizeJobRole(jobRole)]; ok {
		return rule.Profile, rule.Tier
	}
	return c.FallbackProfile, ""
}

// DefaultsFor 生成层级的默认模块权限：全部blocked，叠加通用默认值，再叠加层级配置
func (c *Catalog) DefaultsFor(tier string) models.ModulePermissions {
	perms := make(models.ModulePermissions, len(c.Modules))
	for _, module := range c.Modules {
		perms[module.Key] = models.LevelBlocked
	}
	for module, level := range c.DefaultLevels {
		perms[module] = level
	}
	if t, ok := c.tiers[tier]; ok {
		for module, level := range t.Modules {
			perms[module] = level
		}
	}
	return perms
}

// RolesFor 层级附带的能力标签
func (c *Catalog) RolesFor(tier string) []string {
	if t, ok := c.tiers[tier]; ok {
		return append([]string(nil), t.Roles...)
	}
	return nil
}

// JobRolesFor 映射到同一档案名的全部岗位
func (c *Catalog) JobRolesFor(profileName string) []string {
	var roles []string
	for _, rule := range c.JobRoles {
		if rule.Profile == profileName {
			roles = append(roles, NormalizeJobRole(rule.JobRole))
		}
	}
	sort.Strings(roles)
	return roles
}

// PageIDs 全部页面ID（按目录顺序）
func (c *Catalog) PageIDs() []string {
	ids := make([]string, 0, len(c.Pages))
	for _, page := range c.Pages {
		ids = append(ids, page.ID)
	}
	return ids
}

// ContainsJobRole 岗位是否在白名单内
func ContainsJobRole(allowList []string, jobRole string) bool {
	normalized := NormalizeJobRole(jobRole)
	if normalized == "" {
		return false
	}
	for _, allowed := range allowList {
		if NormalizeJobRole(allowed) == normalized {
			return true
		}
	}
	return false
}
