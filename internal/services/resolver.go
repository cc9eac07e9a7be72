package services

import (
	"accessgov/internal/catalog"
	"accessgov/internal/models"
	"accessgov/pkg/metrics"
	"fmt"
)

// RequestKind 访问请求类型
type RequestKind string

const (
	RequestPage   RequestKind = "page"
	RequestModule RequestKind = "module"
	RequestEntity RequestKind = "entity"
)

// AccessRequest 一次访问判定的目标
type AccessRequest struct {
	Kind      RequestKind            `json:"kind"`
	Page      string                 `json:"page,omitempty"`
	Module    string                 `json:"module,omitempty"`
	MinLevel  models.PermissionLevel `json:"min_level,omitempty"`
	Entity    string                 `json:"entity,omitempty"`
	Operation models.EntityOperation `json:"operation,omitempty"`
}

// PageRequest 页面访问
func PageRequest(pageID string) AccessRequest {
	return AccessRequest{Kind: RequestPage, Page: pageID}
}

// ModuleRequest 模块级别访问
func ModuleRequest(module string, minLevel models.PermissionLevel) AccessRequest {
	return AccessRequest{Kind: RequestModule, Module: module, MinLevel: minLevel}
}

// EntityRequest 实体操作
func EntityRequest(entity string, op models.EntityOperation) AccessRequest {
	return AccessRequest{Kind: RequestEntity, Entity: entity, Operation: op}
}

func (r AccessRequest) String() string {
	switch r.Kind {
	case RequestPage:
		return "page:" + r.Page
	case RequestModule:
		return fmt.Sprintf("module:%s>=%s", r.Module, r.MinLevel)
	case RequestEntity:
		return fmt.Sprintf("entity:%s.%s", r.Entity, r.Operation)
	default:
		return "unknown"
	}
}

// 判定规则
const (
	RuleAdmin          = "admin_wildcard"
	RulePublicPage     = "public_page"
	RuleNoActor        = "no_actor"
	RuleUnknownTarget  = "unknown_target"
	RuleInternalOnly   = "internal_only"
	RuleJobRole        = "job_role_allow_list"
	RuleAllowList      = "allow_list"
	RuleCapability     = "capability"
	RuleEntityGrant    = "entity_grant"
	RuleModuleTotal    = "module_total"
	RuleModuleLevel    = "module_level"
	RuleNoProfile      = "no_profile"
	RuleInvalidRequest = "invalid_request"
	RuleDefaultDeny    = "default_deny"
)

// Decision 判定结果，拒绝是正常返回值而不是错误
type Decision struct {
	Allowed bool   `json:"allowed"`
	Rule    string `json:"rule"`
}

func allow(rule string) Decision { return Decision{Allowed: true, Rule: rule} }
func deny(rule string) Decision  { return Decision{Allowed: false, Rule: rule} }

// Resolver 权限判定引擎，所有访问检查都经过这里
type Resolver struct {
	catalog *catalog.Catalog
}

// NewResolver 创建判定引擎
func NewResolver(c *catalog.Catalog) *Resolver {
	return &Resolver{catalog: c}
}

// Catalog 当前使用的目录
func (r *Resolver) Catalog() *catalog.Catalog {
	return r.catalog
}

// Resolve 按固定优先级判定，命中即返回
func (r *Resolver) Resolve(actor *EffectiveActor, req AccessRequest) Decision {
	decision := r.decide(actor, req)

	effect := "deny"
	if decision.Allowed {
		effect = "allow"
	}
	metrics.AccessDecisions.WithLabelValues(string(req.Kind), effect).Inc()
	return decision
}

// Allowed 便捷方法
func (r *Resolver) Allowed(actor *EffectiveActor, req AccessRequest) bool {
	return r.Resolve(actor, req).Allowed
}

// AccessiblePages 主体可访问的页面
func (r *Resolver) AccessiblePages(actor *EffectiveActor) []string {
	var pages []string
	for _, id := range r.catalog.PageIDs() {
		if r.decide(actor, PageRequest(id)).Allowed {
			pages = append(pages, id)
		}
	}
	return pages
}

func (r *Resolver) decide(actor *EffectiveActor, req AccessRequest) Decision {
	// 1. 全局管理员通配
	if actor != nil && actor.IsAdmin() {
		return allow(RuleAdmin)
	}

	switch req.Kind {
	case RequestPage:
		return r.decidePage(actor, req.Page)
	case RequestModule:
		return r.decideModule(actor, req.Module, req.MinLevel)
	case RequestEntity:
		return r.decideEntity(actor, req.Entity, req.Operation)
	default:
		return deny(RuleInvalidRequest)
	}
}

func (r *Resolver) decidePage(actor *EffectiveActor, pageID string) Decision {
	page, ok := r.catalog.Page(pageID)
	if !ok {
		return deny(RuleUnknownTarget)
	}
	// 2. 公开页面
	if page.Public {
		return allow(RulePublicPage)
	}
	if actor == nil {
		return deny(RuleNoActor)
	}
	// 3. 仅内部人员
	if page.InternalOnly && !actor.IsInternal() {
		return deny(RuleInternalOnly)
	}
	// 4. 岗位白名单
	if len(page.JobRoles) > 0 && !catalog.ContainsJobRole(page.JobRoles, actor.JobRole()) {
		return deny(RuleJobRole)
	}

	if len(page.Capabilities) > 0 && actor.HasCapability(page.Capabilities...) {
		return allow(RuleCapability)
	}
	if page.Module != "" {
		if actor.HasProfile() && actor.ModuleLevel(page.Module).AtLeast(page.RequiredLevel()) {
			return allow(RuleModuleLevel)
		}
		return deny(RuleModuleLevel)
	}
	if len(page.Capabilities) == 0 {
		// 只由白名单约束的页面
		return allow(RuleAllowList)
	}
	return deny(RuleDefaultDeny)
}

func (r *Resolver) decideModule(actor *EffectiveActor, moduleKey string, minLevel models.PermissionLevel) Decision {
	if actor == nil {
		return deny(RuleNoActor)
	}
	module, ok := r.catalog.Module(moduleKey)
	if !ok {
		return deny(RuleUnknownTarget)
	}
	if len(module.JobRoles) > 0 && !catalog.ContainsJobRole(module.JobRoles, actor.JobRole()) {
		return deny(RuleJobRole)
	}
	if !actor.HasProfile() {
		return deny(RuleNoProfile)
	}
	if minLevel == "" {
		minLevel = models.LevelView
	}
	if !minLevel.Valid() {
		return deny(RuleInvalidRequest)
	}
	if actor.ModuleLevel(moduleKey).AtLeast(minLevel) {
		return allow(RuleModuleLevel)
	}
	return deny(RuleModuleLevel)
}

func (r *Resolver) decideEntity(actor *EffectiveActor, entity string, op models.EntityOperation) Decision {
	if actor == nil {
		return deny(RuleNoActor)
	}
	moduleKey, ok := r.catalog.EntityModule(entity)
	if !ok {
		return deny(RuleUnknownTarget)
	}
	if !op.Valid() {
		return deny(RuleInvalidRequest)
	}
	if roles := r.catalog.EntityJobRoles(entity); len(roles) > 0 && !catalog.ContainsJobRole(roles, actor.JobRole()) {
		return deny(RuleJobRole)
	}
	// 5. 自定义角色的实体授权与模块total隐含的全部操作取并集
	if actor.GrantsEntity(entity, op) {
		return allow(RuleEntityGrant)
	}
	if actor.HasProfile() && actor.ModuleLevel(moduleKey) == models.LevelTotal {
		return allow(RuleModuleTotal)
	}
	return deny(RuleDefaultDeny)
}
