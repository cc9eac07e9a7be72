package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"accessgov/internal/models"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default 内置目录
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load 从文件加载目录，path为空时使用内置目录
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取权限目录失败: %w", err)
	}
	return Parse(data)
}

// Parse 解析并校验目录
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("解析权限目录失败: %w", err)
	}
	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("权限目录格式错误: %w", err)
	}
	if err := c.index(); err != nil {
		return nil, fmt.Errorf("权限目录校验失败: %w", err)
	}
	return &c, nil
}

// index 建立索引并做跨表校验
func (c *Catalog) index() error {
	c.modules = make(map[string]*Module, len(c.Modules))
	c.entities = make(map[string]string)
	for i := range c.Modules {
		module := &c.Modules[i]
		if _, exists := c.modules[module.Key]; exists {
			return fmt.Errorf("模块重复: %s", module.Key)
		}
		c.modules[module.Key] = module
		for _, entity := range module.Entities {
			if owner, exists := c.entities[entity]; exists {
				return fmt.Errorf("实体 %s 同时归属模块 %s 和 %s", entity, owner, module.Key)
			}
			c.entities[entity] = module.Key
		}
	}

	for module := range c.DefaultLevels {
		if _, ok := c.modules[module]; !ok {
			return fmt.Errorf("默认级别引用了未知模块: %s", module)
		}
	}

	c.tiers = make(map[string]*Tier, len(c.Tiers))
	for i := range c.Tiers {
		tier := &c.Tiers[i]
		if _, exists := c.tiers[tier.Key]; exists {
			return fmt.Errorf("层级重复: %s", tier.Key)
		}
		for module := range tier.Modules {
			if _, ok := c.modules[module]; !ok {
				return fmt.Errorf("层级 %s 引用了未知模块: %s", tier.Key, module)
			}
		}
		c.tiers[tier.Key] = tier
	}

	c.jobRoles = make(map[string]*JobRoleRule, len(c.JobRoles))
	for i := range c.JobRoles {
		rule := &c.JobRoles[i]
		key := NormalizeJobRole(rule.JobRole)
		if _, exists := c.jobRoles[key]; exists {
			return fmt.Errorf("岗位映射重复: %s", rule.JobRole)
		}
		if rule.Tier != "" {
			if _, ok := c.tiers[rule.Tier]; !ok {
				return fmt.Errorf("岗位 %s 引用了未知层级: %s", rule.JobRole, rule.Tier)
			}
		}
		c.jobRoles[key] = rule
	}

	c.pages = make(map[string]*Page, len(c.Pages))
	for i := range c.Pages {
		page := &c.Pages[i]
		if _, exists := c.pages[page.ID]; exists {
			return fmt.Errorf("页面重复: %s", page.ID)
		}
		if page.Module != "" {
			if _, ok := c.modules[page.Module]; !ok {
				return fmt.Errorf("页面 %s 引用了未知模块: %s", page.ID, page.Module)
			}
		}
		// 非公开页面至少需要一条约束
		if !page.Public && page.Module == "" && len(page.Capabilities) == 0 && len(page.JobRoles) == 0 {
			return fmt.Errorf("页面 %s 缺少访问约束", page.ID)
		}
		if page.MinLevel == models.LevelBlocked {
			return fmt.Errorf("页面 %s 的最低级别不能为blocked", page.ID)
		}
		c.pages[page.ID] = page
	}

	return nil
}
