package schema

import (
	"fmt"
	"strings"

	"github.com/doriyyds-dori/dcc-dashboard/internal/ingest"
	"github.com/doriyyds-dori/dcc-dashboard/internal/model"
)

// SchemaError 对账正确性所必需的字段无法解析
type SchemaError struct {
	Source  model.SourceType
	Path    string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema %s (%s): required fields unresolved: %s",
		e.Path, e.Source, strings.Join(e.Missing, ", "))
}

// Resolution 字段解析结果：统一口径字段 -> 候选源列名（确定性顺序）。
// 去重后缀会让同一口径命中多列，候选列全部保留，由归一化阶段合并。
type Resolution struct {
	Source  model.SourceType
	Columns map[string][]string
}

// Primary 首选源列名：无后缀者优先，其次按列序取第一个；未解析返回空串
func (r *Resolution) Primary(field string) string {
	cands := r.Columns[field]
	if len(cands) == 0 {
		return ""
	}
	return cands[0]
}

// Candidates 某字段的全部候选源列
func (r *Resolution) Candidates(field string) []string {
	return r.Columns[field]
}

// Resolved 字段是否已解析
func (r *Resolution) Resolved(field string) bool {
	return len(r.Columns[field]) > 0
}

// Resolver 字段解析器：把任意源列名映射到统一口径字段
type Resolver struct{}

// NewResolver 创建字段解析器
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve 按规则表解析一个原始表。必选字段解析失败返回 *SchemaError，
// 可选字段解析失败只是候选列为空，由调用方决定容忍与否。
func (r *Resolver) Resolve(t *model.RawTable) (*Resolution, error) {
	rules := RulesFor(t.Source)
	if rules == nil {
		return nil, fmt.Errorf("no field rules for source type %q", t.Source)
	}

	res := &Resolution{
		Source:  t.Source,
		Columns: make(map[string][]string, len(rules)),
	}

	var missing []string
	for _, rule := range rules {
		cands := matchRule(rule, t.Headers)
		if len(cands) > 0 {
			res.Columns[rule.Field] = cands
		} else if rule.Required {
			missing = append(missing, rule.Field)
		}
	}

	if len(missing) > 0 {
		return nil, &SchemaError{Source: t.Source, Path: t.Path, Missing: missing}
	}
	return res, nil
}

// matchRule 对单条规则按优先级匹配，返回确定性排序的候选列。
// 每个字段独立求值：精确匹配 > 关键词（排除词约束）> 位置兜底。
func matchRule(rule FieldRule, headers []string) []string {
	// 1. 精确匹配：排除词不作用于精确命中
	cands := collect(headers, func(base string) bool {
		for _, exact := range rule.Exact {
			if base == exact {
				return true
			}
		}
		return false
	})
	if len(cands) > 0 {
		return cands
	}

	// 2. 关键词包含，排除词一票否决
	cands = collect(headers, func(base string) bool {
		if !containsAny(base, rule.Keywords) {
			return false
		}
		return !containsAny(base, rule.Exclude)
	})
	if len(cands) > 0 {
		return cands
	}

	// 3. 位置兜底（仅门店/专员这类习惯在前两列的字段启用）
	if rule.Position >= 0 && rule.Position < len(headers) {
		if h := headers[rule.Position]; h != "" {
			return []string{h}
		}
	}
	return nil
}

// collect 收集命中的列名并排序：无去重后缀者在前，其余保持列序
func collect(headers []string, match func(base string) bool) []string {
	var unsuffixed, suffixed []string
	for _, h := range headers {
		if h == "" {
			continue
		}
		base := ingest.BaseHeaderName(h)
		if !match(base) {
			continue
		}
		if h == base {
			unsuffixed = append(unsuffixed, h)
		} else {
			suffixed = append(suffixed, h)
		}
	}
	return append(unsuffixed, suffixed...)
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
