package normalize

import (
	"fmt"

	"github.com/doriyyds-dori/dcc-dashboard/internal/model"
	"github.com/doriyyds-dori/dcc-dashboard/internal/schema"
)

// labelFields 文本字段，不做数值归一
var labelFields = map[string]bool{
	model.FieldStoreName:     true,
	model.FieldAdvisorName:   true,
	model.FieldRegionManager: true,
	model.FieldProvince:      true,
	model.FieldCity:          true,
}

// ratioFields 比例字段，整列做百分比口径归一
var ratioFields = map[string]bool{
	model.FieldVisitRate: true,
}

// BuildTable 把解析完字段映射的原始表归一化为统一口径表。
// 返回随表产生的数据质量警告（脏值归零、多列合并）。
func BuildTable(raw *model.RawTable, res *schema.Resolution) (*model.NormalizedTable, []model.DataQualityWarning) {
	allRows := make([]int, len(raw.Rows))
	for i := range raw.Rows {
		allRows[i] = i
	}
	return buildRows(raw, res, allRows)
}

// BuildFunnelTables 漏斗表专用：先按专员名列把行分为门店汇总行与
// 专员明细行，再分别归一化为两张表。
func BuildFunnelTables(raw *model.RawTable, res *schema.Resolution) (agg, detail *model.NormalizedTable, warnings []model.DataQualityWarning) {
	advisorCells := collapseField(raw, res, model.FieldAdvisorName)
	aggIdx, detailIdx := ClassifyRows(advisorCells)

	agg, aggWarns := buildRows(raw, res, aggIdx)
	detail, detWarns := buildRows(raw, res, detailIdx)

	warnings = append(warnings, aggWarns...)
	warnings = append(warnings, detWarns...)
	return agg, detail, warnings
}

// buildRows 列式归一化：先按字段把候选列合并、分型、整列归一，
// 再按选中的行下标装配成行。
func buildRows(raw *model.RawTable, res *schema.Resolution, rowIdx []int) (*model.NormalizedTable, []model.DataQualityWarning) {
	var warnings []model.DataQualityWarning

	fields := make([]string, 0, len(res.Columns))
	for _, rule := range schema.RulesFor(raw.Source) {
		if res.Resolved(rule.Field) {
			fields = append(fields, rule.Field)
		}
	}

	texts := make(map[string][]string, len(fields))
	numbers := make(map[string][]float64)

	for _, field := range fields {
		cands := res.Candidates(field)
		if len(cands) > 1 {
			warnings = append(warnings, model.DataQualityWarning{
				Kind:    model.WarnCollisionCollapsed,
				Source:  raw.Source,
				Field:   field,
				Message: fmt.Sprintf("field %s matched %d columns, merged by first non-empty value", field, len(cands)),
			})
		}
		cells := collapseField(raw, res, field)

		if labelFields[field] {
			texts[field] = cells
			continue
		}

		values := make([]float64, len(cells))
		failed := 0
		for i, cell := range cells {
			var v float64
			var ok bool
			if ratioFields[field] {
				v, ok = ParseNumber(cell)
			} else {
				// 计数与评分口径：负值与脏值一律归零
				v, ok = ToCount(cell)
			}
			if !ok && cell != "" {
				failed++
			}
			values[i] = v
		}
		if failed > 0 {
			warnings = append(warnings, model.DataQualityWarning{
				Kind:    model.WarnCoercionDefaulted,
				Source:  raw.Source,
				Field:   field,
				Message: fmt.Sprintf("field %s: %d cells failed numeric coercion, defaulted to 0", field, failed),
			})
		}
		if ratioFields[field] {
			values = NormalizeRatioColumn(values)
		}
		numbers[field] = values
	}

	out := model.NewNormalizedTable(raw.Source, fields)
	for _, i := range rowIdx {
		labels := make(map[string]string)
		values := make(map[string]float64)
		for field, cells := range texts {
			if i < len(cells) {
				labels[field] = cells[i]
			}
		}
		for field, col := range numbers {
			if i < len(col) {
				values[field] = col[i]
			}
		}
		out.Append(labels, values)
	}
	return out, warnings
}

// collapseField 合并某字段全部候选列为一列单元格
func collapseField(raw *model.RawTable, res *schema.Resolution, field string) []string {
	cands := res.Candidates(field)
	columns := make([][]string, 0, len(cands))
	for _, name := range cands {
		if col := raw.Column(name); col != nil {
			columns = append(columns, col)
		}
	}
	return CollapseCollisions(columns, len(raw.Rows))
}
