package normalize

import "strings"

// aggregateMarkers 汇总行标记：专员名单元格命中即视为门店小计/合计行
var aggregateMarkers = []string{"小计", "合计", "总计", "汇总", "total"}

// placeholderNames 占位专员名：这类行既不是汇总也不是明细，直接丢弃
var placeholderNames = []string{"-", "—", "－", "/", "nan", "none", "无"}

// IsAggregateMarker 专员名是否为汇总行标记
func IsAggregateMarker(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return false
	}
	for _, m := range aggregateMarkers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}

// IsPlaceholder 专员名是否为空白/占位
func IsPlaceholder(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return true
	}
	for _, p := range placeholderNames {
		if name == p {
			return true
		}
	}
	return false
}

// ClassifyRows 按专员名列把漏斗表行分为汇总行与明细行（返回行下标）。
// 占位行两边都不进。没有汇总行是合法输入，门店数值由明细行求和兜底。
func ClassifyRows(advisorNames []string) (aggregate, detail []int) {
	for i, name := range advisorNames {
		switch {
		case IsAggregateMarker(name):
			aggregate = append(aggregate, i)
		case IsPlaceholder(name):
			// 丢弃
		default:
			detail = append(detail, i)
		}
	}
	return aggregate, detail
}
