package normalize

import (
	"math"
	"strconv"
	"strings"
)

// ParseNumber 宽松解析数值文本：去千分位、去百分号、全角转半角。
// 解析失败返回 0 与 false——系统对脏单元格的既定策略是降级为 0 并记警告，
// 而不是中断整个文件。
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "，", "")
	s = strings.ReplaceAll(s, "％", "%")
	s = strings.TrimSuffix(s, "%")
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ToCount 计数口径：负值与脏值一律归零
func ToCount(s string) (float64, bool) {
	f, ok := ParseNumber(s)
	if !ok || f < 0 {
		return 0, ok && f >= 0
	}
	return f, true
}

// NormalizeRatioColumn 比例列整列归一。判定按列不按格：
// 列内最大值超过 1 即认定整列是百分点口径（0-100），整列除以 100；
// 否则认定已是小数口径，原样保留。
func NormalizeRatioColumn(values []float64) []float64 {
	max := 0.0
	for _, v := range values {
		if v > max {
			max = v
		}
	}
	if max <= 1.0 {
		return values
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v / 100.0
	}
	return out
}

// SafeDiv 全函数除法：0/0、x/0、NaN、±Inf 一律得 0，绝不向下游扩散
func SafeDiv(num, den float64) float64 {
	if den == 0 || math.IsNaN(num) || math.IsNaN(den) || math.IsInf(num, 0) || math.IsInf(den, 0) {
		return 0
	}
	v := num / den
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// CollapseCollisions 多列合并为一列：同一口径命中多个源列时
// （常见于去重后缀列），每行取第一个非空单元格，依次回填，全空得空串。
// 候选列顺序由字段解析阶段确定，保证合并结果可复现。
func CollapseCollisions(columns [][]string, rowCount int) []string {
	out := make([]string, rowCount)
	for i := 0; i < rowCount; i++ {
		for _, col := range columns {
			if i >= len(col) {
				continue
			}
			if v := strings.TrimSpace(col[i]); v != "" {
				out[i] = v
				break
			}
		}
	}
	return out
}
