package model

// SourceType 数据源类型（用于输入容错识别与字段映射）
type SourceType string

const (
	SourceTypeUnknown SourceType = "unknown"

	SourceTypeFunnel      SourceType = "funnel"       // 邀约漏斗表（线索/到店）
	SourceTypeQA          SourceType = "qa"           // 质检评分表
	SourceTypeCallMetrics SourceType = "call_metrics" // 外呼跟进指标表
	SourceTypeStoreRank   SourceType = "store_rank"   // 门店排名评分表
	SourceTypeAttribution SourceType = "attribution"  // 门店归属表（大区/省/市，可选）
)

// RequiredSources 必选数据源（缺失或解析失败即整体失败）
var RequiredSources = []SourceType{
	SourceTypeFunnel,
	SourceTypeQA,
	SourceTypeCallMetrics,
	SourceTypeStoreRank,
}

// IsRequired 是否必选数据源
func (t SourceType) IsRequired() bool {
	for _, s := range RequiredSources {
		if s == t {
			return true
		}
	}
	return false
}

// RawTable 原始表格：表头已定位、列名已去重，单元格仍为未分型文本
type RawTable struct {
	Source  SourceType `json:"source"`
	Path    string     `json:"path"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Column 按列名取一列（找不到时返回 nil）
func (t *RawTable) Column(name string) []string {
	idx := -1
	for i, h := range t.Headers {
		if h == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	col := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		if idx < len(row) {
			col[i] = row[idx]
		}
	}
	return col
}

// Cell 取单元格文本，越界返回空串
func (t *RawTable) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) {
		return ""
	}
	r := t.Rows[row]
	if col < 0 || col >= len(r) {
		return ""
	}
	return r[col]
}

// NormalizedTable 归一化之后的表：固定语义字段 -> 每行取值
// 数值字段保证不再是百分比文本，比例值恒在 [0,1]
type NormalizedTable struct {
	Source SourceType           `json:"source"`
	Fields []string             `json:"fields"`
	Rows   []map[string]float64 `json:"rows"`
	// Labels 文本字段（门店名/专员名等），与 Rows 同下标
	Labels []map[string]string `json:"labels"`
}

// NewNormalizedTable 创建归一化表
func NewNormalizedTable(source SourceType, fields []string) *NormalizedTable {
	return &NormalizedTable{
		Source: source,
		Fields: fields,
		Rows:   []map[string]float64{},
		Labels: []map[string]string{},
	}
}

// Append 追加一行
func (t *NormalizedTable) Append(labels map[string]string, values map[string]float64) {
	t.Labels = append(t.Labels, labels)
	t.Rows = append(t.Rows, values)
}

// Len 行数
func (t *NormalizedTable) Len() int {
	return len(t.Rows)
}
