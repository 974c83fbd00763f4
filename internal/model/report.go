package model

import "time"

// WarningKind 数据质量警告类别（非致命，随结果一并返回）
type WarningKind string

const (
	WarnCoercionDefaulted  WarningKind = "coercion_defaulted"  // 单元格数值解析失败，按 0 处理
	WarnCollisionCollapsed WarningKind = "collision_collapsed" // 同一口径命中多列，按首个非空值合并
	WarnAttributionMissing WarningKind = "attribution_missing" // 归属表缺失或不可用，归属字段置为“未知”
	WarnSubtotalMissing    WarningKind = "subtotal_missing"    // 漏斗表无小计行，门店数值由专员行求和兜底
)

// DataQualityWarning 数据质量警告
type DataQualityWarning struct {
	Kind    WarningKind `json:"kind"`
	Source  SourceType  `json:"source,omitempty"`
	Field   string      `json:"field,omitempty"`
	Message string      `json:"message"`
}

// SourceResult 单个数据源的摄取结果
type SourceResult struct {
	Source       SourceType    `json:"source"`
	Filename     string        `json:"filename"`
	Status       string        `json:"status"` // loaded/skipped/error
	HeaderRow    int           `json:"headerRow"`
	TotalRows    int           `json:"totalRows"`
	DetailRows   int           `json:"detailRows"`
	SkippedRows  int           `json:"skippedRows"`
	Error        string        `json:"error,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// ReconcileReport 一次对账运行的完整报告
type ReconcileReport struct {
	RunID        string                `json:"runId"`
	InputDigest  string                `json:"inputDigest"`
	Sources      []SourceResult        `json:"sources"`
	Warnings     []DataQualityWarning  `json:"warnings"`
	AdvisorCount int                   `json:"advisorCount"`
	StoreCount   int                   `json:"storeCount"`
	StartedAt    time.Time             `json:"startedAt"`
	Duration     time.Duration         `json:"duration"`
	Status       string                `json:"status"` // done/error
	Error        string                `json:"error,omitempty"`
}

// Snapshot 一次对账的完整产物（表示层按输入指纹整体缓存）
type Snapshot struct {
	Advisors *AdvisorTable    `json:"advisors"`
	Stores   *StoreTable      `json:"stores"`
	Report   *ReconcileReport `json:"report"`
}
