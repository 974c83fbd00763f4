package importer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/doriyyds-dori/dcc-dashboard/internal/ingest"
	"github.com/doriyyds-dori/dcc-dashboard/internal/model"
	"github.com/doriyyds-dori/dcc-dashboard/internal/normalize"
	"github.com/doriyyds-dori/dcc-dashboard/internal/reconcile"
	"github.com/doriyyds-dori/dcc-dashboard/internal/schema"
)

// SourceFile 一份待摄取的输入文件
type SourceFile struct {
	Source model.SourceType `json:"source"`
	Path   string           `json:"path"`
}

// SourceFailure 单个数据源的失败明细
type SourceFailure struct {
	Source model.SourceType
	Path   string
	Err    error
}

// RunError 聚合失败：列明哪些数据源失败、各自原因，
// 操作者据此修源文件即可，无需理解对账内部。
type RunError struct {
	Failures []SourceFailure
}

func (e *RunError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s(%s): %v", f.Source, filepath.Base(f.Path), f.Err))
	}
	return "reconcile run failed: " + strings.Join(parts, "; ")
}

// ProgressEvent 进度事件（SSE 流式推送）
type ProgressEvent struct {
	Type      string      `json:"type"` // start/source_start/source_done/done/error
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Coordinator 对账协调器：并行摄取各源文件，全部就绪后串行连接
type Coordinator struct {
	engine *reconcile.Engine
}

// NewCoordinator 创建协调器
func NewCoordinator() *Coordinator {
	return &Coordinator{engine: reconcile.NewEngine()}
}

// sourceOutcome 单源流水线产物
type sourceOutcome struct {
	file     SourceFile
	result   model.SourceResult
	tables   []*model.NormalizedTable // 漏斗源产出两张（汇总+明细），其余一张
	warnings []model.DataQualityWarning
	err      error
}

// Run 执行一次完整对账，事件经通道流出，最终快照挂在 done 事件上
func (c *Coordinator) Run(files []SourceFile) <-chan ProgressEvent {
	events := make(chan ProgressEvent, 32)
	go func() {
		defer close(events)
		snap, err := c.runWith(files, events)
		if err != nil {
			events <- ProgressEvent{Type: "error", Message: err.Error(), Timestamp: time.Now()}
			return
		}
		events <- ProgressEvent{Type: "done", Message: "对账完成", Data: snap, Timestamp: time.Now()}
	}()
	return events
}

// Reconcile 同步执行一次完整对账
func (c *Coordinator) Reconcile(files []SourceFile) (*model.Snapshot, error) {
	return c.runWith(files, nil)
}

func (c *Coordinator) runWith(files []SourceFile, events chan<- ProgressEvent) (*model.Snapshot, error) {
	startedAt := time.Now()
	emit := func(ev ProgressEvent) {
		if events != nil {
			ev.Timestamp = time.Now()
			events <- ev
		}
	}

	emit(ProgressEvent{Type: "start", Message: fmt.Sprintf("开始对账，共 %d 个数据源", len(files))})

	byType := make(map[model.SourceType]SourceFile, len(files))
	for _, f := range files {
		byType[f.Source] = f
	}

	// 必选数据源先于任何 IO 校验齐全
	var failures []SourceFailure
	for _, required := range model.RequiredSources {
		if _, ok := byType[required]; !ok {
			failures = append(failures, SourceFailure{
				Source: required,
				Err:    fmt.Errorf("source file not provided"),
			})
		}
	}
	if len(failures) > 0 {
		return nil, &RunError{Failures: failures}
	}

	// 每个文件一个任务并行摄取。单次 Load 是输入路径的纯函数，
	// 无共享可变状态，连接步骤等全部任务结束后才开始。
	outcomes := make([]sourceOutcome, len(files))
	var wg sync.WaitGroup
	for i, f := range files {
		wg.Add(1)
		go func(i int, f SourceFile) {
			defer wg.Done()
			emit(ProgressEvent{Type: "source_start", Message: fmt.Sprintf("摄取 %s", f.Source), Data: f})
			outcomes[i] = c.ingestSource(f)
			emit(ProgressEvent{Type: "source_done", Message: fmt.Sprintf("完成 %s", f.Source), Data: outcomes[i].result})
		}(i, f)
	}
	wg.Wait()

	report := &model.ReconcileReport{
		RunID:     uuid.New().String(),
		StartedAt: startedAt,
		Status:    "done",
	}

	inputs := reconcile.Inputs{}
	for _, out := range outcomes {
		report.Sources = append(report.Sources, out.result)
		report.Warnings = append(report.Warnings, out.warnings...)

		if out.err != nil {
			if out.file.Source.IsRequired() {
				failures = append(failures, SourceFailure{Source: out.file.Source, Path: out.file.Path, Err: out.err})
			} else {
				// 可选归属表失败：降级继续，引擎补“未知”占位并记警告
				report.Warnings = append(report.Warnings, model.DataQualityWarning{
					Kind:    model.WarnAttributionMissing,
					Source:  out.file.Source,
					Message: fmt.Sprintf("optional source degraded: %v", out.err),
				})
			}
			continue
		}

		switch out.file.Source {
		case model.SourceTypeFunnel:
			inputs.FunnelAgg, inputs.FunnelDetail = out.tables[0], out.tables[1]
		case model.SourceTypeQA:
			inputs.QA = out.tables[0]
		case model.SourceTypeCallMetrics:
			inputs.CallMetrics = out.tables[0]
		case model.SourceTypeStoreRank:
			inputs.StoreRank = out.tables[0]
		case model.SourceTypeAttribution:
			inputs.Attribution = out.tables[0]
		}
	}

	if len(failures) > 0 {
		return nil, &RunError{Failures: failures}
	}

	advisors, stores, warns, err := c.engine.Reconcile(inputs)
	if err != nil {
		return nil, err
	}
	report.Warnings = append(report.Warnings, warns...)
	report.AdvisorCount = len(advisors.Records)
	report.StoreCount = len(stores.Records)
	report.InputDigest = digestFiles(files)
	report.Duration = time.Since(startedAt)

	return &model.Snapshot{Advisors: advisors, Stores: stores, Report: report}, nil
}

// ingestSource 单源流水线：加载 -> 字段解析 -> 归一化
func (c *Coordinator) ingestSource(f SourceFile) sourceOutcome {
	start := time.Now()
	out := sourceOutcome{
		file: f,
		result: model.SourceResult{
			Source:   f.Source,
			Filename: filepath.Base(f.Path),
			Status:   "loaded",
		},
	}
	fail := func(err error) sourceOutcome {
		out.err = err
		out.result.Status = "error"
		out.result.Error = err.Error()
		out.result.Duration = time.Since(start)
		return out
	}

	loader := ingest.NewLoader()
	if f.Source == model.SourceTypeStoreRank {
		// 排名类文件标题行多，扫描窗口放大
		loader = ingest.NewRankingLoader()
	}

	raw, err := loader.Load(f.Path, f.Source)
	if err != nil {
		return fail(err)
	}
	out.result.TotalRows = len(raw.Rows)

	res, err := schema.NewResolver().Resolve(raw)
	if err != nil {
		return fail(err)
	}

	if f.Source == model.SourceTypeFunnel {
		agg, detail, warns := normalize.BuildFunnelTables(raw, res)
		out.tables = []*model.NormalizedTable{agg, detail}
		out.warnings = warns
		out.result.DetailRows = detail.Len()
		out.result.SkippedRows = len(raw.Rows) - agg.Len() - detail.Len()
	} else {
		table, warns := normalize.BuildTable(raw, res)
		out.tables = []*model.NormalizedTable{table}
		out.warnings = warns
		out.result.DetailRows = table.Len()
	}
	out.result.Duration = time.Since(start)
	return out
}

// digestFiles 输入指纹：所有输入文件内容的摘要，按源类型定序。
// 快照缓存按它整体失效重算。
func digestFiles(files []SourceFile) string {
	sorted := make([]SourceFile, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Source < sorted[j].Source })

	h := sha256.New()
	for _, f := range sorted {
		h.Write([]byte(f.Source))
		h.Write([]byte{0})
		data, err := os.ReadFile(f.Path)
		if err == nil {
			h.Write(data)
		}
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
