package ingest

import (
	"fmt"

	"github.com/doriyyds-dori/dcc-dashboard/internal/model"
)

// 摄取失败原因
const (
	ReasonNotFound    = "not_found"    // 文件不存在或不可读
	ReasonEmpty       = "empty"        // 文件为空
	ReasonUndecodable = "undecodable"  // 所有候选编码均解码失败
	ReasonBadWorkbook = "bad_workbook" // 工作簿容器损坏
	ReasonNoHeader    = "no_header"    // 扫描窗口内未找到表头行
)

// IngestError 文件级摄取错误。区别于“文件合法为空”，
// 任何结构性失败都必须带上文件与原因，供操作者定位。
type IngestError struct {
	Path   string
	Source model.SourceType
	Reason string
	Err    error
}

func (e *IngestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ingest %s (%s): %s: %v", e.Path, e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("ingest %s (%s): %s", e.Path, e.Source, e.Reason)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

// newIngestError 构造摄取错误
func newIngestError(path string, source model.SourceType, reason string, err error) *IngestError {
	return &IngestError{Path: path, Source: source, Reason: reason, Err: err}
}
