package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/doriyyds-dori/dcc-dashboard/internal/importer"
	"github.com/doriyyds-dori/dcc-dashboard/internal/model"
)

// sourceFormFields 表单字段名 -> 数据源类型。归属表可选，其余必传。
var sourceFormFields = []struct {
	Field  string
	Source model.SourceType
}{
	{"funnel", model.SourceTypeFunnel},
	{"qa", model.SourceTypeQA},
	{"call_metrics", model.SourceTypeCallMetrics},
	{"store_rank", model.SourceTypeStoreRank},
	{"attribution", model.SourceTypeAttribution},
}

// Reconcile 上传数据源并执行对账
// POST /api/reconcile
func (h *Handler) Reconcile(c *gin.Context) {
	files, cleanup, err := h.saveUploads(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer cleanup()

	snap, err := h.coordinator.Reconcile(files)
	if err != nil {
		h.recordFailure(err)
		var runErr *importer.RunError
		if errors.As(err, &runErr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":    "部分数据源对账失败",
				"failures": failureList(runErr),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.storeSnapshot(snap)
	c.JSON(http.StatusOK, gin.H{
		"report":   snap.Report,
		"advisors": snap.Advisors,
		"stores":   snap.Stores,
	})
}

// ReconcileStream 上传数据源并执行对账（SSE 进度流）
// POST /api/reconcile/stream
func (h *Handler) ReconcileStream(c *gin.Context) {
	files, cleanup, err := h.saveUploads(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer cleanup()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "不支持流式响应"})
		return
	}

	for event := range h.coordinator.Run(files) {
		// done 事件携带完整快照：先落库，SSE 只下发报告部分
		if event.Type == "done" {
			if snap, ok := event.Data.(*model.Snapshot); ok && snap != nil {
				h.storeSnapshot(snap)
				event.Data = snap.Report
			}
		}
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
		flusher.Flush()
	}
}

// saveUploads 落盘上传文件到临时目录，返回待摄取列表与清理函数
func (h *Handler) saveUploads(c *gin.Context) ([]importer.SourceFile, func(), error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, nil, errors.New("无效的表单数据")
	}

	tempDir, err := os.MkdirTemp("", "dcc_reconcile_")
	if err != nil {
		return nil, nil, errors.New("创建临时目录失败")
	}
	cleanup := func() { _ = os.RemoveAll(tempDir) }

	var files []importer.SourceFile
	for _, sf := range sourceFormFields {
		upload := firstFile(form, sf.Field)
		if upload == nil {
			continue
		}
		path := filepath.Join(tempDir, fmt.Sprintf("%s_%s", sf.Source, filepath.Base(upload.Filename)))
		if err := c.SaveUploadedFile(upload, path); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("保存 %s 文件失败", sf.Field)
		}
		files = append(files, importer.SourceFile{Source: sf.Source, Path: path})
	}

	if len(files) == 0 {
		cleanup()
		return nil, nil, errors.New("未找到上传文件")
	}
	return files, cleanup, nil
}

// storeSnapshot 快照进缓存并落库
func (h *Handler) storeSnapshot(snap *model.Snapshot) {
	h.cache.Put(snap.Report.InputDigest, snap)
	if h.store == nil {
		return
	}
	if err := h.store.RecordRun(snap.Report); err != nil {
		log.Printf("记录运行日志失败: %v", err)
	}
	if err := h.store.SaveSnapshot(snap); err != nil {
		log.Printf("持久化快照失败: %v", err)
	}
}

// recordFailure 失败也要落运行日志，供操作者回查
func (h *Handler) recordFailure(err error) {
	if h.store == nil {
		return
	}
	if dbErr := h.store.RecordFailedRun(uuid.New().String(), "", err.Error(), time.Now()); dbErr != nil {
		log.Printf("记录失败日志失败: %v", dbErr)
	}
}

func firstFile(form *multipart.Form, field string) *multipart.FileHeader {
	files := form.File[field]
	if len(files) == 0 {
		return nil
	}
	return files[0]
}

func failureList(runErr *importer.RunError) []gin.H {
	out := make([]gin.H, 0, len(runErr.Failures))
	for _, f := range runErr.Failures {
		out = append(out, gin.H{
			"source": f.Source,
			"file":   filepath.Base(f.Path),
			"reason": f.Err.Error(),
		})
	}
	return out
}
