package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/doriyyds-dori/dcc-dashboard/internal/model"
	"github.com/doriyyds-dori/dcc-dashboard/internal/store"
)

// latestSnapshot 当前看板快照：缓存优先，冷启动回落到库
func (h *Handler) latestSnapshot() (*model.Snapshot, bool) {
	if snap, ok := h.cache.Latest(); ok {
		return snap, true
	}
	if h.store == nil {
		return nil, false
	}
	snap, err := h.store.LoadLatestSnapshot()
	if err != nil {
		if !errors.Is(err, store.ErrSnapshotNotFound) {
			return nil, false
		}
		return nil, false
	}
	h.cache.Put(snap.Report.InputDigest, snap)
	return snap, true
}

// Advisors 专员明细表
// GET /api/advisors
func (h *Handler) Advisors(c *gin.Context) {
	snap, ok := h.latestSnapshot()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "尚无对账数据，请先上传数据源"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"records":  snap.Advisors.Records,
		"warnings": snap.Report.Warnings,
	})
}

// Stores 门店汇总表
// GET /api/stores
func (h *Handler) Stores(c *gin.Context) {
	snap, ok := h.latestSnapshot()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "尚无对账数据，请先上传数据源"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"records":  snap.Stores.Records,
		"warnings": snap.Report.Warnings,
	})
}

// Snapshot 按输入指纹读历史快照：缓存优先，未命中回落到库并回填缓存
// GET /api/snapshots/:digest
func (h *Handler) Snapshot(c *gin.Context) {
	digest := c.Param("digest")
	if snap, ok := h.cache.Get(digest); ok {
		c.JSON(http.StatusOK, snap)
		return
	}
	if h.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "快照不存在"})
		return
	}
	snap, err := h.store.LoadSnapshot(digest)
	if err != nil {
		if errors.Is(err, store.ErrSnapshotNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "快照不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.cache.Put(digest, snap)
	c.JSON(http.StatusOK, snap)
}

// Runs 运行日志
// GET /api/runs
func (h *Handler) Runs(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusOK, gin.H{"runs": []store.RunSummary{}})
		return
	}
	runs, err := h.store.ListRuns(50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// Status 服务状态
// GET /api/status
func (h *Handler) Status(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if snap, ok := h.latestSnapshot(); ok {
		resp["latestRun"] = snap.Report.RunID
		resp["advisorCount"] = snap.Report.AdvisorCount
		resp["storeCount"] = snap.Report.StoreCount
		resp["inputDigest"] = snap.Report.InputDigest
	}
	c.JSON(http.StatusOK, resp)
}
