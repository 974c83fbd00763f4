package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/doriyyds-dori/dcc-dashboard/internal/importer"
	"github.com/doriyyds-dori/dcc-dashboard/internal/service/snapshot"
	"github.com/doriyyds-dori/dcc-dashboard/internal/store"
)

// Handler V1 API 处理器
type Handler struct {
	coordinator *importer.Coordinator
	cache       *snapshot.Cache
	store       *store.Store
}

// NewHandler 创建处理器
func NewHandler(cache *snapshot.Cache, st *store.Store) *Handler {
	return &Handler{
		coordinator: importer.NewCoordinator(),
		cache:       cache,
		store:       st,
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	api.POST("/reconcile", h.Reconcile)
	api.POST("/reconcile/stream", h.ReconcileStream)
	api.GET("/advisors", h.Advisors)
	api.GET("/stores", h.Stores)
	api.GET("/runs", h.Runs)
	api.GET("/snapshots/:digest", h.Snapshot)
	api.GET("/status", h.Status)
}
