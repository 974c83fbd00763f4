package server

import (
	"log"
	"path/filepath"

	"github.com/gin-gonic/gin"

	v1 "github.com/doriyyds-dori/dcc-dashboard/internal/api/v1"
	"github.com/doriyyds-dori/dcc-dashboard/internal/config"
	"github.com/doriyyds-dori/dcc-dashboard/internal/service/snapshot"
	"github.com/doriyyds-dori/dcc-dashboard/internal/store"
)

// Server HTTP服务器
type Server struct {
	router *gin.Engine
	store  *store.Store
	cache  *snapshot.Cache
	v1     *v1.Handler
}

// NewServer 创建服务器
func NewServer(cfg *config.AppConfig) *Server {
	if !cfg.Server.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}

	dataDir, err := config.EnsureDataDir(cfg)
	if err != nil {
		dataDir = cfg.Data.DataDir
	}
	dbPath := filepath.Join(dataDir, "dcc-dashboard.db")

	sqliteStore, err := store.New(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	cache := snapshot.NewCache(cfg.Cache.TTL())
	handler := v1.NewHandler(cache, sqliteStore)

	s := &Server{
		router: gin.Default(),
		store:  sqliteStore,
		cache:  cache,
		v1:     handler,
	}
	s.setupRoutes()
	return s
}

// setupRoutes 设置路由
func (s *Server) setupRoutes() {
	// CORS
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	api := s.router.Group("/api")
	{
		s.v1.RegisterRoutes(api)
	}
}

// Run 启动服务器
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// Close 释放资源
func (s *Server) Close() error {
	return s.store.Close()
}
