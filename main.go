package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"pulsehr/config"
	"pulsehr/logger"
	"pulsehr/middleware"
	chathandler "pulsehr/module/chat/handler"
	chatsvc "pulsehr/module/chat/service"
	"pulsehr/service/chat"
	"pulsehr/service/chat/handlers"
	"pulsehr/service/storage"
	"pulsehr/tools/ids"
	"pulsehr/tools/security"
)

func main() {
	cfg := config.Load()
	ids.SetNodeID(cfg.Server.NodeID)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := storage.OpenPool(ctx, cfg.Database.URL)
	if err != nil {
		logger.Errorf("[boot] postgres: %v", err)
		return
	}
	defer pool.Close()

	store := storage.NewPgStore(pool)
	if err := store.InitSchema(ctx); err != nil {
		logger.Errorf("[boot] schema: %v", err)
		return
	}

	rdb, err := storage.OpenRedis(ctx, storage.RedisConfig(cfg.Redis))
	if err != nil {
		logger.Errorf("[boot] redis: %v", err)
		return
	}
	activity := storage.NewRedisActivityStore(rdb, cfg.Presence.ActiveWindow)

	registry := chat.NewMemoryRegistry()
	disp := chat.NewDispatcher()
	fanout := chat.NewFanout(4, 1024)
	server := chat.NewServer(registry, disp, fanout)

	svc := chatsvc.NewChatService(store, server)

	disp.Register(handlers.NewIdentifyHandler(server))
	disp.Register(handlers.NewSendHandler(svc))
	disp.Register(handlers.NewAckDeliveredHandler(svc))
	disp.Register(handlers.NewAckReadHandler(svc))
	disp.Register(handlers.NewEditHandler(svc))
	disp.Register(handlers.NewDeleteHandler(svc))

	authOpts := security.DefaultOptions([]byte(cfg.Auth.Secret))
	authOpts.TTL = cfg.Auth.TTL

	r := gin.New()
	r.Use(gin.Recovery(), middleware.CORS())

	r.GET("/ws", server.HandleWS)

	api := r.Group("/api", middleware.Auth(authOpts))
	chathandler.NewRest(svc, registry, activity).Mount(api)

	logger.Infof("[boot] listening on %s", cfg.Server.Addr)
	if err := r.Run(cfg.Server.Addr); err != nil {
		logger.Errorf("[boot] server: %v", err)
	}
}
