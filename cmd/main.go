package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"dormpool/backend/internal/api/handler"
	"dormpool/backend/internal/lifecycle"
	"dormpool/backend/internal/models"
	"dormpool/backend/internal/objectstore"
	"dormpool/backend/internal/storage"
	"dormpool/backend/internal/synchub"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies() (*gorm.DB, *redis.Client) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		envOr("DB_HOST", "localhost"),
		envOr("DB_USER", "user"),
		envOr("DB_PASSWORD", "password"),
		envOr("DB_NAME", "dormpooldb"),
		envOr("DB_PORT", "5432"),
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect PostgreSQL")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     envOr("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})

	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		logrus.WithError(err).Fatal("failed to connect Redis")
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Shop{},
		&models.Basket{},
		&models.Pool{},
		&models.Chatroom{},
		&models.ChatMembership{},
		&models.Message{},
	)
	if err != nil {
		logrus.WithError(err).Fatal("failed to run migrations")
	}

	logrus.Info("database and Redis connections established, migrations complete")
	return db, rdb
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logrus.Info("starting dormpool backend")

	if err := godotenv.Load(); err != nil {
		logrus.Warn("no .env file loaded")
	}

	db, rdb := setupDependencies()
	s := storage.NewStorageService(db, rdb)

	objects, err := objectstore.NewService(context.Background())
	if err != nil {
		logrus.WithError(err).Warn("object store unavailable, attachments disabled")
		objects = nil
	}

	baskets := lifecycle.NewBasketService(s)
	pools := lifecycle.NewPoolService(s)
	chatrooms := lifecycle.NewChatroomService(s)
	var signer lifecycle.URLSigner
	if objects != nil {
		signer = objects
	}
	messages := lifecycle.NewMessageService(s, signer)

	hub := synchub.NewManagerService(s)
	hub.StartEventListener()
	go hub.Run()

	r := gin.Default()
	h := handler.NewHandler(s, baskets, pools, chatrooms, messages, hub, objects)

	r.POST("/register", h.Register)
	r.GET("/ws", h.ServeWebSocket)

	auth := r.Group("/", handler.AuthMiddleware())
	{
		auth.POST("/baskets", h.CreateBasket)
		auth.GET("/baskets", h.ListMyBaskets)
		auth.GET("/baskets/:id", h.GetBasket)
		auth.PATCH("/baskets/:id", h.UpdateBasket)
		auth.DELETE("/baskets/:id", h.DeleteBasket)
		auth.POST("/baskets/:id/ready", h.ToggleBasketReady)

		auth.GET("/pools", h.ListOpenPools)
		auth.GET("/pools/:id", h.GetPool)

		auth.GET("/chatrooms/:id", h.GetChatroom)
		auth.POST("/chatrooms/:id/ordered", h.MarkOrdered)
		auth.POST("/chatrooms/:id/delivered", h.MarkDelivered)
		auth.POST("/chatrooms/:id/leave", h.LeaveChatroom)
		auth.POST("/chatrooms/:id/extend", h.ExtendDeadline)
		auth.POST("/chatrooms/:id/admin", h.MakeAdmin)
		auth.DELETE("/chatrooms/:id/members/:userId", h.RemoveMember)

		auth.GET("/chatrooms/:id/messages", h.ListMessages)
		auth.POST("/chatrooms/:id/messages", h.SendMessage)
		auth.POST("/chatrooms/:id/messages/:messageId/read", h.MarkMessageRead)

		auth.GET("/attachments/upload-url", h.AttachmentUploadURL)
	}

	corsWrapper := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	})

	server := &http.Server{
		Addr:           ":" + envOr("PORT", "8080"),
		Handler:        corsWrapper.Handler(r),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	logrus.WithField("addr", server.Addr).Info("listening")
	logrus.Fatal(server.ListenAndServe())
}
