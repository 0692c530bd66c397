package main

import (
	"fmt"
	"log"
	"os"

	"dormpool/backend/internal/lifecycle"
	"dormpool/backend/internal/storage"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	storageSvc := storage.NewStorageService(db, nil) // no redis needed for operator CLI

	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <command> [args]")
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "pools":
		pools, err := storageSvc.ListOpenPools()
		if err != nil {
			log.Fatalf("Error listing pools: %v", err)
		}
		for _, p := range pools {
			fmt.Printf("%s  shop=%s  location=%s  %d/%d\n",
				p.ID, p.ShopID, p.Location, p.CurrentAmount, p.MinAmount)
		}
	case "chatrooms":
		rooms, err := storageSvc.ListUnresolvedChatrooms()
		if err != nil {
			log.Fatalf("Error listing chatrooms: %v", err)
		}
		for _, r := range rooms {
			admin := r.AdminID
			if admin == "" {
				admin = "(none)"
			}
			fmt.Printf("%s  state=%s  admin=%s  expires=%s\n",
				r.ID, r.State, admin, r.ExpireAt.Format("2006-01-02 15:04"))
		}
	case "assign-admin":
		if len(os.Args) != 4 {
			fmt.Println("Usage: admin assign-admin <chatroom_id> <user_id>")
			os.Exit(1)
		}
		chatroomID, userID := os.Args[2], os.Args[3]
		chatrooms := lifecycle.NewChatroomService(storageSvc)
		if err := chatrooms.AssignAdmin(chatroomID, userID); err != nil {
			log.Fatalf("Error assigning admin: %v", err)
		}
		fmt.Printf("User %s is now admin of chatroom %s.\n", userID, chatroomID)
	default:
		fmt.Println("Unknown command")
		os.Exit(1)
	}
}
