// Command seed populates the postgres backend with development users.
// Existing usernames are skipped, so the command is safe to re-run.
package main

import (
	"context"
	"errors"
	"log"

	"pingme/internal/db"
	"pingme/internal/models"
	"pingme/internal/services"
	"pingme/internal/store"
	"pingme/internal/store/postgres"
	"pingme/internal/utils"
)

var seedUsers = []models.RegisterRequest{
	{Username: "anand", Password: "123456", DisplayName: "Anand"},
	{Username: "aditya", Password: "123456", DisplayName: "Aditya"},
	{Username: "emma", Password: "123456", DisplayName: "Emma Thompson"},
	{Username: "james", Password: "123456", DisplayName: "James Anderson"},
}

func main() {
	if err := utils.LoadEnv(); err != nil {
		log.Println("Warning: .env file not found")
	}

	ctx := context.Background()
	if err := db.Init(ctx, db.ConnString()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	userService := services.NewUserService(postgres.NewUserStore(db.Pool), nil)

	created := 0
	for _, req := range seedUsers {
		if _, err := userService.Register(ctx, req); err != nil {
			if errors.Is(err, store.ErrUserExists) {
				log.Printf("user %q already exists, skipping", req.Username)
				continue
			}
			log.Fatalf("Failed to seed user %q: %v", req.Username, err)
		}
		created++
	}
	log.Printf("Database seeded: %d users created", created)
}
