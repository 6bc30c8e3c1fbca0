// Command client is a minimal terminal chat client: it logs in, opens
// the event channel and mirrors one conversation at a time.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"pingme/internal/client"
	"pingme/internal/models"
	"pingme/internal/utils"
)

func main() {
	server := flag.String("server", "http://localhost:3001", "server base URL")
	wsURL := flag.String("ws", "ws://localhost:3001/ws", "event channel URL")
	username := flag.String("user", "", "username")
	password := flag.String("pass", "", "password")
	flag.Parse()

	if *username == "" || *password == "" {
		log.Fatal("both -user and -pass are required")
	}

	ctx := context.Background()
	api := client.NewHTTPAPI(*server, "")
	auth, err := api.Login(ctx, models.LoginRequest{Username: *username, Password: *password})
	if err != nil {
		log.Fatalf("login failed: %v", err)
	}
	fmt.Printf("logged in as %s\n", auth.Username)

	// OnChange runs from the channel goroutine as well as this one.
	var (
		renderMu sync.Mutex
		printed  int
		store    *client.Store
	)
	resetRender := func() {
		renderMu.Lock()
		printed = 0
		renderMu.Unlock()
	}
	store = client.NewStore(client.Config{
		Self:       auth.UserID,
		API:        api,
		TypingIdle: utils.GetEnvDuration("PINGME_TYPING_IDLE", 2*time.Second),
		OnChange: func() {
			// Print messages appended since the last render.
			renderMu.Lock()
			defer renderMu.Unlock()
			msgs := store.Messages()
			if printed > len(msgs) {
				printed = 0
			}
			for ; printed < len(msgs); printed++ {
				m := msgs[printed]
				who := "them"
				if m.SenderID == auth.UserID {
					who = "you"
				}
				body := m.Text
				if body == "" {
					body = "[image] " + m.Image
				}
				fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Format("15:04"), who, body)
			}
		},
	})

	ch, err := client.DialChannel(*wsURL, auth.UserID, store)
	if err != nil {
		log.Fatalf("event channel dial failed: %v", err)
	}
	defer ch.Close()

	if err := store.RefreshRoster(ctx); err != nil {
		log.Fatalf("failed to load users: %v", err)
	}
	printRoster(store)

	fmt.Println(`commands: /users, /open <username>, /close, plain text sends`)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/users":
			printRoster(store)
		case line == "/close":
			if err := store.Select(ctx, ""); err != nil {
				fmt.Println("error:", err)
			}
			resetRender()
		case strings.HasPrefix(line, "/open "):
			name := strings.TrimSpace(strings.TrimPrefix(line, "/open "))
			peer := findPeer(store, name)
			if peer == "" {
				fmt.Printf("no such user %q\n", name)
				continue
			}
			resetRender()
			if err := store.Select(ctx, peer); err != nil {
				fmt.Println("error:", err)
			}
		default:
			store.InputActivity()
			if _, err := store.Send(ctx, models.SendMessageRequest{Text: line}); err != nil {
				fmt.Println("error:", err)
			}
		}
	}
}

func printRoster(store *client.Store) {
	for _, e := range store.Sidebar() {
		status := " "
		if e.Online {
			status = "*"
		}
		preview := e.LastMessage
		if preview == "" {
			preview = "(no messages)"
		}
		fmt.Printf("%s %-20s %s\n", status, e.Username, preview)
	}
}

func findPeer(store *client.Store, username string) string {
	for _, e := range store.Roster() {
		if e.Username == username {
			return e.ID
		}
	}
	return ""
}
