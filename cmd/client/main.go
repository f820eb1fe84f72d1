// Command client is a terminal chat client exercising the full messaging
// flow: login, cached conversation/history loads, the live channel, and the
// optimistic composer.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"ghar-chat-service/internal/client"
	"ghar-chat-service/internal/models"
)

func main() {
	apiURL := flag.String("api", "http://localhost:8083", "chat service base URL")
	wsURL := flag.String("ws", "ws://localhost:8083/ws", "live channel URL")
	email := flag.String("email", "", "login email (omit to reuse the stored session)")
	password := flag.String("password", "", "login password")
	storePath := flag.String("store", defaultStorePath(), "identity store file")
	flag.Parse()

	store := client.NewIdentityStore(*storePath)

	user, err := resolveUser(store, *apiURL, *email, *password)
	if err != nil {
		log.Fatalf("login: %v", err)
	}
	fmt.Printf("signed in as %s (%s)\n", user.Name, user.Role)

	api := client.NewAPI(*apiURL, user.Token, 0)
	transport := client.NewTransport(*wsURL, user.Token)

	ctx := context.Background()
	if err := transport.Connect(ctx, user.ID); err != nil {
		log.Fatalf("live channel: %v", err)
	}
	defer transport.Disconnect()

	conversations := api.LoadConversations(ctx)
	if len(conversations) == 0 {
		fmt.Println("no conversations yet")
		return
	}
	for i, conv := range conversations {
		marker := ""
		if conv.Online {
			marker = " (online)"
		}
		fmt.Printf("%2d. %s%s\n", i+1, conv.PeerName, marker)
	}

	fmt.Print("open conversation #: ")
	stdin := bufio.NewScanner(os.Stdin)
	if !stdin.Scan() {
		return
	}
	var choice int
	if _, err := fmt.Sscanf(strings.TrimSpace(stdin.Text()), "%d", &choice); err != nil || choice < 1 || choice > len(conversations) {
		log.Fatalf("invalid choice")
	}
	conv := conversations[choice-1]

	session := client.NewConversationSession(client.SessionConfig{
		ConversationID: conv.ID,
		SelfID:         user.ID,
		PeerID:         conv.PeerID,
	}, transport, api)
	session.Start(ctx)
	defer session.Close()

	for _, msg := range session.Messages() {
		printMessage(user.ID, conv.PeerName, msg)
	}

	done := transport.Subscribe(func(event models.ServerEvent) {
		if event.Type == models.EventMessage && event.SenderID == conv.PeerID {
			fmt.Printf("%s: %s\n", conv.PeerName, event.Text)
		}
	})
	defer done()

	fmt.Println("type messages, ctrl-d to quit")
	for stdin.Scan() {
		receipt, ok := session.Submit(ctx, stdin.Text())
		if !ok {
			continue
		}
		go func() {
			if result := <-receipt.Done; result.Err != nil {
				fmt.Printf("! message not saved: %v\n", result.Err)
			}
		}()
	}
}

func resolveUser(store *client.IdentityStore, apiURL, email, password string) (client.StoredUser, error) {
	if email == "" {
		return store.LoadUser()
	}

	payload, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := http.Post(apiURL+"/login", "application/json", bytes.NewReader(payload))
	if err != nil {
		return client.StoredUser{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return client.StoredUser{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return client.StoredUser{}, err
	}

	user := client.StoredUser{
		ID:    body.User.ID,
		Name:  body.User.Name,
		Email: body.User.Email,
		Role:  body.User.Role,
		Token: body.Token,
	}
	if err := store.SaveUser(user); err != nil {
		log.Printf("could not persist session: %v", err)
	}
	return user, nil
}

func printMessage(selfID, peerName string, msg models.Message) {
	who := peerName
	if msg.SenderID == selfID {
		who = "me"
	}
	fmt.Printf("%s: %s\n", who, msg.Text)
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ghar-chat.json"
	}
	return filepath.Join(home, ".ghar-chat", "session.json")
}
