package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"ghar-chat-service/internal/models"
)

// DefaultCacheTTL matches the app's short list-cache window: repeated screen
// visits within a few seconds reuse the previous response.
const DefaultCacheTTL = 10 * time.Second

// API is the REST client behind the inbox and chat screens. GET responses are
// cached for a short window keyed by the literal request URL; the durable
// message write is never cached.
type API struct {
	baseURL string
	token   string
	http    *http.Client
	cache   *gocache.Cache
	ttl     time.Duration
}

// NewAPI builds the REST client. A zero ttl falls back to DefaultCacheTTL.
func NewAPI(baseURL, token string, ttl time.Duration) *API {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &API{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
		cache:   gocache.New(ttl, 2*ttl),
		ttl:     ttl,
	}
}

// LoadConversations fetches the signed-in user's conversation summaries.
// Failures surface as an empty list: the inbox renders nothing rather than an
// error banner.
func (a *API) LoadConversations(ctx context.Context) []models.ConversationSummary {
	url := a.baseURL + "/conversations"

	if cached, ok := a.cache.Get(url); ok {
		return cached.([]models.ConversationSummary)
	}

	var resp struct {
		Conversations []models.ConversationSummary `json:"conversations"`
	}
	if err := a.getJSON(ctx, url, &resp); err != nil {
		log.Printf("load conversations failed: %v", err)
		return []models.ConversationSummary{}
	}
	if resp.Conversations == nil {
		resp.Conversations = []models.ConversationSummary{}
	}
	a.cache.Set(url, resp.Conversations, a.ttl)
	return resp.Conversations
}

// LoadHistory fetches a conversation's persisted messages, chronological
// ascending as the backend returns them. ok is false on failure so the caller
// leaves its current list untouched.
func (a *API) LoadHistory(ctx context.Context, conversationID string) (msgs []models.Message, ok bool) {
	url := a.baseURL + "/message/" + conversationID

	if cached, found := a.cache.Get(url); found {
		return cached.([]models.Message), true
	}

	var history []models.Message
	if err := a.getJSON(ctx, url, &history); err != nil {
		log.Printf("load history failed for %s: %v", conversationID, err)
		return nil, false
	}
	if history == nil {
		history = []models.Message{}
	}
	a.cache.Set(url, history, a.ttl)
	return history, true
}

// SendMessage performs the durable write, the flow's source of truth.
func (a *API) SendMessage(ctx context.Context, conversationID, senderID, text, correlationID string) (models.Message, error) {
	payload := map[string]string{
		"conversationId": conversationID,
		"senderId":       senderID,
		"text":           text,
		"correlationId":  correlationID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return models.Message{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/message", bytes.NewReader(body))
	if err != nil {
		return models.Message{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	a.authorize(req)

	resp, err := a.http.Do(req)
	if err != nil {
		return models.Message{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return models.Message{}, fmt.Errorf("send message: unexpected status %d", resp.StatusCode)
	}

	var msg models.Message
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return models.Message{}, fmt.Errorf("send message: decode response: %w", err)
	}
	return msg, nil
}

func (a *API) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	a.authorize(req)

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (a *API) authorize(req *http.Request) {
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
}
