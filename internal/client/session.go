package client

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ghar-chat-service/internal/models"
)

// echoWindow bounds how long a correlation id is remembered: local ones to
// suppress the remote echo of our own send, remote ones to collapse the
// live-routed and durable copies of a peer's send.
const echoWindow = 2 * time.Minute

// liveChannel is the slice of Transport the session needs.
type liveChannel interface {
	Send(OutgoingMessage) error
	Subscribe(Handler) (cancel func())
}

// conversationAPI is the slice of API the session needs.
type conversationAPI interface {
	LoadHistory(ctx context.Context, conversationID string) ([]models.Message, bool)
	SendMessage(ctx context.Context, conversationID, senderID, text, correlationID string) (models.Message, error)
}

// SessionConfig identifies one open conversation screen.
type SessionConfig struct {
	ConversationID string
	SelfID         string
	PeerID         string

	// LegacyAppendOnly reproduces the original app's merge behavior for
	// compatibility testing: no reconciliation of the provisional entry after
	// the durable write, no suppression of the remote echo, failures logged
	// but never surfaced.
	LegacyAppendOnly bool
}

// SubmitResult reports how the durable write for one submission ended.
type SubmitResult struct {
	Confirmed models.Message
	Err       error
}

// SubmitReceipt is returned synchronously from Submit: the provisional entry
// already appended to the list, and a channel that yields the durable-write
// outcome once.
type SubmitReceipt struct {
	Provisional models.Message
	Done        <-chan SubmitResult
}

// remoteArrival remembers a live-routed arrival so the durable fan-out of the
// same message replaces it in place instead of appending a second entry.
type remoteArrival struct {
	messageID string
	at        time.Time
}

// ConversationSession is the per-screen controller that merges locally
// optimistic messages with server-confirmed and peer-delivered ones into a
// single append-only ordered list.
//
// The list only grows by appends; entries are replaced in place during
// reconciliation but never reordered or removed. Interleaving of local
// submissions and remote arrivals is whatever order the calls land in.
type ConversationSession struct {
	cfg  SessionConfig
	live liveChannel
	api  conversationAPI

	mu             sync.Mutex
	messages       []models.Message
	recentSends    map[string]time.Time
	recentArrivals map[string]remoteArrival
	unsubscribe    func()
}

// NewConversationSession builds the controller for one conversation screen.
func NewConversationSession(cfg SessionConfig, live liveChannel, api conversationAPI) *ConversationSession {
	return &ConversationSession{
		cfg:            cfg,
		live:           live,
		api:            api,
		recentSends:    make(map[string]time.Time),
		recentArrivals: make(map[string]remoteArrival),
	}
}

// Start pulls the persisted history and begins layering live traffic on top.
// On a failed history fetch the current list is left unchanged.
func (s *ConversationSession) Start(ctx context.Context) {
	if history, ok := s.api.LoadHistory(ctx, s.cfg.ConversationID); ok {
		s.mu.Lock()
		s.messages = append([]models.Message(nil), history...)
		s.mu.Unlock()
	}
	s.mu.Lock()
	subscribed := s.unsubscribe != nil
	s.mu.Unlock()
	if !subscribed {
		cancel := s.live.Subscribe(s.OnIncoming)
		s.mu.Lock()
		s.unsubscribe = cancel
		s.mu.Unlock()
	}
}

// Close deregisters the live subscription so a navigated-away screen stops
// mutating state nothing renders anymore.
func (s *ConversationSession) Close() {
	s.mu.Lock()
	cancel := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Messages returns a snapshot of the ordered list.
func (s *ConversationSession) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.messages...)
}

// Submit accepts user-typed text. Blank input is rejected without any list
// mutation or dispatch. Otherwise a provisional message is appended
// synchronously, then the live-channel emit and the durable write are
// dispatched independently; neither waits for the other. The receipt's Done
// channel yields the durable-write outcome.
func (s *ConversationSession) Submit(ctx context.Context, text string) (SubmitReceipt, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return SubmitReceipt{}, false
	}

	correlationID := uuid.NewString()
	now := time.Now()
	provisional := models.Message{
		ID:             "pending-" + correlationID,
		ConversationID: s.cfg.ConversationID,
		SenderID:       s.cfg.SelfID,
		Text:           trimmed,
		Read:           false,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	s.mu.Lock()
	s.messages = append(s.messages, provisional)
	s.recentSends[correlationID] = now
	s.pruneRecentLocked(now)
	s.mu.Unlock()

	done := make(chan SubmitResult, 1)

	go func() {
		err := s.live.Send(OutgoingMessage{
			SenderID:      s.cfg.SelfID,
			ReceiverID:    s.cfg.PeerID,
			Text:          trimmed,
			CorrelationID: correlationID,
		})
		if err != nil {
			log.Printf("live send failed for conversation %s: %v", s.cfg.ConversationID, err)
		}
	}()

	go func() {
		confirmed, err := s.api.SendMessage(ctx, s.cfg.ConversationID, s.cfg.SelfID, trimmed, correlationID)
		if err != nil {
			log.Printf("durable write failed for conversation %s: %v", s.cfg.ConversationID, err)
			done <- SubmitResult{Err: err}
			return
		}
		if !s.cfg.LegacyAppendOnly {
			s.reconcile(provisional.ID, confirmed)
		}
		done <- SubmitResult{Confirmed: confirmed}
	}()

	return SubmitReceipt{Provisional: provisional, Done: done}, true
}

// OnIncoming handles one inbound live-channel event. Events addressed to a
// different conversation are dropped. In legacy mode every remaining event
// appends, including echoes of our own sends. Otherwise an echo carrying a
// recent local correlation id is suppressed, and a message that already
// arrived, by server id or by correlation id when the live-routed copy
// precedes the durable fan-out, is reconciled in place instead of appended.
func (s *ConversationSession) OnIncoming(event models.ServerEvent) {
	if event.Type != models.EventMessage || !s.accepts(event) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.LegacyAppendOnly {
		s.messages = append(s.messages, s.messageFromEvent(event))
		return
	}

	if event.CorrelationID != "" {
		if _, ours := s.recentSends[event.CorrelationID]; ours {
			return
		}
		if prev, seen := s.recentArrivals[event.CorrelationID]; seen {
			s.reconcileArrivalLocked(event, prev)
			return
		}
	}
	if event.Message != nil && event.Message.ID != "" {
		for _, existing := range s.messages {
			if existing.ID == event.Message.ID {
				return
			}
		}
	}

	msg := s.messageFromEvent(event)
	s.messages = append(s.messages, msg)
	if event.CorrelationID != "" {
		now := time.Now()
		s.recentArrivals[event.CorrelationID] = remoteArrival{messageID: msg.ID, at: now}
		s.pruneRecentLocked(now)
	}
}

// accepts reports whether the event belongs to this conversation. The durable
// fan-out carries the conversation id; a live-routed frame only identifies
// its sender.
func (s *ConversationSession) accepts(event models.ServerEvent) bool {
	if event.Message != nil && event.Message.ConversationID != "" {
		return event.Message.ConversationID == s.cfg.ConversationID
	}
	return event.SenderID == s.cfg.PeerID || event.SenderID == s.cfg.SelfID
}

// reconcileArrivalLocked swaps an earlier arrival of the same message for the
// server record. A repeat without a server record carries nothing new.
func (s *ConversationSession) reconcileArrivalLocked(event models.ServerEvent, prev remoteArrival) {
	if event.Message == nil || event.Message.ID == "" {
		return
	}
	for i := range s.messages {
		if s.messages[i].ID == prev.messageID {
			s.messages[i] = *event.Message
			s.recentArrivals[event.CorrelationID] = remoteArrival{messageID: event.Message.ID, at: prev.at}
			return
		}
	}
}

func (s *ConversationSession) messageFromEvent(event models.ServerEvent) models.Message {
	if event.Message != nil && event.Message.ID != "" {
		return *event.Message
	}
	now := time.Now()
	return models.Message{
		ID:             uuid.NewString(),
		ConversationID: s.cfg.ConversationID,
		SenderID:       event.SenderID,
		Text:           event.Text,
		Read:           false,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// reconcile swaps the provisional entry for the server record in place,
// preserving list order.
func (s *ConversationSession) reconcile(provisionalID string, confirmed models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ID == provisionalID {
			s.messages[i] = confirmed
			return
		}
	}
}

func (s *ConversationSession) pruneRecentLocked(now time.Time) {
	for id, at := range s.recentSends {
		if now.Sub(at) > echoWindow {
			delete(s.recentSends, id)
		}
	}
	for id, arrival := range s.recentArrivals {
		if now.Sub(arrival.at) > echoWindow {
			delete(s.recentArrivals, id)
		}
	}
}
