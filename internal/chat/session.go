// Package chat owns the per-session conversation state and the
// query-generation-and-repair loop that turns a user question into an
// executed, summarized result.
package chat

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shipchat/shipchat/internal/dataset"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Greeting seeds every new conversation and doubles as the login prompt.
const Greeting = "Ciao! Benvenuto nel servizio di informazioni sull'arrivo della merce. " +
	"Per favore, chiedi qualcosa di specifico sui dati disponibili. Ad esempio, " +
	"puoi chiedere: 'Quanti ordini sono stati effettuati da ciascun cliente?' oppure " +
	"'Qual è il totale delle vendite per ciascun prodotto?' " +
	"Potresti dirmi il tuo codice ordine che inizia con '1R2'?"

const codeNotRecognized = "Il codice inserito non è corretto oppure non è nel sistema."

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is the state of one conversation. The conversation is append-only;
// authentication transitions once and never reverts; the scoped dataset is
// immutable once loaded. A per-session mutex serializes turns, so within a
// turn the state is exclusively owned.
type Session struct {
	ID        string
	CreatedAt time.Time

	Model          string
	MaxReflections int
	SummaryContext string

	mu            sync.Mutex
	messages      []Message
	authenticated bool
	user          string
	code          string
	scoped        dataset.Dataset
}

func (s *Session) append(role, content string) {
	s.messages = append(s.messages, Message{Role: role, Content: content})
}

// Messages returns a copy of the conversation so far.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

func (s *Session) User() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Registry is the process-wide session store. Sessions live in memory only;
// there is no cross-session persistence.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: map[string]*Session{}}
}

type SessionOptions struct {
	Model          string
	MaxReflections int
	SummaryContext string
}

func (r *Registry) Create(opts SessionOptions) *Session {
	session := &Session{
		ID:             uuid.NewString(),
		CreatedAt:      time.Now().UTC(),
		Model:          opts.Model,
		MaxReflections: opts.MaxReflections,
		SummaryContext: opts.SummaryContext,
		messages:       []Message{{Role: RoleAssistant, Content: Greeting}},
	}

	r.mu.Lock()
	r.sessions[session.ID] = session
	r.mu.Unlock()
	return session
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %q not found", id)
	}
	return session, nil
}

func (r *Registry) Delete(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}
