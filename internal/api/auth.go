package api

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ticketTTL is how long a WebSocket ticket is valid.
const ticketTTL = 60 * time.Second

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse is the response body for POST /auth/login.
type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// ticketStore holds pending WebSocket authentication tickets.
// Tickets are single-use and expire after ticketTTL.
type ticketStore struct {
	tickets map[string]ticketEntry
	mu      sync.Mutex
}

type ticketEntry struct {
	userID    string
	expiresAt time.Time
}

func newTicketStore() *ticketStore {
	return &ticketStore{tickets: make(map[string]ticketEntry)}
}

// handleLogin authenticates against the configured credentials and
// returns a JWT token. Login is disabled until security.auth is
// configured; there are no built-in credentials.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	cred := s.secCfg.Auth
	if cred.Username == "" || cred.Password == "" {
		writeUnauthorized(w, "login is not configured")
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(cred.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(cred.Password)) == 1
	if !userOK || !passOK {
		writeUnauthorized(w, "invalid credentials")
		return
	}

	// Generate JWT
	ttl := s.secCfg.JWT.AccessTokenTTL
	if ttl == 0 {
		ttl = 15 // default 15 minutes
	}

	claims := jwt.MapClaims{
		"sub":  req.Username,
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(time.Duration(ttl) * time.Minute).Unix(),
		"role": "admin",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.secCfg.JWT.Secret))
	if err != nil {
		writeInternalError(w, "failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   ttl * 60, // seconds
	})
}

// handleWSTicket generates a single-use WebSocket authentication ticket.
// The client uses this ticket to authenticate the WebSocket connection
// without exposing the JWT in the URL.
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	ticket := generateTicket()

	userID, _ := r.Context().Value(ctxKeyUserID).(string)

	s.tickets.mu.Lock()
	s.tickets.tickets[ticket] = ticketEntry{
		userID:    userID,
		expiresAt: time.Now().Add(ticketTTL),
	}
	s.tickets.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     ticket,
		"expires_in": int(ticketTTL.Seconds()),
	})
}

// validate checks if a ticket is valid and consumes it (single-use).
func (t *ticketStore) validate(ticket string) (ticketEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.tickets[ticket]
	if !ok {
		return ticketEntry{}, false
	}

	// Remove ticket (single-use)
	delete(t.tickets, ticket)

	// Check expiry
	if time.Now().After(entry.expiresAt) {
		return ticketEntry{}, false
	}
	return entry, true
}

// ticketBytes is the number of random bytes used for WebSocket tickets.
const ticketBytes = 32

// generateTicket creates a cryptographically random ticket string.
func generateTicket() string {
	b := make([]byte, ticketBytes)
	//nolint:errcheck // crypto/rand.Read always returns len(b) on supported platforms
	rand.Read(b)
	return hex.EncodeToString(b)
}

// cleanExpired removes expired tickets from the store.
func (t *ticketStore) cleanExpired() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	for ticket, entry := range t.tickets {
		if now.After(entry.expiresAt) {
			delete(t.tickets, ticket)
		}
	}
}

// cleanLoop runs cleanExpired periodically until the context is cancelled.
func (t *ticketStore) cleanLoop(ctx context.Context) {
	ticker := time.NewTicker(ticketTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.cleanExpired()
		}
	}
}
