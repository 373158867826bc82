package session

import (
	"encoding/json"
	"net/http"

	"travel-booking-storefront/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

const (
	guestKeyField     = "guest_session_key"
	cartField         = "cart"
	clientIDField     = "client_id"
	mergeAttemptField = "merge_attempt_id"
)

// Store is the client-side persistence the cart core relies on: the guest
// session key that correlates an anonymous cart with its owner, plus the last
// known cart snapshot. The guest key is written on first guest mutation or on
// any refresh that returns a fresh identifier, and cleared only after a
// backend-confirmed merge.
type Store interface {
	// ClientID identifies this browser session within the storefront
	// process, independent of any backend guest key. Created on first use.
	ClientID() (string, error)

	GuestKey() (string, bool)
	SetGuestKey(key string) error
	ClearGuestKey() error

	// MergeAttemptID is the idempotency key of the outstanding merge. It
	// outlives the request that started the merge so HTTP retries of a
	// conflicted merge replay the same attempt.
	MergeAttemptID() (string, bool)
	SetMergeAttemptID(id string) error
	ClearMergeAttemptID() error

	LoadCart() (*models.Cart, bool)
	SaveCart(cart *models.Cart) error
}

// CookieStore adapts one request's gorilla session to the Store interface.
// The cart snapshot rides in the session as JSON, same as the guest key.
type CookieStore struct {
	session *sessions.Session
	r       *http.Request
	w       http.ResponseWriter
}

// NewCookieStore wraps the named session for the current request
func NewCookieStore(store sessions.Store, r *http.Request, w http.ResponseWriter) (*CookieStore, error) {
	session, err := store.Get(r, "session")
	if err != nil {
		// a stale or tampered cookie still yields a fresh session
		if session == nil {
			return nil, err
		}
	}
	return &CookieStore{session: session, r: r, w: w}, nil
}

func (s *CookieStore) ClientID() (string, error) {
	if value, ok := s.session.Values[clientIDField]; ok {
		if id, ok := value.(string); ok && id != "" {
			return id, nil
		}
	}
	id := uuid.New().String()
	s.session.Values[clientIDField] = id
	if err := s.session.Save(s.r, s.w); err != nil {
		return "", err
	}
	return id, nil
}

func (s *CookieStore) GuestKey() (string, bool) {
	value, ok := s.session.Values[guestKeyField]
	if !ok {
		return "", false
	}
	key, ok := value.(string)
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

func (s *CookieStore) SetGuestKey(key string) error {
	s.session.Values[guestKeyField] = key
	return s.session.Save(s.r, s.w)
}

func (s *CookieStore) ClearGuestKey() error {
	delete(s.session.Values, guestKeyField)
	return s.session.Save(s.r, s.w)
}

func (s *CookieStore) MergeAttemptID() (string, bool) {
	value, ok := s.session.Values[mergeAttemptField]
	if !ok {
		return "", false
	}
	id, ok := value.(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

func (s *CookieStore) SetMergeAttemptID(id string) error {
	s.session.Values[mergeAttemptField] = id
	return s.session.Save(s.r, s.w)
}

func (s *CookieStore) ClearMergeAttemptID() error {
	delete(s.session.Values, mergeAttemptField)
	return s.session.Save(s.r, s.w)
}

func (s *CookieStore) LoadCart() (*models.Cart, bool) {
	value, ok := s.session.Values[cartField]
	if !ok {
		return nil, false
	}
	cartJSON, ok := value.(string)
	if !ok {
		return nil, false
	}
	var cart models.Cart
	if err := json.Unmarshal([]byte(cartJSON), &cart); err != nil {
		return nil, false
	}
	return &cart, true
}

func (s *CookieStore) SaveCart(cart *models.Cart) error {
	cartJSON, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	s.session.Values[cartField] = string(cartJSON)
	return s.session.Save(s.r, s.w)
}

// MemoryStore is an in-process Store for tests and headless use
type MemoryStore struct {
	clientID     string
	key          string
	hasKey       bool
	mergeAttempt string
	cart         *models.Cart
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) ClientID() (string, error) {
	if s.clientID == "" {
		s.clientID = uuid.New().String()
	}
	return s.clientID, nil
}

func (s *MemoryStore) GuestKey() (string, bool) {
	return s.key, s.hasKey
}

func (s *MemoryStore) SetGuestKey(key string) error {
	s.key = key
	s.hasKey = key != ""
	return nil
}

func (s *MemoryStore) ClearGuestKey() error {
	s.key = ""
	s.hasKey = false
	return nil
}

func (s *MemoryStore) MergeAttemptID() (string, bool) {
	return s.mergeAttempt, s.mergeAttempt != ""
}

func (s *MemoryStore) SetMergeAttemptID(id string) error {
	s.mergeAttempt = id
	return nil
}

func (s *MemoryStore) ClearMergeAttemptID() error {
	s.mergeAttempt = ""
	return nil
}

func (s *MemoryStore) LoadCart() (*models.Cart, bool) {
	if s.cart == nil {
		return nil, false
	}
	return s.cart, true
}

func (s *MemoryStore) SaveCart(cart *models.Cart) error {
	s.cart = cart
	return nil
}
