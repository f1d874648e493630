package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"safety-inspection/internal/entities"
	"safety-inspection/internal/repositories"
	"safety-inspection/pkg/constants"
)

type Flow string

const (
	FlowRegister Flow = "register"
	FlowReport   Flow = "report"
)

type Step string

const (
	StepAskFullName   Step = "ask_full_name"
	StepAskStaffID    Step = "ask_staff_id"
	StepAskDepartment Step = "ask_department"
	StepAskSection    Step = "ask_section"
	StepConfirm       Step = "confirm"

	StepSelectArea  Step = "select_area"
	StepDescription Step = "description"
	StepPhoto       Step = "photo"
	StepSeverity    Step = "severity"
	StepLocation    Step = "location"
)

type RegistrationDraft struct {
	FullName   string  `json:"full_name,omitempty"`
	Username   *string `json:"username,omitempty"`
	StaffID    string  `json:"staff_id,omitempty"`
	Department string  `json:"department,omitempty"`
	Section    string  `json:"section,omitempty"`
}

// ReportDraft keeps the Telegram file id of the photo; the bytes are fetched when the report is submitted.
type ReportDraft struct {
	ReporterID  uuid.UUID         `json:"reporter_id"`
	AreaID      uuid.UUID         `json:"area_id"`
	Description string            `json:"description,omitempty"`
	PhotoFileID string            `json:"photo_file_id,omitempty"`
	Severity    entities.Severity `json:"severity,omitempty"`
}

// Session is the conversation state of one chat.
type Session struct {
	ChatID       int64             `json:"chat_id"`
	Flow         Flow              `json:"flow"`
	Step         Step              `json:"step"`
	Registration RegistrationDraft `json:"registration"`
	Report       ReportDraft       `json:"report"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func (s *Session) ToJSON() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func SessionFromJSON(raw string) (*Session, error) {
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SessionStore returns (nil, nil) from Get when the chat has no conversation in progress.
type SessionStore interface {
	Get(ctx context.Context, chatID int64) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Delete(ctx context.Context, chatID int64) error
}

type memoryEntry struct {
	session   Session
	expiresAt time.Time
}

// MemoryStore is a bounded in-process session map. Entries expire after ttl;
// when the map is full the entry closest to expiry is evicted.
type MemoryStore struct {
	mu       sync.Mutex
	entries  map[int64]memoryEntry
	ttl      time.Duration
	capacity int
	now      func() time.Time
}

func NewMemoryStore(ttl time.Duration, capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 10000
	}
	return &MemoryStore{
		entries:  make(map[int64]memoryEntry),
		ttl:      ttl,
		capacity: capacity,
		now:      time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, chatID int64) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[chatID]
	if !ok {
		return nil, nil
	}
	if !m.now().Before(entry.expiresAt) {
		delete(m.entries, chatID)
		return nil, nil
	}
	s := entry.session
	return &s, nil
}

func (m *MemoryStore) Save(_ context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if _, exists := m.entries[session.ChatID]; !exists && len(m.entries) >= m.capacity {
		m.evictLocked(now)
	}
	session.UpdatedAt = now
	m.entries[session.ChatID] = memoryEntry{session: *session, expiresAt: now.Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, chatID int64) error {
	m.mu.Lock()
	delete(m.entries, chatID)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MemoryStore) evictLocked(now time.Time) {
	var (
		oldestID  int64
		oldestExp time.Time
		found     bool
	)
	for id, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, id)
			continue
		}
		if !found || e.expiresAt.Before(oldestExp) {
			oldestID, oldestExp, found = id, e.expiresAt, true
		}
	}
	if len(m.entries) >= m.capacity && found {
		delete(m.entries, oldestID)
	}
}

// Sweep drops expired sessions on every tick until ctx is done.
func (m *MemoryStore) Sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.Lock()
			now := m.now()
			for id, e := range m.entries {
				if !now.Before(e.expiresAt) {
					delete(m.entries, id)
				}
			}
			m.mu.Unlock()
		}
	}
}

// RedisStore keeps sessions as JSON in the shared cache so several bot instances can serve one chat.
type RedisStore struct {
	cache repositories.CacheRepositoryInterface
	ttl   time.Duration
}

func NewRedisStore(cache repositories.CacheRepositoryInterface, ttl time.Duration) *RedisStore {
	return &RedisStore{cache: cache, ttl: ttl}
}

func (r *RedisStore) Get(ctx context.Context, chatID int64) (*Session, error) {
	raw, err := r.cache.Get(ctx, fmt.Sprintf(constants.CacheKeyBotSession, chatID))
	if errors.Is(err, repositories.ErrCacheMiss) || (err == nil && raw == "") {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return SessionFromJSON(raw)
}

func (r *RedisStore) Save(ctx context.Context, session *Session) error {
	session.UpdatedAt = time.Now()
	raw, err := session.ToJSON()
	if err != nil {
		return err
	}
	return r.cache.Set(ctx, fmt.Sprintf(constants.CacheKeyBotSession, session.ChatID), raw, r.ttl)
}

func (r *RedisStore) Delete(ctx context.Context, chatID int64) error {
	return r.cache.Del(ctx, fmt.Sprintf(constants.CacheKeyBotSession, chatID))
}
