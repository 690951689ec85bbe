package store

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"postflow/pkg/domain"
)

// MemoryStore keeps everything in-process. It mirrors GormStore's
// semantics, including slot upserts and canonical output ordering, and
// backs local development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]domain.User // key: user ID
	email   map[string]string      // email -> user ID
	subs    map[string]domain.Subscription
	proj    map[string]domain.Project
	projOrd []string
	outputs map[string]domain.Output // key: output ID
	slots   map[string]string        // projectID|platform|seriesIndex -> output ID
	voices  map[string]domain.BrandVoice
	voiceOr []string
	audio   map[string]domain.AudioUsage
	audit   []domain.AuditEntry
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]domain.User),
		email:   make(map[string]string),
		subs:    make(map[string]domain.Subscription),
		proj:    make(map[string]domain.Project),
		outputs: make(map[string]domain.Output),
		slots:   make(map[string]string),
		voices:  make(map[string]domain.BrandVoice),
		audio:   make(map[string]domain.AudioUsage),
	}
}

func slotKey(projectID, platform string, seriesIndex int) string {
	return projectID + "|" + platform + "|" + strconv.Itoa(seriesIndex)
}

// SaveUser stores or replaces a user record.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.users[u.ID]; ok && prev.Email != u.Email {
		delete(m.email, prev.Email)
	}
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

// GetUserByID retrieves a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[email]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

// SaveSubscription stores or replaces the user's subscription.
func (m *MemoryStore) SaveSubscription(sub domain.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[sub.UserID] = sub
	return nil
}

// GetSubscription returns the subscription for a user, if any.
func (m *MemoryStore) GetSubscription(userID string) (domain.Subscription, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.subs[userID]
	return sub, ok, nil
}

// SaveProject stores or replaces a project and tracks insertion order.
func (m *MemoryStore) SaveProject(p domain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.proj[p.ID]; !exists {
		m.projOrd = append(m.projOrd, p.ID)
	}
	m.proj[p.ID] = p
	return nil
}

// GetProject retrieves a project by ID.
func (m *MemoryStore) GetProject(id string) (domain.Project, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.proj[id]
	return p, ok, nil
}

// ListProjectsByOwner returns the owner's projects in insertion order.
func (m *MemoryStore) ListProjectsByOwner(ownerID string) ([]domain.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Project, 0, len(m.projOrd))
	for _, id := range m.projOrd {
		if p, ok := m.proj[id]; ok && p.OwnerID == ownerID {
			res = append(res, p)
		}
	}
	return res, nil
}

// CountProjectsByOwner returns the number of projects the owner holds.
func (m *MemoryStore) CountProjectsByOwner(ownerID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, p := range m.proj {
		if p.OwnerID == ownerID {
			count++
		}
	}
	return count, nil
}

// DeleteProject removes a project and its outputs.
func (m *MemoryStore) DeleteProject(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.proj, id)
	filtered := m.projOrd[:0]
	for _, item := range m.projOrd {
		if item != id {
			filtered = append(filtered, item)
		}
	}
	m.projOrd = filtered
	for key, outID := range m.slots {
		if out, ok := m.outputs[outID]; ok && out.ProjectID == id {
			delete(m.outputs, outID)
			delete(m.slots, key)
		}
	}
	return nil
}

// UpsertOutput inserts or replaces the row for the output's slot,
// keeping the slot's row ID and write-once original content.
func (m *MemoryStore) UpsertOutput(o domain.Output) (domain.Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	key := slotKey(o.ProjectID, o.Platform, o.SeriesIndex)
	if existingID, ok := m.slots[key]; ok {
		existing := m.outputs[existingID]
		o.ID = existing.ID
		o.CreatedAt = existing.CreatedAt
		o.OriginalContent = existing.OriginalContent
		if o.OriginalContent == "" && o.Success {
			o.OriginalContent = o.Content
		}
	} else {
		if o.ID == "" {
			o.ID = uuid.NewString()
		}
		o.CreatedAt = now
		if o.Success {
			o.OriginalContent = o.Content
		}
	}
	o.IsEdited = false
	o.UpdatedAt = now
	m.outputs[o.ID] = o
	m.slots[key] = o.ID
	return o, nil
}

// GetOutput retrieves an output by ID.
func (m *MemoryStore) GetOutput(id string) (domain.Output, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.outputs[id]
	return o, ok, nil
}

// ListOutputs returns the project's outputs in canonical order:
// series index ascending, then platform ascending.
func (m *MemoryStore) ListOutputs(projectID string) ([]domain.Output, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Output, 0, 8)
	for _, o := range m.outputs {
		if o.ProjectID == projectID {
			res = append(res, o)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].SeriesIndex != res[j].SeriesIndex {
			return res[i].SeriesIndex < res[j].SeriesIndex
		}
		return res[i].Platform < res[j].Platform
	})
	return res, nil
}

// UpdateOutputContent replaces the output's content with a user edit.
func (m *MemoryStore) UpdateOutputContent(id, content string) (domain.Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.outputs[id]
	if !ok {
		return domain.Output{}, gorm.ErrRecordNotFound
	}
	o.Content = content
	o.IsEdited = true
	o.UpdatedAt = time.Now().UTC()
	m.outputs[id] = o
	return o, nil
}

// SaveBrandVoice stores or replaces a brand voice.
func (m *MemoryStore) SaveBrandVoice(v domain.BrandVoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.voices[v.ID]; !exists {
		m.voiceOr = append(m.voiceOr, v.ID)
	}
	m.voices[v.ID] = v
	return nil
}

// GetBrandVoice retrieves a brand voice by ID.
func (m *MemoryStore) GetBrandVoice(id string) (domain.BrandVoice, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.voices[id]
	return v, ok, nil
}

// ListBrandVoicesByOwner returns the owner's brand voices in insertion order.
func (m *MemoryStore) ListBrandVoicesByOwner(ownerID string) ([]domain.BrandVoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.BrandVoice, 0, len(m.voiceOr))
	for _, id := range m.voiceOr {
		if v, ok := m.voices[id]; ok && v.OwnerID == ownerID {
			res = append(res, v)
		}
	}
	return res, nil
}

// DeleteBrandVoice removes a brand voice.
func (m *MemoryStore) DeleteBrandVoice(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.voices, id)
	filtered := m.voiceOr[:0]
	for _, item := range m.voiceOr {
		if item != id {
			filtered = append(filtered, item)
		}
	}
	m.voiceOr = filtered
	return nil
}

// GetAudioUsage returns the user's audio usage row, if any.
func (m *MemoryStore) GetAudioUsage(userID string) (domain.AudioUsage, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.audio[userID]
	return u, ok, nil
}

// SaveAudioUsage stores or replaces the user's audio usage row.
func (m *MemoryStore) SaveAudioUsage(u domain.AudioUsage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audio[u.UserID] = u
	return nil
}

// AppendAudit records an audit entry.
func (m *MemoryStore) AppendAudit(e domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	m.audit = append(m.audit, e)
	return nil
}

// ListAuditByUser returns the user's most recent audit entries.
func (m *MemoryStore) ListAuditByUser(userID string, limit int) ([]domain.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	res := make([]domain.AuditEntry, 0, limit)
	for i := len(m.audit) - 1; i >= 0 && len(res) < limit; i-- {
		if m.audit[i].UserID == userID {
			res = append(res, m.audit[i])
		}
	}
	return res, nil
}
