package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gitfolio/backend/internal/merge"
	"github.com/gitfolio/backend/internal/models"
)

// RecordStore owns the canonical per-user record. Exactly one record exists
// per identity; operations against the same identity are serialized.
type RecordStore interface {
	Get(ctx context.Context, identity string) (*models.UserRecord, error)
	Create(ctx context.Context, rec *models.UserRecord) (*models.UserRecord, error)
	Update(ctx context.Context, identity string, patch models.RecordPatch) (*models.UserRecord, error)
	ReplaceBookmarks(ctx context.Context, identity string, bookmarks []models.Bookmark) ([]models.Bookmark, error)
	Delete(ctx context.Context, identity string) error
}

// RecordService is the in-memory RecordStore. Each identity gets its own
// entry lock, so operations on one identity serialize while different
// identities proceed in parallel. The Mongo-backed twin is
// MongoRecordService.
type RecordService struct {
	mu      sync.RWMutex
	records map[string]*recordEntry
	now     func() time.Time
}

type recordEntry struct {
	mu  sync.Mutex
	doc map[string]interface{}
}

func NewRecordService() *RecordService {
	return &RecordService{
		records: make(map[string]*recordEntry),
		now:     time.Now,
	}
}

// SetClock pins the service clock. Test hook.
func (s *RecordService) SetClock(now func() time.Time) {
	s.now = now
}

// lockEntry returns the entry for an identity with its lock held. The entry
// lock is acquired under the map read lock, so a concurrent Delete cannot
// remove the entry between lookup and lock; a locked entry is always the
// live one.
func (s *RecordService) lockEntry(identity string) (*recordEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.records[identity]
	if !exists {
		return nil, false
	}
	entry.mu.Lock()
	return entry, true
}

func (s *RecordService) Get(ctx context.Context, identity string) (*models.UserRecord, error) {
	entry, exists := s.lockEntry(identity)
	if !exists {
		return nil, ErrRecordNotFound
	}
	defer entry.mu.Unlock()

	return recordFromDoc(identity, entry.doc)
}

func (s *RecordService) Create(ctx context.Context, rec *models.UserRecord) (*models.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.Identity]; exists {
		return nil, ErrRecordExists
	}

	now := s.now().UTC()
	stored := *rec
	stored.Bookmarks = NormalizeBookmarks(rec.Bookmarks)
	stored.Timestamps.Created = now
	stored.Timestamps.Updated = now

	doc, err := docFromRecord(&stored)
	if err != nil {
		return nil, err
	}
	s.records[rec.Identity] = &recordEntry{doc: doc}

	return recordFromDoc(rec.Identity, doc)
}

func (s *RecordService) Update(ctx context.Context, identity string, patch models.RecordPatch) (*models.UserRecord, error) {
	patchDoc, err := normalizePatch(patch)
	if err != nil {
		return nil, err
	}
	// Slug is write-once; a patch can never move it.
	delete(patchDoc, "slug")

	entry, exists := s.lockEntry(identity)
	if !exists {
		return nil, ErrRecordNotFound
	}
	defer entry.mu.Unlock()

	merged := merge.Deep(cloneDoc(entry.doc), patchDoc)
	setUpdated(merged, s.now().UTC())
	entry.doc = merged

	return recordFromDoc(identity, merged)
}

func (s *RecordService) ReplaceBookmarks(ctx context.Context, identity string, bookmarks []models.Bookmark) ([]models.Bookmark, error) {
	normalized := NormalizeBookmarks(bookmarks)
	patchDoc, err := normalizePatch(models.RecordPatch{"bookmarks": normalized})
	if err != nil {
		return nil, err
	}

	entry, exists := s.lockEntry(identity)
	if !exists {
		return nil, ErrRecordNotFound
	}
	defer entry.mu.Unlock()

	merged := merge.Deep(cloneDoc(entry.doc), patchDoc)
	setUpdated(merged, s.now().UTC())
	entry.doc = merged

	return normalized, nil
}

// Delete is idempotent: removing an absent identity is not an error.
func (s *RecordService) Delete(ctx context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, identity)
	return nil
}

// NormalizeBookmarks reindexes order to array position and assigns a
// generated id to any bookmark missing one. Input is not mutated.
func NormalizeBookmarks(bookmarks []models.Bookmark) []models.Bookmark {
	out := make([]models.Bookmark, len(bookmarks))
	for i, b := range bookmarks {
		if b.ID == "" {
			b.ID = uuid.New().String()
		}
		b.Order = i
		out[i] = b
	}
	return out
}

// Records are held as JSON-generic documents so the structural merge sees
// plain maps regardless of which typed value produced a field. The
// round-trips below are the single codec between the two shapes.

func docFromRecord(rec *models.UserRecord) (map[string]interface{}, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func recordFromDoc(identity string, doc map[string]interface{}) (*models.UserRecord, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var rec models.UserRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	rec.Identity = identity
	return &rec, nil
}

func normalizePatch(patch models.RecordPatch) (map[string]interface{}, error) {
	raw, err := json.Marshal(patch)
	if err != nil {
		return nil, err
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func cloneDoc(doc map[string]interface{}) map[string]interface{} {
	raw, err := json.Marshal(doc)
	if err != nil {
		return map[string]interface{}{}
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]interface{}{}
	}
	return out
}

func setUpdated(doc map[string]interface{}, now time.Time) {
	ts, ok := doc["timestamps"].(map[string]interface{})
	if !ok {
		ts = make(map[string]interface{})
		doc["timestamps"] = ts
	}
	ts["updated"] = now.Format(time.RFC3339Nano)
}
