package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"mindscribe.app/journal-assistant/internal/fault"
)

const (
	profilesFile = "user_profiles.json"
	usageFile    = "token_usage.json"
	journalFile  = "journal.json"
)

// FileStore owns the three persisted collections (profiles, usage, journal).
// Each collection has its own mutex, so a journal write never blocks a
// concurrent usage write. Every write is a full read-modify-write cycle:
// load the on-disk state, apply the mutator, persist atomically via a temp
// file rename. A failed persist discards the mutation.
//
// Callers must not invoke inference or rendering while one of these methods
// is in flight on their goroutine stack; the store is the only place locks
// are taken and they are released before the method returns.
type FileStore struct {
	dir string

	profilesMu sync.Mutex
	usageMu    sync.Mutex
	journalMu  sync.Mutex
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// --- generic JSON persistence helpers ---

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name)
}

func loadJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // absent file means empty collection
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

// saveJSON writes the whole collection to a temp file and renames it into
// place, so readers never observe a partially written file.
func saveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// --- profiles collection ---

func (s *FileStore) loadProfiles() (map[string]UserProfile, error) {
	profiles := make(map[string]UserProfile)
	if err := loadJSON(s.path(profilesFile), &profiles); err != nil {
		return nil, fault.New(fault.StoreWrite, "store.loadProfiles", err)
	}
	return profiles, nil
}

// GetProfile returns the profile for userID. The second return reports
// whether it exists.
func (s *FileStore) GetProfile(userID string) (UserProfile, bool, error) {
	s.profilesMu.Lock()
	defer s.profilesMu.Unlock()

	profiles, err := s.loadProfiles()
	if err != nil {
		return UserProfile{}, false, err
	}
	p, ok := profiles[userID]
	return p, ok, nil
}

// Profiles returns a snapshot of all profiles.
func (s *FileStore) Profiles() (map[string]UserProfile, error) {
	s.profilesMu.Lock()
	defer s.profilesMu.Unlock()
	return s.loadProfiles()
}

// UpdateProfile applies mutate to the user's profile, creating it first if
// absent, and persists the collection. The mutation is discarded on persist
// failure.
func (s *FileStore) UpdateProfile(userID string, mutate func(*UserProfile) error) error {
	s.profilesMu.Lock()
	defer s.profilesMu.Unlock()

	profiles, err := s.loadProfiles()
	if err != nil {
		return err
	}
	p, ok := profiles[userID]
	if !ok {
		p = UserProfile{UserID: userID}
	}
	if err := mutate(&p); err != nil {
		return err
	}
	p.UserID = userID
	profiles[userID] = p
	if err := saveJSON(s.path(profilesFile), profiles); err != nil {
		return fault.New(fault.StoreWrite, "store.UpdateProfile", err)
	}
	return nil
}

// --- usage collection ---

func (s *FileStore) loadUsage() (map[string]UsageRecord, error) {
	usage := make(map[string]UsageRecord)
	if err := loadJSON(s.path(usageFile), &usage); err != nil {
		return nil, fault.New(fault.StoreWrite, "store.loadUsage", err)
	}
	return usage, nil
}

func (s *FileStore) GetUsage(userID string) (UsageRecord, error) {
	s.usageMu.Lock()
	defer s.usageMu.Unlock()

	usage, err := s.loadUsage()
	if err != nil {
		return UsageRecord{}, err
	}
	rec, ok := usage[userID]
	if !ok {
		rec = UsageRecord{UserID: userID}
	}
	return rec, nil
}

// UpdateUsage applies mutate to the user's usage record (zero-value record
// for first use) and persists the collection.
func (s *FileStore) UpdateUsage(userID string, mutate func(*UsageRecord) error) error {
	s.usageMu.Lock()
	defer s.usageMu.Unlock()

	usage, err := s.loadUsage()
	if err != nil {
		return err
	}
	rec, ok := usage[userID]
	if !ok {
		rec = UsageRecord{UserID: userID}
	}
	if err := mutate(&rec); err != nil {
		return err
	}
	rec.UserID = userID
	usage[userID] = rec
	if err := saveJSON(s.path(usageFile), usage); err != nil {
		return fault.New(fault.StoreWrite, "store.UpdateUsage", err)
	}
	return nil
}

// UpdateAllUsage applies mutate to every usage record in one write.
func (s *FileStore) UpdateAllUsage(mutate func(*UsageRecord)) error {
	s.usageMu.Lock()
	defer s.usageMu.Unlock()

	usage, err := s.loadUsage()
	if err != nil {
		return err
	}
	for id, rec := range usage {
		mutate(&rec)
		usage[id] = rec
	}
	if err := saveJSON(s.path(usageFile), usage); err != nil {
		return fault.New(fault.StoreWrite, "store.UpdateAllUsage", err)
	}
	return nil
}

// --- journal collection ---

func (s *FileStore) loadJournal() ([]JournalEntry, error) {
	var entries []JournalEntry
	if err := loadJSON(s.path(journalFile), &entries); err != nil {
		return nil, fault.New(fault.StoreWrite, "store.loadJournal", err)
	}
	return entries, nil
}

// AppendEntry appends a new journal entry to the ordered collection.
func (s *FileStore) AppendEntry(entry JournalEntry) error {
	s.journalMu.Lock()
	defer s.journalMu.Unlock()

	entries, err := s.loadJournal()
	if err != nil {
		return err
	}
	entries = append(entries, entry)
	if err := saveJSON(s.path(journalFile), entries); err != nil {
		return fault.New(fault.StoreWrite, "store.AppendEntry", err)
	}
	return nil
}

// GetEntry returns the entry with the given ID.
func (s *FileStore) GetEntry(entryID string) (JournalEntry, error) {
	s.journalMu.Lock()
	defer s.journalMu.Unlock()

	entries, err := s.loadJournal()
	if err != nil {
		return JournalEntry{}, err
	}
	for _, e := range entries {
		if e.EntryID == entryID {
			return e, nil
		}
	}
	return JournalEntry{}, fault.Errorf(fault.NotFound, "store.GetEntry", "entry %s not found", entryID)
}

// UpdateEntry applies mutate to the entry with the given ID, in place. The
// entry's ID and position in the collection never change.
func (s *FileStore) UpdateEntry(entryID string, mutate func(*JournalEntry) error) error {
	s.journalMu.Lock()
	defer s.journalMu.Unlock()

	entries, err := s.loadJournal()
	if err != nil {
		return err
	}
	idx := -1
	for i := range entries {
		if entries[i].EntryID == entryID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fault.Errorf(fault.NotFound, "store.UpdateEntry", "entry %s not found", entryID)
	}
	if err := mutate(&entries[idx]); err != nil {
		return err
	}
	entries[idx].EntryID = entryID
	if err := saveJSON(s.path(journalFile), entries); err != nil {
		return fault.New(fault.StoreWrite, "store.UpdateEntry", err)
	}
	return nil
}

// EntriesByUser returns the user's entries in chronological order. A limit
// of 0 returns all of them.
func (s *FileStore) EntriesByUser(userID string, limit int) ([]JournalEntry, error) {
	s.journalMu.Lock()
	defer s.journalMu.Unlock()

	entries, err := s.loadJournal()
	if err != nil {
		return nil, err
	}
	var out []JournalEntry
	for _, e := range entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
