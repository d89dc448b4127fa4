package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mindscribe.app/journal-assistant/internal/fault"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	st, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return st
}

func TestProfileCreatedOnFirstUpdate(t *testing.T) {
	st := newTestStore(t)

	_, ok, err := st.GetProfile("u1")
	require.NoError(t, err)
	assert.False(t, ok)

	err = st.UpdateProfile("u1", func(p *UserProfile) error {
		p.DisplayName = "Alex"
		p.DailyPromptOptIn = true
		return nil
	})
	require.NoError(t, err)

	p, ok, err := st.GetProfile("u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, "Alex", p.DisplayName)
	assert.True(t, p.DailyPromptOptIn)
}

func TestProfilePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	st, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, st.UpdateProfile("u1", func(p *UserProfile) error {
		p.DisplayName = "Alex"
		return nil
	}))

	reopened, err := NewFileStore(dir)
	require.NoError(t, err)
	p, ok, err := reopened.GetProfile("u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Alex", p.DisplayName)
}

func TestJournalAppendGetUpdate(t *testing.T) {
	st := newTestStore(t)

	entry := JournalEntry{
		EntryID:       "e1",
		UserID:        "u1",
		CreatedAt:     time.Now(),
		InputModality: ModalityText,
		RawText:       "I feel great today",
		Stage:         StageCreated,
	}
	require.NoError(t, st.AppendEntry(entry))

	got, err := st.GetEntry("e1")
	require.NoError(t, err)
	assert.Equal(t, "I feel great today", got.RawText)
	assert.Equal(t, StageCreated, got.Stage)

	err = st.UpdateEntry("e1", func(e *JournalEntry) error {
		e.Sentiment = "Positive"
		e.Stage = StageCategorized
		return nil
	})
	require.NoError(t, err)

	got, err = st.GetEntry("e1")
	require.NoError(t, err)
	assert.Equal(t, "e1", got.EntryID)
	assert.Equal(t, "Positive", got.Sentiment)
	assert.Equal(t, StageCategorized, got.Stage)
	assert.Equal(t, "I feel great today", got.RawText)
}

func TestJournalNotFound(t *testing.T) {
	st := newTestStore(t)

	_, err := st.GetEntry("missing")
	assert.True(t, fault.IsKind(err, fault.NotFound))

	err = st.UpdateEntry("missing", func(e *JournalEntry) error { return nil })
	assert.True(t, fault.IsKind(err, fault.NotFound))
}

func TestUpdateEntryTargetsExactID(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.AppendEntry(JournalEntry{EntryID: "e1", UserID: "u1", RawText: "first"}))
	require.NoError(t, st.AppendEntry(JournalEntry{EntryID: "e2", UserID: "u1", RawText: "latest"}))

	require.NoError(t, st.UpdateEntry("e1", func(e *JournalEntry) error {
		e.AnalysisText = "analysis for the first entry"
		return nil
	}))

	first, err := st.GetEntry("e1")
	require.NoError(t, err)
	latest, err := st.GetEntry("e2")
	require.NoError(t, err)
	assert.Equal(t, "analysis for the first entry", first.AnalysisText)
	assert.Empty(t, latest.AnalysisText)
}

func TestEntriesByUserLimit(t *testing.T) {
	st := newTestStore(t)
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, st.AppendEntry(JournalEntry{EntryID: id, UserID: "u1"}))
	}
	require.NoError(t, st.AppendEntry(JournalEntry{EntryID: "x", UserID: "u2"}))

	entries, err := st.EntriesByUser("u1", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// most recent two, in order
	assert.Equal(t, "c", entries[0].EntryID)
	assert.Equal(t, "d", entries[1].EntryID)

	all, err := st.EntriesByUser("u1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestConcurrentUsageUpdates(t *testing.T) {
	st := newTestStore(t)
	const perUser = 25

	var wg sync.WaitGroup
	for _, userID := range []string{"u1", "u2"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < perUser; i++ {
				err := st.UpdateUsage(id, func(r *UsageRecord) error {
					r.TotalCount += 10
					return nil
				})
				assert.NoError(t, err)
			}
		}(userID)
	}
	wg.Wait()

	for _, userID := range []string{"u1", "u2"} {
		rec, err := st.GetUsage(userID)
		require.NoError(t, err)
		assert.Equal(t, int64(perUser*10), rec.TotalCount, "counters for %s", userID)
	}
}

func TestMutatorErrorDiscardsMutation(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.AppendEntry(JournalEntry{EntryID: "e1", UserID: "u1", RawText: "keep me"}))

	sentinel := assert.AnError
	err := st.UpdateEntry("e1", func(e *JournalEntry) error {
		e.RawText = "mutated"
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	got, err := st.GetEntry("e1")
	require.NoError(t, err)
	assert.Equal(t, "keep me", got.RawText)
}
