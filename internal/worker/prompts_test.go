package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mindscribe.app/journal-assistant/internal/store"
)

type fakeBank struct {
	prompts []string
	idx     int
	err     error
}

func (b *fakeBank) RandomPrompt() (*store.DailyPrompt, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.prompts) == 0 {
		return nil, nil
	}
	text := b.prompts[b.idx%len(b.prompts)]
	b.idx++
	return &store.DailyPrompt{ID: int64(b.idx), Text: text}, nil
}

type recordingNotifier struct {
	sent []string // userIDs in delivery order
	fail map[string]bool
}

func (n *recordingNotifier) NotifyDailyPrompt(_ context.Context, userID, _, _ string) error {
	if n.fail[userID] {
		return errors.New("delivery failed")
	}
	n.sent = append(n.sent, userID)
	return nil
}

func newSchedulerFixture(t *testing.T, bank *fakeBank, notifier *recordingNotifier) (*PromptScheduler, *store.FileStore) {
	t.Helper()
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return NewPromptScheduler(st, bank, notifier), st
}

func optIn(t *testing.T, st *store.FileStore, userID string, optedIn bool) {
	t.Helper()
	err := st.UpdateProfile(userID, func(p *store.UserProfile) error {
		p.DisplayName = userID
		p.DailyPromptOptIn = optedIn
		return nil
	})
	require.NoError(t, err)
}

func TestRunOncePromptsOptedInUsers(t *testing.T) {
	bank := &fakeBank{prompts: []string{"What made you smile today?"}}
	notifier := &recordingNotifier{}
	sched, st := newSchedulerFixture(t, bank, notifier)
	sched.now = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }

	optIn(t, st, "alice", true)
	optIn(t, st, "bob", false)

	require.NoError(t, sched.RunOnce(context.Background()))

	assert.Equal(t, []string{"alice"}, notifier.sent)

	profile, found, err := st.GetProfile("alice")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "2025-03-01", profile.LastPromptSent)
}

func TestRunOnceIsIdempotentWithinADay(t *testing.T) {
	bank := &fakeBank{prompts: []string{"p"}}
	notifier := &recordingNotifier{}
	sched, st := newSchedulerFixture(t, bank, notifier)
	sched.now = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }

	optIn(t, st, "alice", true)

	require.NoError(t, sched.RunOnce(context.Background()))
	require.NoError(t, sched.RunOnce(context.Background()))

	assert.Len(t, notifier.sent, 1)
}

func TestRunOncePromptsAgainNextDay(t *testing.T) {
	bank := &fakeBank{prompts: []string{"p"}}
	notifier := &recordingNotifier{}
	sched, st := newSchedulerFixture(t, bank, notifier)

	optIn(t, st, "alice", true)

	sched.now = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }
	require.NoError(t, sched.RunOnce(context.Background()))

	sched.now = func() time.Time { return time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC) }
	require.NoError(t, sched.RunOnce(context.Background()))

	assert.Equal(t, []string{"alice", "alice"}, notifier.sent)
}

func TestRunOnceFailedDeliveryRetriesNextCycle(t *testing.T) {
	bank := &fakeBank{prompts: []string{"p"}}
	notifier := &recordingNotifier{fail: map[string]bool{"alice": true}}
	sched, st := newSchedulerFixture(t, bank, notifier)
	sched.now = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }

	optIn(t, st, "alice", true)

	require.NoError(t, sched.RunOnce(context.Background()))
	assert.Empty(t, notifier.sent)

	profile, _, err := st.GetProfile("alice")
	require.NoError(t, err)
	assert.Empty(t, profile.LastPromptSent, "failed delivery must not mark the day as sent")

	notifier.fail = nil
	require.NoError(t, sched.RunOnce(context.Background()))
	assert.Equal(t, []string{"alice"}, notifier.sent)
}

func TestRunOnceEmptyBankSkipsCycle(t *testing.T) {
	bank := &fakeBank{}
	notifier := &recordingNotifier{}
	sched, st := newSchedulerFixture(t, bank, notifier)

	optIn(t, st, "alice", true)

	require.NoError(t, sched.RunOnce(context.Background()))
	assert.Empty(t, notifier.sent)
}
