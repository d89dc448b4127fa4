// Package worker runs the daily prompt scheduler: a background loop that
// sends one writing prompt per calendar day to each opted-in user.
package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"mindscribe.app/journal-assistant/internal/store"
)

// Notifier delivers a prompt to a user. Message transport is a collaborator
// concern; the default implementation in cmd/server just logs.
type Notifier interface {
	NotifyDailyPrompt(ctx context.Context, userID, displayName, prompt string) error
}

// PromptSource supplies prompts; the SQLite prompt bank implements it.
type PromptSource interface {
	RandomPrompt() (*store.DailyPrompt, error)
}

type PromptScheduler struct {
	store    *store.FileStore
	bank     PromptSource
	notifier Notifier
	now      func() time.Time
}

func NewPromptScheduler(st *store.FileStore, bank PromptSource, notifier Notifier) *PromptScheduler {
	return &PromptScheduler{
		store:    st,
		bank:     bank,
		notifier: notifier,
		now:      time.Now,
	}
}

// Start runs check cycles on the given interval until the context is
// cancelled. A cycle runs immediately on startup.
func (s *PromptScheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("Daily prompt scheduler started (interval %s)", interval)
	if err := s.RunOnce(ctx); err != nil {
		log.Printf("Prompt cycle failed: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			log.Println("Daily prompt scheduler stopped")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				log.Printf("Prompt cycle failed: %v", err)
			}
		}
	}
}

// RunOnce sends today's prompt to every opted-in user who has not received
// one yet today. The last-sent date is committed per user before the day's
// next cycle can pick them up again.
func (s *PromptScheduler) RunOnce(ctx context.Context) error {
	profiles, err := s.store.Profiles()
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	today := s.now().Format("2006-01-02")
	for _, profile := range profiles {
		if !profile.DailyPromptOptIn || profile.LastPromptSent == today {
			continue
		}

		prompt, err := s.bank.RandomPrompt()
		if err != nil {
			return fmt.Errorf("failed to pick a prompt: %w", err)
		}
		if prompt == nil {
			log.Println("Prompt bank is empty, skipping cycle")
			return nil
		}

		if err := s.notifier.NotifyDailyPrompt(ctx, profile.UserID, profile.DisplayName, prompt.Text); err != nil {
			log.Printf("Could not deliver daily prompt to user %s: %v", profile.UserID, err)
			continue
		}

		err = s.store.UpdateProfile(profile.UserID, func(p *store.UserProfile) error {
			p.LastPromptSent = today
			return nil
		})
		if err != nil {
			log.Printf("Could not record prompt delivery for user %s: %v", profile.UserID, err)
		}
	}
	return nil
}
