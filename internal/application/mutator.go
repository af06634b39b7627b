package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/killsync/internal/domain/model"
	"github.com/ericfisherdev/killsync/internal/domain/port/driven"
)

// StateMutator applies classified Actions to stored keys and characters.
// Every step is attempted even when an earlier one fails.
type StateMutator struct {
	creds    driven.CredentialStore
	chars    driven.CharacterStore
	settings *Settings
	now      func() time.Time
}

// NewStateMutator creates a StateMutator over the given stores.
func NewStateMutator(creds driven.CredentialStore, chars driven.CharacterStore, settings *Settings) *StateMutator {
	return &StateMutator{creds: creds, chars: chars, settings: settings, now: time.Now}
}

// Apply performs the mutations of action for the fault code seen on
// (keyID, characterID). characterID is 0 for key-level faults, in which case
// character-specific steps are skipped. The returned error joins every
// failed step.
func (m *StateMutator) Apply(ctx context.Context, keyID, characterID int64, code int, action model.Action) error {
	if action.IsGlobalStop() {
		until := m.now().Add(action.GlobalStop)
		if err := m.settings.SetAPIStop(ctx, until); err != nil {
			return fmt.Errorf("set api stop: %w", err)
		}
		slog.Warn("remote service unavailable, polling suspended",
			"key_id", keyID, "character_id", characterID, "code", code, "until", until)
		return nil
	}

	var errs []error
	step := func(name string, err error) bool {
		if err == nil {
			return true
		}
		slog.Error("state mutation failed",
			"step", name, "key_id", keyID, "character_id", characterID, "code", code, "error", err)
		errs = append(errs, err)
		return false
	}

	hasChar := characterID != 0
	recorded := code
	if recorded == CodeUnparseable {
		recorded = ErrorCodeUnparseable
	}
	clearCharacter := action.ClearCharacter

	if action.DemoteCharacter && hasChar {
		// A character that cannot be demoted is dropped instead.
		if !step("demote", m.chars.Demote(ctx, characterID)) {
			clearCharacter = true
		}
	}

	if clearCharacter && hasChar {
		step("clear character", m.chars.Delete(ctx, keyID, characterID))
	}

	if action.ClearAllCharacters {
		step("clear all characters", m.chars.DeleteByKey(ctx, keyID))
	}

	if action.ClearAPIEntry {
		step("mark key errored", m.creds.MarkErrored(ctx, keyID, recorded))
	}

	if !action.CacheUntil.IsZero() && hasChar {
		step("set cached until", m.chars.SetCachedUntil(ctx, characterID, action.CacheUntil))
	}

	if hasChar {
		step("record error code", m.chars.SetErrorCode(ctx, keyID, characterID, recorded))
	}

	return errors.Join(errs...)
}
