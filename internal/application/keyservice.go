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

// ErrNotKeyOwner is returned when a user acts on a key owned by someone else.
var ErrNotKeyOwner = errors.New("key belongs to another user")

// KeyService admits API keys and maintains the characters they grant.
type KeyService struct {
	creds   driven.CredentialStore
	chars   driven.CharacterStore
	gate    *AccessGate
	mutator *StateMutator
	now     func() time.Time
}

// NewKeyService creates a KeyService with all required dependencies.
func NewKeyService(
	creds driven.CredentialStore,
	chars driven.CharacterStore,
	gate *AccessGate,
	mutator *StateMutator,
) *KeyService {
	return &KeyService{
		creds:   creds,
		chars:   chars,
		gate:    gate,
		mutator: mutator,
		now:     time.Now,
	}
}

// Add validates a user-submitted key and stores it for userID (0 for an
// anonymous submission). A key previously submitted anonymously is handed
// to the user; resubmitting one's own errored key re-validates it. The
// returned message is meant for the submitter.
func (s *KeyService) Add(ctx context.Context, userID int64, keyIDRaw, vCodeRaw, label string) (string, error) {
	v, err := s.gate.Validate(ctx, keyIDRaw, vCodeRaw)
	if err != nil {
		return "", err
	}

	existing, err := s.creds.Find(ctx, v.KeyID, v.VCode)
	if err != nil {
		return "", err
	}
	if existing != nil {
		if existing.OwnerUserID != 0 {
			if existing.OwnerUserID != userID || !existing.Errored() {
				return "", fmt.Errorf("add key %d: %w", v.KeyID, driven.ErrCredentialExists)
			}
			if err := s.populate(ctx, *existing, v.Info); err != nil {
				return "", err
			}
			slog.Info("errored key re-validated on resubmit", "key_id", v.KeyID, "user_id", userID,
				"previous_error_code", existing.ErrorCode)
			return revalidatedMessage(v.KeyID), nil
		}
		if err := s.creds.Claim(ctx, v.KeyID, userID, label); err != nil {
			return "", err
		}
		if existing.Errored() {
			if err := s.populate(ctx, *existing, v.Info); err != nil {
				return "", err
			}
		}
		slog.Info("anonymous key claimed", "key_id", v.KeyID, "user_id", userID)
		return fmt.Sprintf("keyID %d previously existed in our database but has now been assigned to you.", v.KeyID), nil
	}

	cred := model.Credential{KeyID: v.KeyID, VCode: v.VCode, OwnerUserID: userID, Label: label}
	if err := s.creds.Insert(ctx, cred); err != nil {
		return "", err
	}

	if err := s.populate(ctx, cred, v.Info); err != nil {
		return "", err
	}

	keyType := v.Info.Type
	if keyType == model.KeyTypeAccount {
		keyType = model.KeyTypeCharacter
	}
	slog.Info("key added", "key_id", v.KeyID, "type", keyType, "user_id", userID)

	return fmt.Sprintf("Success, your %s key has been added.", keyType), nil
}

// Revalidate is the owner-initiated re-validation of a stored key. It is the
// only way a key marked errored by a permanent fault returns to polling.
func (s *KeyService) Revalidate(ctx context.Context, userID, keyID int64) (string, error) {
	cred, err := s.creds.Get(ctx, keyID)
	if err != nil {
		return "", err
	}
	if cred == nil {
		return "", fmt.Errorf("revalidate key %d: %w", keyID, driven.ErrCredentialNotFound)
	}
	if cred.OwnerUserID != userID {
		return "", fmt.Errorf("revalidate key %d: %w", keyID, ErrNotKeyOwner)
	}

	if err := s.repopulate(ctx, *cred); err != nil {
		return "", err
	}
	slog.Info("key re-validated", "key_id", keyID, "user_id", userID, "previous_error_code", cred.ErrorCode)
	return revalidatedMessage(keyID), nil
}

// Populate re-validates a stored key and refreshes its character list.
// Remote faults are classified and applied like polling faults.
func (s *KeyService) Populate(ctx context.Context, keyID int64) error {
	cred, err := s.creds.Get(ctx, keyID)
	if err != nil {
		return err
	}
	if cred == nil {
		return fmt.Errorf("populate key %d: %w", keyID, driven.ErrCredentialNotFound)
	}
	return s.repopulate(ctx, *cred)
}

func (s *KeyService) repopulate(ctx context.Context, cred model.Credential) error {
	keyID := cred.KeyID
	info, err := s.gate.Revalidate(ctx, cred)
	if err != nil {
		var gateErr *GateError
		if errors.As(err, &gateErr) && gateErr.Remote != nil {
			action := Classify(gateErr.Remote.Code, gateErr.Remote.CachedUntil, s.now())
			if applyErr := s.mutator.Apply(ctx, keyID, 0, gateErr.Remote.Code, action); applyErr != nil {
				slog.Error("apply populate error action failed", "key_id", keyID, "error", applyErr)
			}
		}
		return fmt.Errorf("populate key %d: %w", keyID, err)
	}

	return s.populate(ctx, cred, info)
}

// populate records the validation and syncs the key's characters with the
// remote list. Corporation keys grant director access.
func (s *KeyService) populate(ctx context.Context, cred model.Credential, info *model.AccountInfo) error {
	director := model.DirectorNo
	if info.Type == model.KeyTypeCorporation {
		director = model.DirectorYes
	}

	granted := make(map[int64]bool, len(info.Characters))
	for _, kc := range info.Characters {
		granted[kc.CharacterID] = true
		if err := s.chars.Upsert(ctx, cred.KeyID, kc.CharacterID, director); err != nil {
			return err
		}
	}

	stored, err := s.chars.ListByKey(ctx, cred.KeyID)
	if err != nil {
		return err
	}
	for _, c := range stored {
		if granted[c.CharacterID] {
			continue
		}
		if err := s.chars.Delete(ctx, cred.KeyID, c.CharacterID); err != nil {
			return err
		}
		slog.Info("character no longer on key", "key_id", cred.KeyID, "character_id", c.CharacterID)
	}

	return s.creds.MarkValidated(ctx, cred.KeyID, s.now())
}

func revalidatedMessage(keyID int64) string {
	return fmt.Sprintf("keyID %d has been re-validated and will be polled again.", keyID)
}
