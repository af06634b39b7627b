package application

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/ericfisherdev/killsync/internal/domain/model"
	"github.com/ericfisherdev/killsync/internal/domain/port/driven"
	"github.com/ericfisherdev/killsync/internal/metrics"
)

// DefaultRevalidateAfter is how long a key's last validation is trusted
// before a worker re-runs the access gate for it.
const DefaultRevalidateAfter = 24 * time.Hour

// WorkerReport summarizes one shard pass.
type WorkerReport struct {
	Shard      int
	Stopped    bool
	Characters int
	Fetched    int
	KillsAdded int
	Errors     int
}

// FetchWorker polls the kill logs of one shard's characters.
type FetchWorker struct {
	creds           driven.CredentialStore
	chars           driven.CharacterStore
	api             driven.EveAPI
	gate            *AccessGate
	settings        *Settings
	ingester        *KillmailIngester
	mutator         *StateMutator
	revalidateAfter time.Duration
	now             func() time.Time
}

// NewFetchWorker creates a FetchWorker with all required dependencies.
func NewFetchWorker(
	creds driven.CredentialStore,
	chars driven.CharacterStore,
	api driven.EveAPI,
	gate *AccessGate,
	settings *Settings,
	ingester *KillmailIngester,
	mutator *StateMutator,
	revalidateAfter time.Duration,
) *FetchWorker {
	if revalidateAfter <= 0 {
		revalidateAfter = DefaultRevalidateAfter
	}
	return &FetchWorker{
		creds:           creds,
		chars:           chars,
		api:             api,
		gate:            gate,
		settings:        settings,
		ingester:        ingester,
		mutator:         mutator,
		revalidateAfter: revalidateAfter,
		now:             time.Now,
	}
}

// keyState is the per-pass admission result for one key.
type keyState struct {
	cred     *model.Credential
	admitted bool
}

// Run polls every due character of shard once, sequentially. It is a no-op
// while the global outage marker is in the future.
func (w *FetchWorker) Run(ctx context.Context, shard, shardCount int) (WorkerReport, error) {
	start := w.now()
	report := WorkerReport{Shard: shard}

	stopped, until, err := w.settings.Stopped(ctx, start)
	if err != nil {
		return report, err
	}
	if stopped {
		report.Stopped = true
		slog.Debug("api stop active, shard idle", "shard", shard, "until", until)
		return report, nil
	}

	due, err := w.chars.ListDue(ctx, shard, start)
	if err != nil {
		return report, err
	}
	report.Characters = len(due)

	keys := make(map[int64]*keyState)

	for _, char := range due {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		ks, ok := keys[char.KeyID]
		if !ok {
			var action model.Action
			ks, action = w.admit(ctx, char.KeyID)
			keys[char.KeyID] = ks
			if action.IsGlobalStop() {
				report.Errors++
				report.Stopped = true
				break
			}
		}
		if !ks.admitted {
			continue
		}

		added, action, err := w.fetchOne(ctx, *ks.cred, char)
		if err != nil {
			report.Errors++
			if action.IsGlobalStop() {
				report.Stopped = true
				break
			}
			if action.ClearAllCharacters || action.ClearAPIEntry {
				ks.admitted = false
			}
			continue
		}
		report.Fetched++
		report.KillsAdded += added
	}

	slog.Info("shard polled",
		"shard", shard,
		"shards", shardCount,
		"characters", report.Characters,
		"fetched", report.Fetched,
		"kills_added", report.KillsAdded,
		"errors", report.Errors,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return report, nil
}

// admit loads a key once per pass and re-runs the access gate when its last
// validation is stale. Errored or missing keys are not polled. The returned
// action is the one applied for a failed revalidation.
func (w *FetchWorker) admit(ctx context.Context, keyID int64) (*keyState, model.Action) {
	cred, err := w.creds.Get(ctx, keyID)
	if err != nil {
		slog.Error("load key failed", "key_id", keyID, "error", err)
		return &keyState{}, model.Action{}
	}
	if cred == nil {
		slog.Warn("character row without key", "key_id", keyID)
		return &keyState{}, model.Action{}
	}
	if cred.Errored() {
		return &keyState{cred: cred}, model.Action{}
	}

	now := w.now()
	if now.Sub(cred.LastValidation) < w.revalidateAfter {
		return &keyState{cred: cred, admitted: true}, model.Action{}
	}

	if _, err := w.gate.Revalidate(ctx, *cred); err != nil {
		return &keyState{cred: cred}, w.handleGateFailure(ctx, keyID, err)
	}
	if err := w.creds.MarkValidated(ctx, keyID, now); err != nil {
		slog.Error("record key validation failed", "key_id", keyID, "error", err)
	}
	return &keyState{cred: cred, admitted: true}, model.Action{}
}

func (w *FetchWorker) handleGateFailure(ctx context.Context, keyID int64, err error) model.Action {
	var gateErr *GateError
	if !errors.As(err, &gateErr) {
		slog.Error("key revalidation failed", "key_id", keyID, "error", err)
		return model.Action{}
	}

	code := CodeIllegalPageAccess // what the kill log itself answers without the access bit
	var cachedUntil time.Time
	if gateErr.Remote != nil {
		code = gateErr.Remote.Code
		cachedUntil = gateErr.Remote.CachedUntil
	} else if gateErr.Reason != GateInsufficientScope {
		slog.Error("key revalidation failed", "key_id", keyID, "error", err)
		return model.Action{}
	}

	return w.handleRemoteFault(ctx, keyID, 0, code, "key revalidation: "+gateErr.Error(), cachedUntil)
}

// fetchOne polls one character. On failure the returned action is the one
// applied for the remote fault.
func (w *FetchWorker) fetchOne(ctx context.Context, cred model.Credential, char model.Character) (int, model.Action, error) {
	killLog, err := w.api.FetchKillLog(ctx, cred.KeyID, cred.VCode, char.CharacterID, char.Scope())
	if err != nil {
		metrics.FetchesTotal.WithLabelValues("error").Inc()

		var remote *driven.RemoteError
		if !errors.As(err, &remote) {
			slog.Error("fetch kill log failed", "key_id", cred.KeyID, "character_id", char.CharacterID, "error", err)
			return 0, model.Action{}, err
		}
		action := w.handleRemoteFault(ctx, cred.KeyID, char.CharacterID, remote.Code, remote.Message, remote.CachedUntil)
		return 0, action, err
	}
	metrics.FetchesTotal.WithLabelValues("ok").Inc()

	added, err := w.ingester.Ingest(ctx, KeySource(cred.KeyID), killLog.Kills)
	if err != nil {
		slog.Error("ingest kills failed", "key_id", cred.KeyID, "character_id", char.CharacterID, "added", added, "error", err)
	}

	if char.ErrorCode != 0 {
		if err := w.chars.SetErrorCode(ctx, cred.KeyID, char.CharacterID, 0); err != nil {
			slog.Error("clear character error code failed", "key_id", cred.KeyID, "character_id", char.CharacterID, "error", err)
		}
	}
	if !killLog.CachedUntil.IsZero() {
		if err := w.chars.SetCachedUntil(ctx, char.CharacterID, killLog.CachedUntil); err != nil {
			slog.Error("record kill log cache time failed", "key_id", cred.KeyID, "character_id", char.CharacterID, "error", err)
		}
	}

	return added, model.Action{}, nil
}

func (w *FetchWorker) handleRemoteFault(ctx context.Context, keyID, characterID int64, code int, message string, cachedUntil time.Time) model.Action {
	metrics.RemoteErrorsTotal.WithLabelValues(strconv.Itoa(code)).Inc()

	action := Classify(code, cachedUntil, w.now())
	if action.Unhandled {
		slog.Warn("unhandled remote error",
			"key_id", keyID, "character_id", characterID, "code", code, "message", message)
	}

	if err := w.mutator.Apply(ctx, keyID, characterID, code, action); err != nil {
		slog.Error("apply remote error action failed", "key_id", keyID, "character_id", characterID, "code", code, "error", err)
	}
	return action
}
