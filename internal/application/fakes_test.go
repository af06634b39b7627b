package application

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ericfisherdev/killsync/internal/domain/model"
	"github.com/ericfisherdev/killsync/internal/domain/port/driven"
)

// --- In-memory fakes of the driven ports ---

type fakeSettingStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeSettingStore() *fakeSettingStore {
	return &fakeSettingStore{values: map[string]string{}}
}

func (f *fakeSettingStore) Get(_ context.Context, name string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[name]
	return v, ok, nil
}

func (f *fakeSettingStore) Set(_ context.Context, name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[name] = value
	return nil
}

type fakeCredentialStore struct {
	mu        sync.Mutex
	creds     map[int64]model.Credential
	markErr   error
	validated []int64
}

func newFakeCredentialStore(creds ...model.Credential) *fakeCredentialStore {
	f := &fakeCredentialStore{creds: map[int64]model.Credential{}}
	for _, c := range creds {
		f.creds[c.KeyID] = c
	}
	return f
}

func (f *fakeCredentialStore) Get(_ context.Context, keyID int64) (*model.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.creds[keyID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (f *fakeCredentialStore) Find(_ context.Context, keyID int64, vCode string) (*model.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.creds[keyID]
	if !ok || c.VCode != vCode {
		return nil, nil
	}
	return &c, nil
}

func (f *fakeCredentialStore) Insert(_ context.Context, cred model.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.creds[cred.KeyID]; ok {
		return driven.ErrCredentialExists
	}
	f.creds[cred.KeyID] = cred
	return nil
}

func (f *fakeCredentialStore) Claim(_ context.Context, keyID, userID int64, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.creds[keyID]
	c.OwnerUserID = userID
	c.Label = label
	f.creds[keyID] = c
	return nil
}

func (f *fakeCredentialStore) MarkErrored(_ context.Context, keyID int64, code int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	if c, ok := f.creds[keyID]; ok {
		c.ErrorCode = code
		f.creds[keyID] = c
	}
	return nil
}

func (f *fakeCredentialStore) MarkValidated(_ context.Context, keyID int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.creds[keyID]; ok {
		c.LastValidation = at
		c.ErrorCode = 0
		f.creds[keyID] = c
	}
	f.validated = append(f.validated, keyID)
	return nil
}

type charKey struct {
	keyID, characterID int64
}

type fakeCharacterStore struct {
	mu        sync.Mutex
	rows      map[charKey]*model.Character
	nextRowID int64
	failOn    map[string]error
	calls     []string
}

func newFakeCharacterStore() *fakeCharacterStore {
	return &fakeCharacterStore{rows: map[charKey]*model.Character{}, failOn: map[string]error{}}
}

func (f *fakeCharacterStore) record(call string) error {
	f.calls = append(f.calls, call)
	return f.failOn[call]
}

func (f *fakeCharacterStore) add(keyID, characterID int64, director model.DirectorFlag) *model.Character {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextRowID++
	c := &model.Character{APIRowID: f.nextRowID, KeyID: keyID, CharacterID: characterID, IsDirector: director}
	f.rows[charKey{keyID, characterID}] = c
	return c
}

func (f *fakeCharacterStore) get(keyID, characterID int64) *model.Character {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[charKey{keyID, characterID}]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}

func (f *fakeCharacterStore) sorted() []*model.Character {
	out := make([]*model.Character, 0, len(f.rows))
	for _, c := range f.rows {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].APIRowID < out[j].APIRowID })
	return out
}

func (f *fakeCharacterStore) Upsert(_ context.Context, keyID, characterID int64, director model.DirectorFlag) error {
	f.mu.Lock()
	if c, ok := f.rows[charKey{keyID, characterID}]; ok {
		c.IsDirector = director
		f.mu.Unlock()
		return nil
	}
	f.mu.Unlock()
	f.add(keyID, characterID, director)
	return nil
}

func (f *fakeCharacterStore) Get(_ context.Context, keyID, characterID int64) (*model.Character, error) {
	return f.get(keyID, characterID), nil
}

func (f *fakeCharacterStore) ListByKey(_ context.Context, keyID int64) ([]model.Character, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Character
	for _, c := range f.sorted() {
		if c.KeyID == keyID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCharacterStore) DeleteUnsetDirector(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k, c := range f.rows {
		if c.IsDirector == model.DirectorUnset {
			delete(f.rows, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeCharacterStore) MaxModulus(_ context.Context) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	maxModulus, ok := 0, false
	for _, c := range f.rows {
		if c.HasModulus && (!ok || c.Modulus > maxModulus) {
			maxModulus, ok = c.Modulus, true
		}
	}
	return maxModulus, ok, nil
}

func (f *fakeCharacterStore) ResetModulus(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.rows {
		c.HasModulus = false
		c.Modulus = 0
	}
	return nil
}

func (f *fakeCharacterStore) AssignModulus(_ context.Context, shardCount int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, c := range f.rows {
		if !c.HasModulus {
			c.Modulus = int(c.APIRowID % int64(shardCount))
			c.HasModulus = true
			n++
		}
	}
	return n, nil
}

func (f *fakeCharacterStore) ListDue(_ context.Context, shard int, now time.Time) ([]model.Character, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Character
	for _, c := range f.sorted() {
		if c.HasModulus && c.Modulus == shard && !c.CachedUntil.After(now) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCharacterStore) Demote(_ context.Context, characterID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("demote"); err != nil {
		return err
	}
	for _, c := range f.rows {
		if c.CharacterID == characterID {
			c.IsDirector = model.DirectorNo
		}
	}
	return nil
}

func (f *fakeCharacterStore) Delete(_ context.Context, keyID, characterID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("delete"); err != nil {
		return err
	}
	delete(f.rows, charKey{keyID, characterID})
	return nil
}

func (f *fakeCharacterStore) DeleteByKey(_ context.Context, keyID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("delete_by_key"); err != nil {
		return err
	}
	for k := range f.rows {
		if k.keyID == keyID {
			delete(f.rows, k)
		}
	}
	return nil
}

func (f *fakeCharacterStore) SetCachedUntil(_ context.Context, characterID int64, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("set_cached_until"); err != nil {
		return err
	}
	for _, c := range f.rows {
		if c.CharacterID == characterID {
			c.CachedUntil = until
		}
	}
	return nil
}

func (f *fakeCharacterStore) SetErrorCode(_ context.Context, keyID, characterID int64, code int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("set_error_code"); err != nil {
		return err
	}
	if c, ok := f.rows[charKey{keyID, characterID}]; ok {
		c.ErrorCode = code
	}
	return nil
}

type fakeKillmailStore struct {
	mu   sync.Mutex
	rows map[int64]model.Killmail
}

func newFakeKillmailStore() *fakeKillmailStore {
	return &fakeKillmailStore{rows: map[int64]model.Killmail{}}
}

func (f *fakeKillmailStore) Exists(_ context.Context, killID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.rows[killID]
	return ok, nil
}

func (f *fakeKillmailStore) InsertIgnore(_ context.Context, km model.Killmail) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[km.KillID]; ok {
		return false, nil
	}
	f.rows[km.KillID] = km
	return true, nil
}

func (f *fakeKillmailStore) Get(_ context.Context, killID int64) (*model.Killmail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	km, ok := f.rows[killID]
	if !ok {
		return nil, nil
	}
	return &km, nil
}

type fakeEveAPI struct {
	mu          sync.Mutex
	accountInfo func(keyID int64, vCode string) (*model.AccountInfo, error)
	killLog     func(keyID, characterID int64, scope model.KillLogScope) (*model.KillLog, error)
	infoCalls   int
	logCalls    []int64
}

func (f *fakeEveAPI) FetchAccountInfo(_ context.Context, keyID int64, vCode string) (*model.AccountInfo, error) {
	f.mu.Lock()
	f.infoCalls++
	f.mu.Unlock()
	if f.accountInfo == nil {
		return nil, errors.New("unexpected account info call")
	}
	return f.accountInfo(keyID, vCode)
}

func (f *fakeEveAPI) FetchKillLog(_ context.Context, keyID int64, _ string, characterID int64, scope model.KillLogScope) (*model.KillLog, error) {
	f.mu.Lock()
	f.logCalls = append(f.logCalls, characterID)
	f.mu.Unlock()
	if f.killLog == nil {
		return &model.KillLog{}, nil
	}
	return f.killLog(keyID, characterID, scope)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
