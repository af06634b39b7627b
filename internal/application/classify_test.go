package application

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ericfisherdev/killsync/internal/domain/model"
)

func TestClassify(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	hint := now.Add(600 * time.Second)

	destroy := model.Action{ClearAllCharacters: true, ClearAPIEntry: true}

	tests := []struct {
		name  string
		codes []int
		want  model.Action
	}{
		{"service-wide stop", []int{28, 904}, model.Action{GlobalStop: 5 * time.Minute}},
		{"service unavailable", []int{403, 502, 503}, model.Action{CacheUntil: now.Add(5 * time.Minute)}},
		{"remote retry hint", []int{119, 120}, model.Action{CacheUntil: hint}},
		{"illegal page access", []int{221}, destroy},
		{"security level too low", []int{200, 220}, destroy},
		{"character not on account", []int{201, 522}, model.Action{ClearCharacter: true}},
		{"npc corporation", []int{207, 209}, model.Action{DemoteCharacter: true}},
		{"account expired", []int{222}, model.Action{ClearAllCharacters: true, ClearAPIEntry: true, CacheUntil: now.Add(7 * 24 * time.Hour)}},
		{"login denied", []int{211}, destroy},
		{"authentication failure", []int{202, 203, 204, 205, 210, 521}, destroy},
		{"server error", []int{500, 520, 404, 902}, model.Action{CacheUntil: now.Add(time.Hour)}},
		{"unparseable", []int{0}, model.Action{ClearAPIEntry: true, Unhandled: true}},
		{"undocumented", []int{1, 206, 999, -5}, model.Action{ClearAPIEntry: true, Unhandled: true}},
	}

	for _, tt := range tests {
		for _, code := range tt.codes {
			got := Classify(code, hint, now)
			assert.Equal(t, tt.want, got, "%s: code %d", tt.name, code)
		}
	}
}

func TestClassify_RetryHintAbsent(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	got := Classify(CodeKillsExhausted, time.Time{}, now)

	assert.True(t, got.CacheUntil.IsZero(), "no hint means no backoff write")
	assert.False(t, got.ClearAPIEntry)
}

func TestClassify_GlobalStopOnlyForServiceWideCodes(t *testing.T) {
	now := time.Now()
	for code := -1; code < 1000; code++ {
		got := Classify(code, time.Time{}, now)
		if code == CodeTimeout || code == CodeTemporaryBan {
			assert.True(t, got.IsGlobalStop(), "code %d", code)
			continue
		}
		assert.False(t, got.IsGlobalStop(), "code %d", code)
	}
}
