package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banco/internal/testutil/fakebank"
)

type resetRecorder struct {
	slot  Slot
	calls int
	// tokenAtReset is what the slot held when ResetStore ran.
	tokenAtReset string
}

func (r *resetRecorder) ResetStore(ctx context.Context) error {
	r.calls++
	r.tokenAtReset, _, _ = r.slot.Get(ctx, KeyToken)
	return nil
}

type brokenSlot struct {
	*MemorySlot
}

func (brokenSlot) Delete(context.Context, ...string) error {
	return errors.New("disk full")
}

func TestNewStore_RestoresPersistedSession(t *testing.T) {
	ctx := context.Background()
	slot := NewMemorySlot()
	require.NoError(t, slot.Put(ctx, map[string]string{KeyToken: "abc", KeyName: "Ana"}))

	s, err := NewStore(ctx, slot, nil)
	require.NoError(t, err)

	token, ok := s.CurrentToken()
	assert.True(t, ok)
	assert.Equal(t, "abc", token)
	assert.Equal(t, "Ana", s.DisplayName())
}

func TestNewStore_Empty(t *testing.T) {
	s, err := NewStore(context.Background(), NewMemorySlot(), nil)
	require.NoError(t, err)

	_, ok := s.CurrentToken()
	assert.False(t, ok)
	assert.False(t, s.Authenticated())
	_, err = s.Current()
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestLogin_Persists(t *testing.T) {
	ctx := context.Background()
	slot := NewMemorySlot()
	s, err := NewStore(ctx, slot, nil)
	require.NoError(t, err)

	require.NoError(t, s.Login(ctx, "tok", "Ana"))

	v, ok, _ := slot.Get(ctx, KeyToken)
	assert.True(t, ok)
	assert.Equal(t, "tok", v)
	v, _, _ = slot.Get(ctx, KeyName)
	assert.Equal(t, "Ana", v)

	restored, err := NewStore(ctx, slot, nil)
	require.NoError(t, err)
	assert.True(t, restored.Authenticated())
}

func TestLogin_RejectsEmptyToken(t *testing.T) {
	s, _ := NewStore(context.Background(), NewMemorySlot(), nil)
	assert.Error(t, s.Login(context.Background(), "", "Ana"))
	assert.False(t, s.Authenticated())
}

func TestLogin_ReplacingSessionResetsCache(t *testing.T) {
	ctx := context.Background()
	slot := NewMemorySlot()
	s, _ := NewStore(ctx, slot, nil)
	rec := &resetRecorder{slot: slot}
	s.BindCache(rec)

	require.NoError(t, s.Login(ctx, "tok-a", "Ana"))
	assert.Equal(t, 0, rec.calls, "first login has nothing to discard")

	require.NoError(t, s.Login(ctx, "tok-a", "Ana"))
	assert.Equal(t, 0, rec.calls, "same token keeps the cache")

	require.NoError(t, s.Login(ctx, "tok-b", "Bruno"))
	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, "tok-b", rec.tokenAtReset, "new session is stored before the reset")
	assert.Equal(t, "Bruno", s.DisplayName())
}

func TestLogout_ClearsSlotThenResetsCache(t *testing.T) {
	ctx := context.Background()
	slot := NewMemorySlot()
	s, _ := NewStore(ctx, slot, nil)
	rec := &resetRecorder{slot: slot}
	s.BindCache(rec)
	require.NoError(t, s.Login(ctx, "tok", "Ana"))

	require.NoError(t, s.Logout(ctx))

	assert.Equal(t, 1, rec.calls)
	assert.Empty(t, rec.tokenAtReset, "slot must be cleared before the cache reset")
	assert.False(t, s.Authenticated())
	assert.Empty(t, s.DisplayName())
	_, ok, _ := slot.Get(ctx, KeyName)
	assert.False(t, ok)
}

func TestLogout_SlotFailureStillEndsSession(t *testing.T) {
	ctx := context.Background()
	slot := brokenSlot{NewMemorySlot()}
	s, _ := NewStore(ctx, slot, nil)
	rec := &resetRecorder{slot: slot}
	s.BindCache(rec)
	require.NoError(t, s.Login(ctx, "tok", "Ana"))

	err := s.Logout(ctx)
	assert.Error(t, err)
	assert.False(t, s.Authenticated())
	assert.Equal(t, 1, rec.calls)
}

func TestExpire(t *testing.T) {
	ctx := context.Background()
	slot := NewMemorySlot()
	s, _ := NewStore(ctx, slot, nil)
	rec := &resetRecorder{slot: slot}
	s.BindCache(rec)

	require.NoError(t, s.Expire(ctx, errors.New("expired")))
	assert.Zero(t, rec.calls, "no session, nothing to tear down")

	require.NoError(t, s.Login(ctx, "tok", "Ana"))
	require.NoError(t, s.Expire(ctx, errors.New("expired")))
	require.NoError(t, s.Expire(ctx, errors.New("expired")))
	assert.Equal(t, 1, rec.calls)
	assert.False(t, s.Authenticated())
}

func TestCurrent_DecodesClaims(t *testing.T) {
	ctx := context.Background()
	s, _ := NewStore(ctx, NewMemorySlot(), nil)
	require.NoError(t, s.Login(ctx, fakebank.Token("11111111111", time.Hour), "Ana"))

	sess, err := s.Current()
	require.NoError(t, err)
	assert.Equal(t, "11111111111", sess.Subject)
	assert.Equal(t, "Ana", sess.DisplayName)
	assert.WithinDuration(t, time.Now().Add(time.Hour), sess.ExpiresAt, time.Minute)
}

func TestCurrent_OpaqueToken(t *testing.T) {
	ctx := context.Background()
	s, _ := NewStore(ctx, NewMemorySlot(), nil)
	require.NoError(t, s.Login(ctx, "not-a-jwt", "Ana"))

	sess, err := s.Current()
	require.NoError(t, err)
	assert.Empty(t, sess.Subject)
	assert.True(t, sess.ExpiresAt.IsZero())
}
