package token

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"loadhub-core-svc/src/internal/config"
	"loadhub-core-svc/src/internal/events"
	"loadhub-core-svc/src/internal/models"
	"loadhub-core-svc/src/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func securityConfig() *config.SecuritySettings {
	return &config.SecuritySettings{
		AccessSecret:     "access-secret-for-tests",
		RefreshSecret:    "refresh-secret-for-tests",
		Issuer:           "loadhub",
		AccessTTLMinutes: 15,
		RefreshTTLHours:  168,
	}
}

func newService(t *testing.T) (Service, *session.MemoryStore, *clock, *events.Recorder) {
	t.Helper()
	store := session.NewMemoryStore()
	clk := &clock{now: time.Now().Truncate(time.Second)}
	rec := &events.Recorder{}
	svc, err := NewTokenService(store, securityConfig(), WithClock(clk.Now), WithPublisher(rec))
	require.NoError(t, err)
	return svc, store, clk, rec
}

var client = ClientInfo{UserAgent: "test", IPAddress: "127.0.0.1"}

func TestNewTokenServiceValidatesSecrets(t *testing.T) {
	_, err := NewTokenService(session.NewMemoryStore(), &config.SecuritySettings{AccessSecret: "a"})
	assert.Error(t, err)

	_, err = NewTokenService(session.NewMemoryStore(), &config.SecuritySettings{AccessSecret: "same", RefreshSecret: "same"})
	assert.Error(t, err)
}

func TestIssueAndVerifyAccess(t *testing.T) {
	svc, store, _, _ := newService(t)

	pair, err := svc.Issue(context.Background(), "user-1", "OWNER", client)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)

	claims, err := svc.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID())
	assert.Equal(t, "OWNER", claims.Role)
	assert.NotEmpty(t, claims.ID)

	sessions, err := store.ListByUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, Hash(pair.RefreshToken), sessions[0].TokenHash)
	assert.NotEqual(t, pair.RefreshToken, sessions[0].TokenHash)
	assert.Equal(t, "127.0.0.1", sessions[0].IPAddress)
}

func TestVerifyAccessRejectsWrongTokens(t *testing.T) {
	svc, _, clk, _ := newService(t)
	pair, err := svc.Issue(context.Background(), "user-1", "DRIVER", client)
	require.NoError(t, err)

	_, err = svc.VerifyAccess(pair.RefreshToken)
	assert.ErrorIs(t, err, models.ErrInvalidToken, "refresh credentials are not access credentials")

	_, err = svc.VerifyAccess(pair.AccessToken + "x")
	assert.ErrorIs(t, err, models.ErrInvalidToken)

	_, err = svc.VerifyAccess("")
	assert.ErrorIs(t, err, models.ErrInvalidToken)

	clk.Advance(16 * time.Minute)
	_, err = svc.VerifyAccess(pair.AccessToken)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestRotateIssuesNewPair(t *testing.T) {
	svc, _, _, _ := newService(t)
	first, err := svc.Issue(context.Background(), "user-1", "CUSTOMER", client)
	require.NoError(t, err)

	second, err := svc.Rotate(context.Background(), first.RefreshToken, client)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	claims, err := svc.VerifyAccess(second.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "CUSTOMER", claims.Role)
}

func TestRotateReuseRevokesChain(t *testing.T) {
	svc, store, _, rec := newService(t)
	ctx := context.Background()

	r0, err := svc.Issue(ctx, "user-1", "CUSTOMER", client)
	require.NoError(t, err)
	other, err := svc.Issue(ctx, "user-1", "CUSTOMER", client)
	require.NoError(t, err)

	r1, err := svc.Rotate(ctx, r0.RefreshToken, client)
	require.NoError(t, err)

	// an attacker replays the already redeemed credential
	_, err = svc.Rotate(ctx, r0.RefreshToken, client)
	assert.ErrorIs(t, err, models.ErrRefreshReuse)
	assert.ErrorIs(t, err, models.ErrRevokedCredential)

	// the legitimate successor and every other session are gone as well
	_, err = svc.Rotate(ctx, r1.RefreshToken, client)
	assert.ErrorIs(t, err, models.ErrRevokedCredential)
	_, err = svc.Rotate(ctx, other.RefreshToken, client)
	assert.ErrorIs(t, err, models.ErrRevokedCredential)

	sessions, err := store.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	for _, s := range sessions {
		assert.True(t, s.IsRevoked)
	}
	assert.Contains(t, rec.Events(), models.EventRefreshReuseDetected)
}

func TestRotateConcurrentSingleWinner(t *testing.T) {
	svc, _, _, _ := newService(t)
	pair, err := svc.Issue(context.Background(), "user-1", "CUSTOMER", client)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var wins int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Rotate(context.Background(), pair.RefreshToken, client); err == nil {
				atomic.AddInt32(&wins, 1)
			} else {
				assert.ErrorIs(t, err, models.ErrRevokedCredential)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
}

func TestRotateRejectsExpiredAndForeignTokens(t *testing.T) {
	svc, _, clk, _ := newService(t)
	pair, err := svc.Issue(context.Background(), "user-1", "CUSTOMER", client)
	require.NoError(t, err)

	_, err = svc.Rotate(context.Background(), pair.AccessToken, client)
	assert.ErrorIs(t, err, models.ErrInvalidToken)

	clk.Advance(8 * 24 * time.Hour)
	_, err = svc.Rotate(context.Background(), pair.RefreshToken, client)
	assert.ErrorIs(t, err, models.ErrInvalidToken)
}

func TestRevokeAll(t *testing.T) {
	svc, _, _, rec := newService(t)
	ctx := context.Background()
	pair, err := svc.Issue(ctx, "user-1", "CUSTOMER", client)
	require.NoError(t, err)
	_, err = svc.Issue(ctx, "user-1", "CUSTOMER", client)
	require.NoError(t, err)

	count, err := svc.RevokeAll(ctx, "user-1", session.ReasonLogout)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	_, err = svc.Rotate(ctx, pair.RefreshToken, client)
	assert.ErrorIs(t, err, models.ErrRevokedCredential)

	assert.Contains(t, rec.Events(), models.EventSessionsRevoked)
}
