package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testaustime/testaustime-auth/internal/oauth/oauthtest"
)

// memIdentityStore is a minimal in-memory IdentityStore for tests.
type memIdentityStore struct {
	mu       sync.Mutex
	accounts map[string]string
	names    map[string]string
	calls    int
	err      error
}

func newMemIdentityStore() *memIdentityStore {
	return &memIdentityStore{
		accounts: make(map[string]string),
		names:    make(map[string]string),
	}
}

func (s *memIdentityStore) LoginOrCreate(_ context.Context, externalID, displayName, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	if token, ok := s.accounts[externalID]; ok {
		return token, nil
	}
	token := fmt.Sprintf("sess_%d", len(s.accounts)+1)
	if externalID == "42" {
		token = "sess_abc"
	}
	s.accounts[externalID] = token
	s.names[externalID] = displayName
	return token, nil
}

func (s *memIdentityStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}

// memAuditor records audit calls.
type memAuditor struct {
	mu     sync.Mutex
	events []string
}

func (a *memAuditor) RecordLogin(_ context.Context, externalID, errorKind, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, externalID+"|"+errorKind)
	return nil
}

func newTestService(t *testing.T) (*Service, *oauthtest.Provider, *memIdentityStore, *memAuditor) {
	t.Helper()
	provider := oauthtest.NewProvider(t)
	store := newMemIdentityStore()
	auditor := &memAuditor{}
	return NewService(newTestClient(t, provider, 0), store, auditor, nil), provider, store, auditor
}

func TestLoginEndToEnd(t *testing.T) {
	service, provider, store, auditor := newTestService(t)

	token, err := service.Login(context.Background(), LoginRequest{Code: "abc123"})
	require.NoError(t, err)
	assert.Equal(t, "sess_abc", token)

	assert.Equal(t, 1, provider.TokenCalls())
	assert.Equal(t, 1, provider.ProfileCalls())
	assert.Equal(t, "Bearer "+oauthtest.DefaultToken, provider.LastAuthorization())
	assert.Equal(t, 1, store.count())
	assert.Equal(t, "alice", store.names["42"])
	assert.Equal(t, []string{"42|"}, auditor.events)
}

func TestLoginInvalidCodeMakesNoCalls(t *testing.T) {
	service, provider, store, auditor := newTestService(t)

	token, err := service.Login(context.Background(), LoginRequest{Code: "has space"})
	require.Error(t, err)
	assert.Empty(t, token)
	assert.Equal(t, KindInvalidCode, KindOf(err))
	assert.Equal(t, 0, provider.Calls())
	assert.Equal(t, 0, store.calls)
	assert.Equal(t, []string{"|invalid_code"}, auditor.events)
}

func TestLoginTokenEndpointFailure(t *testing.T) {
	service, provider, store, _ := newTestService(t)
	provider.SetToken(http.StatusUnauthorized, `{"error":"invalid_grant"}`)

	token, err := service.Login(context.Background(), LoginRequest{Code: "abc123"})
	require.Error(t, err)
	assert.Empty(t, token)
	assert.Equal(t, KindUpstream, KindOf(err))
	assert.Equal(t, 0, provider.ProfileCalls())
	assert.Equal(t, 0, store.calls)
}

func TestLoginProfileMissingPlatform(t *testing.T) {
	service, provider, store, _ := newTestService(t)
	provider.SetProfile(http.StatusOK, `{"id":"42","name":"alice"}`)

	_, err := service.Login(context.Background(), LoginRequest{Code: "abc123"})
	require.Error(t, err)
	assert.Equal(t, KindUpstream, KindOf(err))
	assert.Equal(t, 0, store.calls)
	assert.Equal(t, 0, store.count())
}

func TestLoginStorageFailure(t *testing.T) {
	service, _, store, auditor := newTestService(t)
	store.err = errors.New("connection refused")

	token, err := service.Login(context.Background(), LoginRequest{Code: "abc123"})
	require.Error(t, err)
	assert.Empty(t, token)
	assert.Equal(t, KindStorage, KindOf(err))
	assert.Equal(t, []string{"42|storage_error"}, auditor.events)
}

// stubProvider returns fixed results without any network traffic.
type stubProvider struct {
	credential Credential
	profile    *Profile
	err        error
}

func (p stubProvider) ExchangeCode(context.Context, Code) (Credential, error) {
	return p.credential, p.err
}

func (p stubProvider) FetchProfile(context.Context, Credential) (*Profile, error) {
	return p.profile, p.err
}

func TestLoginTagsUntypedProviderErrorsAsUpstream(t *testing.T) {
	service := NewService(stubProvider{err: errors.New("boom")}, newMemIdentityStore(), nil, nil)

	_, err := service.Login(context.Background(), LoginRequest{Code: "abc123"})
	assert.Equal(t, KindUpstream, KindOf(err))
}

func TestLoginFailsClosedOnEmptyCredential(t *testing.T) {
	store := newMemIdentityStore()
	service := NewService(stubProvider{credential: ""}, store, nil, nil)

	_, err := service.Login(context.Background(), LoginRequest{Code: "abc123"})
	assert.Equal(t, KindUpstream, KindOf(err))
	assert.Equal(t, 0, store.calls)
}

func TestResolveAndLoginIsIdempotent(t *testing.T) {
	store := newMemIdentityStore()
	service := NewService(stubProvider{}, store, nil, nil)

	first, err := service.ResolveAndLogin(context.Background(), "7", "bob", "p7")
	require.NoError(t, err)
	second, err := service.ResolveAndLogin(context.Background(), "7", "bob", "p7")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.count())
}

func TestResolveAndLoginRejectsEmptyToken(t *testing.T) {
	service := NewService(stubProvider{}, emptyTokenStore{}, nil, nil)

	_, err := service.ResolveAndLogin(context.Background(), "7", "bob", "p7")
	assert.Equal(t, KindStorage, KindOf(err))
}

type emptyTokenStore struct{}

func (emptyTokenStore) LoginOrCreate(context.Context, string, string, string) (string, error) {
	return "", nil
}

func TestErrorFormatting(t *testing.T) {
	err := &Error{Kind: KindUpstream, Op: "token exchange", Err: errors.New("status 500")}
	assert.Equal(t, "token exchange: upstream_error: status 500", err.Error())
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))

	wrapped := fmt.Errorf("callback: %w", err)
	assert.Equal(t, KindUpstream, KindOf(wrapped))
}
