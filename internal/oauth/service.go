package oauth

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// ProviderClient performs the two outbound provider calls
type ProviderClient interface {
	ExchangeCode(ctx context.Context, code Code) (Credential, error)
	FetchProfile(ctx context.Context, credential Credential) (*Profile, error)
}

// IdentityStore maps an external identity to the account's session token,
// creating the account on first login. Implementations must be idempotent
// and safe for concurrent first logins of the same external id.
type IdentityStore interface {
	LoginOrCreate(ctx context.Context, externalID, displayName, platformID string) (string, error)
}

// Auditor records the outcome of a login attempt. errorKind is empty on success.
type Auditor interface {
	RecordLogin(ctx context.Context, externalID, errorKind, remoteAddr string) error
}

// LoginRequest is one inbound callback
type LoginRequest struct {
	Code       string
	RemoteAddr string
}

// Service runs the callback flow:
// validate code, exchange it, fetch the profile, resolve the account.
type Service struct {
	provider ProviderClient
	store    IdentityStore
	auditor  Auditor
	logger   *zap.Logger
}

// NewService wires the flow. auditor may be nil.
func NewService(provider ProviderClient, store IdentityStore, auditor Auditor, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		provider: provider,
		store:    store,
		auditor:  auditor,
		logger:   logger,
	}
}

// Login runs the whole flow for one callback and returns the session token.
// Every failure is an *Error; nothing is returned unless every step succeeded.
func (s *Service) Login(ctx context.Context, req LoginRequest) (string, error) {
	ctx, span := otel.Tracer("github.com/testaustime/testaustime-auth/internal/oauth").Start(ctx, "oauth.Login")
	defer span.End()

	externalID, token, err := s.login(ctx, req.Code)

	if err != nil {
		kind := KindOf(err)
		span.SetStatus(codes.Error, string(kind))
		span.SetAttributes(attribute.String("oauth.error_kind", string(kind)))
		s.logger.Warn("OAuth: Login failed",
			zap.String("error_kind", string(kind)),
			zap.String("external_id", externalID),
			zap.Error(err),
		)
	} else {
		s.logger.Info("OAuth: Login succeeded", zap.String("external_id", externalID))
	}

	s.audit(ctx, externalID, KindOf(err), req.RemoteAddr)

	if err != nil {
		return "", err
	}
	return token, nil
}

func (s *Service) login(ctx context.Context, rawCode string) (externalID, token string, err error) {
	code, err := ValidateCode(rawCode)
	if err != nil {
		return "", "", err
	}

	credential, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		return "", "", asUpstream("token exchange", err)
	}
	if credential == "" {
		return "", "", upstream("token exchange", errors.New("empty credential"))
	}

	profile, err := s.provider.FetchProfile(ctx, credential)
	if err != nil {
		return "", "", asUpstream("profile fetch", err)
	}
	if profile == nil {
		return "", "", upstream("profile fetch", errors.New("empty profile"))
	}

	token, err = s.ResolveAndLogin(ctx, profile.ExternalID, profile.DisplayName, profile.PlatformID)
	if err != nil {
		return profile.ExternalID, "", err
	}

	return profile.ExternalID, token, nil
}

// ResolveAndLogin returns the session token for an external identity,
// creating the account if it does not exist yet
func (s *Service) ResolveAndLogin(ctx context.Context, externalID, displayName, platformID string) (string, error) {
	token, err := s.store.LoginOrCreate(ctx, externalID, displayName, platformID)
	if err != nil {
		return "", &Error{Kind: KindStorage, Op: "resolve identity", Err: err}
	}
	if token == "" {
		return "", &Error{Kind: KindStorage, Op: "resolve identity", Err: errors.New("store returned an empty session token")}
	}
	return token, nil
}

func (s *Service) audit(ctx context.Context, externalID string, kind ErrorKind, remoteAddr string) {
	if s.auditor == nil {
		return
	}
	// The audit row is written even if the client has gone away
	ctx = context.WithoutCancel(ctx)
	if err := s.auditor.RecordLogin(ctx, externalID, string(kind), remoteAddr); err != nil {
		s.logger.Error("OAuth: Failed to record login event", zap.Error(err))
	}
}

// asUpstream keeps an existing flow error and tags anything else as upstream
func asUpstream(op string, err error) error {
	if KindOf(err) != "" {
		return err
	}
	return upstream(op, err)
}
