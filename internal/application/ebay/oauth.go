package ebay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"easyflip-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// stateGrace keeps a finished state readable after the client stops polling.
const stateGrace = time.Minute

var (
	ErrNotConfigured = errors.New("eBay OAuth is not configured")
	ErrUnknownState  = errors.New("Unknown or expired OAuth state")
)

// FlowError carries the failure class reported to the client.
type FlowError struct {
	Class domain.ConnectErrorClass
	Err   error
}

func (e *FlowError) Error() string { return string(e.Class) + ": " + e.Err.Error() }
func (e *FlowError) Unwrap() error { return e.Err }

// Classify maps a server-side connect failure to its class.
func Classify(err error) *FlowError {
	var fe *FlowError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &fe):
		return fe
	case errors.Is(err, ErrNotConfigured):
		return &FlowError{Class: domain.ErrorAuthConfig, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &FlowError{Class: domain.ErrorTimeout, Err: err}
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return &FlowError{Class: domain.ErrorNetwork, Err: err}
	}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.ErrorCode == "invalid_client" || re.ErrorCode == "unauthorized_client" {
			return &FlowError{Class: domain.ErrorAuthConfig, Err: err}
		}
		return &FlowError{Class: domain.ErrorNetwork, Err: err}
	}
	return &FlowError{Class: domain.ErrorUnknown, Err: err}
}

// StateRecord is the server's view of one authorization attempt.
type StateRecord struct {
	State     string    `json:"state"`
	UserID    uuid.UUID `json:"user_id"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	ReturnURL string    `json:"return_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// OAuthService runs the server half of the connect flow.
type OAuthService struct {
	Client      *Client
	Tokens      *TokenStore
	Rdb         *redis.Client
	FlowTimeout time.Duration
	Configured  bool
}

func (s *OAuthService) stateTTL() time.Duration {
	return s.FlowTimeout + stateGrace
}

// Start clears whatever the user had stored, persists a fresh state and
// returns the consent URL for it.
func (s *OAuthService) Start(ctx context.Context, userID uuid.UUID, returnURL string) (*domain.ConnectStart, error) {
	if !s.Configured {
		return nil, Classify(ErrNotConfigured)
	}
	if err := s.Tokens.ClearAll(ctx, userID); err != nil {
		return nil, &FlowError{Class: domain.ErrorNetwork, Err: fmt.Errorf("clear stored tokens: %w", err)}
	}
	rec := StateRecord{
		State:     uuid.NewString(),
		UserID:    userID,
		Status:    domain.ConnectStatusPending,
		ReturnURL: returnURL,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.saveState(ctx, &rec); err != nil {
		return nil, &FlowError{Class: domain.ErrorNetwork, Err: err}
	}
	if err := s.Rdb.Set(ctx, userStateKey(userID), rec.State, s.stateTTL()).Err(); err != nil {
		return nil, &FlowError{Class: domain.ErrorNetwork, Err: err}
	}
	return &domain.ConnectStart{
		AuthURL:   s.Client.AuthCodeURL(rec.State),
		State:     rec.State,
		ExpiresAt: rec.CreatedAt.Add(s.FlowTimeout),
	}, nil
}

// Reauth is Start for a user whose grant lacks scopes; ClearAll runs first
// so no stale token survives into the new grant.
func (s *OAuthService) Reauth(ctx context.Context, userID uuid.UUID, returnURL string) (*domain.ConnectStart, error) {
	return s.Start(ctx, userID, returnURL)
}

func (s *OAuthService) saveState(ctx context.Context, rec *StateRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	ttl := s.stateTTL() - time.Since(rec.CreatedAt)
	if ttl < stateGrace {
		ttl = stateGrace
	}
	if err := s.Rdb.Set(ctx, stateKey(rec.State), b, ttl).Err(); err != nil {
		return fmt.Errorf("save oauth state: %w", err)
	}
	return nil
}

func (s *OAuthService) loadState(ctx context.Context, state string) (*StateRecord, error) {
	if state == "" {
		return nil, ErrUnknownState
	}
	raw, err := s.Rdb.Get(ctx, stateKey(state)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrUnknownState
	}
	if err != nil {
		return nil, err
	}
	var rec StateRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, ErrUnknownState
	}
	return &rec, nil
}

// Callback completes the flow from eBay's redirect. Only a pending state can
// complete; the record is updated to connected or error either way.
func (s *OAuthService) Callback(ctx context.Context, code, state, providerErr string) (*StateRecord, error) {
	rec, err := s.loadState(ctx, state)
	if err != nil {
		return nil, err
	}
	if rec.Status != domain.ConnectStatusPending {
		return nil, ErrUnknownState
	}
	fail := func(reason string, cause error) (*StateRecord, error) {
		rec.Status = domain.ConnectStatusError
		rec.Reason = reason
		if err := s.saveState(ctx, rec); err != nil {
			log.Error().Err(err).Str("state", rec.State).Msg("ebay oauth: failed to record error state")
		}
		return rec, cause
	}

	if providerErr != "" {
		return fail("access_denied", fmt.Errorf("ebay returned error %q", providerErr))
	}
	if code == "" {
		return fail("missing_code", errors.New("callback without code"))
	}
	tok, err := s.Client.Exchange(ctx, code)
	if err != nil {
		return fail(string(Classify(err).Class), err)
	}
	if err := s.Tokens.Save(ctx, rec.UserID, tok, grantedScope(tok, s.Client.OAuth.Scopes)); err != nil {
		return fail(string(domain.ErrorNetwork), err)
	}
	rec.Status = domain.ConnectStatusConnected
	rec.Reason = ""
	if err := s.saveState(ctx, rec); err != nil {
		return nil, err
	}
	log.Info().Str("user_id", rec.UserID.String()).Msg("ebay oauth: account connected")
	return rec, nil
}

// grantedScope prefers the scope the token endpoint reports over what was requested.
func grantedScope(tok *oauth2.Token, requested []string) string {
	if s, ok := tok.Extra("scope").(string); ok && s != "" {
		return s
	}
	return strings.Join(requested, " ")
}

// Status answers the client's poll. States the caller does not own are reported expired.
func (s *OAuthService) Status(ctx context.Context, userID uuid.UUID, state string) (*domain.ConnectStatus, error) {
	rec, err := s.loadState(ctx, state)
	if errors.Is(err, ErrUnknownState) {
		return &domain.ConnectStatus{State: state, Status: domain.ConnectStatusExpired}, nil
	}
	if err != nil {
		return nil, err
	}
	if rec.UserID != userID {
		return &domain.ConnectStatus{State: state, Status: domain.ConnectStatusExpired}, nil
	}
	if rec.Status == domain.ConnectStatusPending && time.Since(rec.CreatedAt) > s.FlowTimeout {
		return &domain.ConnectStatus{State: state, Status: domain.ConnectStatusExpired}, nil
	}
	return &domain.ConnectStatus{State: rec.State, Status: rec.Status, Reason: rec.Reason}, nil
}

// Connection describes the stored grant.
type Connection struct {
	Connected bool       `json:"connected"`
	Scope     string     `json:"scope,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (s *OAuthService) Connection(ctx context.Context, userID uuid.UUID) (*Connection, error) {
	_, row, err := s.Tokens.Load(ctx, userID)
	if errors.Is(err, ErrNotConnected) {
		return &Connection{Connected: false}, nil
	}
	if err != nil {
		return nil, err
	}
	exp := row.ExpiresAt
	return &Connection{Connected: true, Scope: row.Scope, ExpiresAt: &exp}, nil
}

func (s *OAuthService) Disconnect(ctx context.Context, userID uuid.UUID) error {
	return s.Tokens.ClearAll(ctx, userID)
}

// Scopes reports the stored grant against the required scopes.
func (s *OAuthService) Scopes(ctx context.Context, userID uuid.UUID) (ScopeReport, error) {
	scope, err := s.Tokens.Scope(ctx, userID)
	if errors.Is(err, ErrNotConnected) {
		return CheckScopes(""), nil
	}
	if err != nil {
		return ScopeReport{}, err
	}
	return CheckScopes(scope), nil
}
