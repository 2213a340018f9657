package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dealersight/credential-server-go/internal/audit"
	"github.com/dealersight/credential-server-go/internal/config"
	apperrors "github.com/dealersight/credential-server-go/internal/errors"
	"github.com/dealersight/credential-server-go/internal/model"
	"github.com/dealersight/credential-server-go/internal/repository"
	"github.com/dealersight/credential-server-go/internal/util"
)

var (
	ErrInvalidState           = errors.New("invalid or expired OAuth state")
	ErrNoAccessibleDealership = errors.New("no accessible dealership for connection")
	ErrOAuthProviderError     = errors.New("OAuth provider returned an error")
	ErrProviderNotConfigured  = errors.New("OAuth provider not configured")
	ErrConnectionNotFound     = errors.New("connection not found")
)

var providerScopes = map[model.Provider]string{
	model.ProviderAnalytics:     "https://www.googleapis.com/auth/analytics.readonly",
	model.ProviderSearchConsole: "https://www.googleapis.com/auth/webmasters.readonly",
}

// ConnectService orchestrates the OAuth connect flow: consent URL with a
// signed state, callback verification, token exchange, and credential
// storage. State decoding and dealership resolution are delegated so their
// rules stay testable in isolation.
type ConnectService struct {
	cfg      *config.Config
	codec    *StateCodec
	resolver *DealershipResolver
	access   *AccessChecker
	userRepo repository.UserRepository
	connRepo repository.ConnectionRepository
	client   *http.Client
}

func NewConnectService(
	cfg *config.Config,
	codec *StateCodec,
	resolver *DealershipResolver,
	access *AccessChecker,
	userRepo repository.UserRepository,
	connRepo repository.ConnectionRepository,
) *ConnectService {
	return &ConnectService{
		cfg:      cfg,
		codec:    codec,
		resolver: resolver,
		access:   access,
		userRepo: userRepo,
		connRepo: connRepo,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// AuthURL builds the Google consent URL for a connect attempt. The requested
// dealership is access-checked before it is sealed into the state, so a user
// cannot mint a state for a dealership they cannot touch.
func (s *ConnectService) AuthURL(ctx context.Context, provider model.Provider, userCtx *model.UserContext, dealershipID *string) (string, error) {
	if s.cfg.GoogleClientID == "" {
		return "", ErrProviderNotConfigured
	}

	if dealershipID == nil {
		dealershipID = userCtx.CurrentDealershipID
	}
	if dealershipID != nil {
		ok, err := s.access.HasAccess(ctx, userCtx, *dealershipID)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", ErrNoAccessibleDealership
		}
	}

	state, err := s.codec.Encode(userCtx.UserID, dealershipID)
	if err != nil {
		return "", err
	}

	params := url.Values{
		"client_id":     {s.cfg.GoogleClientID},
		"redirect_uri":  {s.redirectURI(provider)},
		"response_type": {"code"},
		"scope":         {providerScopes[provider]},
		"state":         {state},
		"access_type":   {"offline"},
		"prompt":        {"consent"},
	}

	return "https://accounts.google.com/o/oauth2/v2/auth?" + params.Encode(), nil
}

// HandleCallback completes a connect attempt. The state is verified first,
// then the tenant binding is resolved from a fresh user context read; only
// after both succeed does the code get exchanged and the credential stored.
// Nothing is persisted on any failure path.
func (s *ConnectService) HandleCallback(ctx context.Context, provider model.Provider, code, state string) (*model.Connection, error) {
	token := s.codec.Decode(ctx, state)
	if token == nil {
		return nil, ErrInvalidState
	}

	resolution, err := s.resolver.Resolve(ctx, token.UserID, token.DealershipID)
	if err != nil {
		if apperrors.GetCode(err) == apperrors.ErrCodeNoAccessibleDealership {
			return nil, ErrNoAccessibleDealership
		}
		return nil, err
	}

	accessToken, refreshToken, expiresAt, err := s.exchangeGoogleCode(ctx, provider, code)
	if err != nil {
		return nil, err
	}

	resourceID, err := s.fetchDefaultResource(ctx, provider, accessToken)
	if err != nil {
		return nil, err
	}

	if s.cfg.EncryptionKey != "" {
		accessToken, err = util.Encrypt(s.cfg.EncryptionKey, accessToken)
		if err != nil {
			return nil, fmt.Errorf("encrypt access token: %w", err)
		}
		if refreshToken != nil {
			encrypted, err := util.Encrypt(s.cfg.EncryptionKey, *refreshToken)
			if err != nil {
				return nil, fmt.Errorf("encrypt refresh token: %w", err)
			}
			refreshToken = &encrypted
		}
	}

	conn, err := s.connRepo.Upsert(ctx, provider, model.UpsertConnectionParams{
		UserID:       token.UserID,
		DealershipID: resolution.DealershipID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ResourceID:   resourceID,
		ExpiresAt:    expiresAt,
	})
	if err != nil {
		return nil, err
	}

	dealershipID := ""
	if resolution.DealershipID != nil {
		dealershipID = *resolution.DealershipID
	}
	audit.Log(ctx, audit.Event{
		Type:         audit.EventConnectionLinked,
		UserID:       token.UserID,
		DealershipID: dealershipID,
		Provider:     string(provider),
		Details: map[string]interface{}{
			"connection_id": conn.ID,
			"fallback":      resolution.IsFallback,
			"legacy_state":  token.Legacy(),
		},
	})

	log.Info().
		Str("provider", string(provider)).
		Str("userId", token.UserID).
		Str("connectionId", conn.ID).
		Bool("fallback", resolution.IsFallback).
		Msg("provider connection linked")

	return conn, nil
}

// ListConnections returns the caller's connections across both providers,
// grouped by dealership binding.
func (s *ConnectService) ListConnections(ctx context.Context, userID string) (map[model.Provider][]model.Connection, error) {
	result := make(map[model.Provider][]model.Connection)
	for _, provider := range []model.Provider{model.ProviderAnalytics, model.ProviderSearchConsole} {
		conns, err := s.connRepo.ListByUser(ctx, provider, userID)
		if err != nil {
			return nil, err
		}
		result[provider] = conns
	}
	return result, nil
}

// Disconnect removes one of the caller's connections. Ownership is checked
// against the stored row, not the request.
func (s *ConnectService) Disconnect(ctx context.Context, provider model.Provider, userID, connectionID string) error {
	conn, err := s.connRepo.FindByID(ctx, provider, connectionID)
	if err != nil {
		return err
	}
	if conn == nil || conn.UserID != userID {
		return ErrConnectionNotFound
	}

	if err := s.connRepo.Delete(ctx, provider, connectionID); err != nil {
		return err
	}

	dealershipID := ""
	if conn.DealershipID != nil {
		dealershipID = *conn.DealershipID
	}
	audit.Log(ctx, audit.Event{
		Type:         audit.EventConnectionDeleted,
		UserID:       userID,
		DealershipID: dealershipID,
		Provider:     string(provider),
		Details:      map[string]interface{}{"connection_id": connectionID},
	})

	return nil
}

func (s *ConnectService) redirectURI(provider model.Provider) string {
	return fmt.Sprintf("%s/connect/%s/callback", s.cfg.OAuthRedirectBase, provider)
}

func (s *ConnectService) exchangeGoogleCode(ctx context.Context, provider model.Provider, code string) (string, *string, *time.Time, error) {
	data := url.Values{
		"code":          {code},
		"client_id":     {s.cfg.GoogleClientID},
		"client_secret": {s.cfg.GoogleClientSecret},
		"redirect_uri":  {s.redirectURI(provider)},
		"grant_type":    {"authorization_code"},
	}

	resp, err := s.client.PostForm("https://oauth2.googleapis.com/token", data)
	if err != nil {
		return "", nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to read Google token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Error().Int("status", resp.StatusCode).Msg("Google token exchange failed")
		return "", nil, nil, ErrOAuthProviderError
	}

	var tokenResp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", nil, nil, err
	}
	if tokenResp.AccessToken == "" {
		return "", nil, nil, ErrOAuthProviderError
	}

	var refreshToken *string
	if tokenResp.RefreshToken != "" {
		refreshToken = &tokenResp.RefreshToken
	}
	var expiresAt *time.Time
	if tokenResp.ExpiresIn > 0 {
		t := time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
		expiresAt = &t
	}

	return tokenResp.AccessToken, refreshToken, expiresAt, nil
}

// fetchDefaultResource picks the first property or site the granted token can
// see, so a freshly linked connection is never stored without a resource
// binding.
func (s *ConnectService) fetchDefaultResource(ctx context.Context, provider model.Provider, accessToken string) (string, error) {
	var endpoint string
	switch provider {
	case model.ProviderAnalytics:
		endpoint = "https://analyticsadmin.googleapis.com/v1beta/accountSummaries"
	case model.ProviderSearchConsole:
		endpoint = "https://www.googleapis.com/webmasters/v3/sites"
	default:
		return "", fmt.Errorf("unknown provider: %s", provider)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create resource request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read resource response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Error().Int("status", resp.StatusCode).Str("provider", string(provider)).Msg("resource listing failed")
		return "", ErrOAuthProviderError
	}

	switch provider {
	case model.ProviderAnalytics:
		var summaries struct {
			AccountSummaries []struct {
				PropertySummaries []struct {
					Property string `json:"property"`
				} `json:"propertySummaries"`
			} `json:"accountSummaries"`
		}
		if err := json.Unmarshal(body, &summaries); err != nil {
			return "", err
		}
		for _, account := range summaries.AccountSummaries {
			if len(account.PropertySummaries) > 0 {
				return account.PropertySummaries[0].Property, nil
			}
		}
	case model.ProviderSearchConsole:
		var sites struct {
			SiteEntry []struct {
				SiteURL string `json:"siteUrl"`
			} `json:"siteEntry"`
		}
		if err := json.Unmarshal(body, &sites); err != nil {
			return "", err
		}
		if len(sites.SiteEntry) > 0 {
			return sites.SiteEntry[0].SiteURL, nil
		}
	}

	return "", ErrOAuthProviderError
}
