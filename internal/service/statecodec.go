package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dealersight/credential-server-go/internal/audit"
	"github.com/dealersight/credential-server-go/internal/config"
	apperrors "github.com/dealersight/credential-server-go/internal/errors"
	"github.com/dealersight/credential-server-go/internal/model"
	"github.com/dealersight/credential-server-go/internal/util"
)

// StateCodec signs and verifies OAuth state parameters. A state is
// base64url(JSON payload) + "." + hex HMAC-SHA256 over the encoded payload.
// The payload binds the initiating user and dealership to the callback, so
// the callback can never be replayed into another tenant.
//
// Decode never reports which check failed. Every rejection path returns the
// same nil token so a probing caller learns nothing about signature vs
// expiry vs payload shape.
type StateCodec struct {
	secret string
}

func NewStateCodec(cfg *config.Config) (*StateCodec, error) {
	if cfg.StateSigningSecret == "" {
		return nil, apperrors.Configuration("state signing secret is not configured")
	}
	return &StateCodec{secret: cfg.StateSigningSecret}, nil
}

// Encode produces a signed state for the given user and optional dealership.
func (c *StateCodec) Encode(userID string, dealershipID *string) (string, error) {
	if !util.IsValidIdentifier(userID) {
		return "", apperrors.InvalidInput("userID", "not a valid identifier")
	}
	if dealershipID != nil && !util.IsValidIdentifier(*dealershipID) {
		return "", apperrors.InvalidInput("dealershipID", "not a valid identifier")
	}

	token := model.StateToken{
		UserID:         userID,
		DealershipID:   dealershipID,
		IssuedAtMillis: time.Now().UnixMilli(),
	}
	payload, err := json.Marshal(token)
	if err != nil {
		return "", apperrors.Internal("failed to encode state payload").WithCause(err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(payload)
	sig := util.HmacSHA256(c.secret, encoded)
	return encoded + "." + sig, nil
}

// Decode verifies a state parameter and returns its token, or nil when the
// state is invalid in any way. Legacy bare-identifier states (minted before
// signing existed) are still accepted so in-flight OAuth redirects survive a
// deploy; they carry no issue timestamp and no dealership binding.
func (c *StateCodec) Decode(ctx context.Context, state string) *model.StateToken {
	if state == "" {
		c.reject(ctx, state, "empty state")
		return nil
	}

	if !strings.Contains(state, ".") && !strings.Contains(state, "{") {
		if util.IsValidLegacyState(state) {
			audit.Log(ctx, audit.Event{
				Type:   audit.EventStateLegacyAccepted,
				UserID: state,
			})
			return &model.StateToken{UserID: state}
		}
		c.reject(ctx, state, "malformed legacy state")
		return nil
	}

	parts := strings.SplitN(state, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		c.reject(ctx, state, "malformed signed state")
		return nil
	}

	expected := util.HmacSHA256(c.secret, parts[0])
	if !util.ConstantTimeEqual(expected, parts[1]) {
		c.reject(ctx, state, "signature mismatch")
		return nil
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		c.reject(ctx, state, "payload not base64url")
		return nil
	}

	var token model.StateToken
	if err := json.Unmarshal(payload, &token); err != nil {
		c.reject(ctx, state, "payload not JSON")
		return nil
	}
	if !util.IsValidIdentifier(token.UserID) {
		c.reject(ctx, state, "invalid user id in payload")
		return nil
	}
	if token.DealershipID != nil && !util.IsValidIdentifier(*token.DealershipID) {
		c.reject(ctx, state, "invalid dealership id in payload")
		return nil
	}

	issued := time.UnixMilli(token.IssuedAtMillis)
	now := time.Now()
	if issued.After(now) {
		c.reject(ctx, state, "issued in the future")
		return nil
	}
	if now.Sub(issued) > config.StateTokenTTL {
		c.reject(ctx, state, "expired")
		return nil
	}

	return &token
}

// reject logs the internal reason; callers only ever see the uniform
// invalid-state outcome.
func (c *StateCodec) reject(ctx context.Context, state, reason string) {
	log.Warn().
		Str("state", util.MaskState(state)).
		Str("reason", reason).
		Msg("rejected OAuth state")
	audit.Log(ctx, audit.Event{
		Type:    audit.EventStateRejected,
		Details: map[string]interface{}{"reason": reason, "state": util.MaskState(state)},
	})
}
