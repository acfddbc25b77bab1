package token

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/TirthC27/HealthID/pkg/logger"
	"github.com/TirthC27/HealthID/pkg/storage"
	"github.com/TirthC27/HealthID/pkg/types"
)

// HCIDPrefix is the literal prefix that marks a health case identifier
const HCIDPrefix = "HCID-"

// InputKind classifies what the scanning side handed us
type InputKind string

const (
	// KindPayload is the full serialized QR payload
	KindPayload InputKind = "payload"
	// KindToken is a bare token string
	KindToken InputKind = "token"
	// KindHCID is a bare health case identifier
	KindHCID InputKind = "hcid"
)

// ScanInput is the result of classifying raw scanner or manual-entry input
type ScanInput struct {
	Kind  InputKind
	Token string
	HCID  string
}

// Codec turns an HCID into a shareable, decodable credential and back.
// Tokens are multi-redeemable until expiry; a single-use strategy would hook
// in here without touching callers.
type Codec struct {
	tokens *Repository
	ttl    time.Duration
	logger *logger.Logger
	now    func() time.Time
}

// NewCodec creates a new token codec with the given token TTL
func NewCodec(store storage.Store, ttl time.Duration, log *logger.Logger) *Codec {
	return &Codec{
		tokens: NewRepository(store),
		ttl:    ttl,
		logger: log,
		now:    time.Now,
	}
}

// Mint generates and persists a fresh access token for the given HCID
func (c *Codec) Mint(hcid string) (*types.AccessToken, error) {
	if hcid == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "HCID is required", nil)
	}

	now := c.now().UTC()
	tok := &types.AccessToken{
		Token:     newTokenString(now),
		HCID:      hcid,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}

	if err := c.tokens.Save(tok); err != nil {
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"hcid":       hcid,
		"expires_at": tok.ExpiresAt,
	}).Debug("Access token minted")

	return tok, nil
}

// Serialize produces the QR payload wire format for a token
func (c *Codec) Serialize(tok *types.AccessToken) (string, error) {
	payload := types.QRPayload{
		Token:     tok.Token,
		HCID:      tok.HCID,
		ExpiresAt: tok.ExpiresAt,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal QR payload: %w", err)
	}
	return string(data), nil
}

// Deserialize classifies raw scanner or manual-entry input. Three shapes are
// accepted: the full JSON payload, a bare token string, and a bare HCID
// carrying the HCID- prefix. Camera OCR and manual paste cannot guarantee
// structured input, so all three route to the right downstream lookup.
func (c *Codec) Deserialize(raw string) (*ScanInput, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, types.NewValidationError(types.ErrCodeMalformedPayload, "Empty scan input", nil)
	}

	if strings.HasPrefix(trimmed, "{") {
		var payload types.QRPayload
		if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
			return nil, types.NewValidationError(types.ErrCodeMalformedPayload, "Invalid QR payload", map[string]interface{}{
				"parse_error": err.Error(),
			})
		}
		if payload.Token != "" {
			return &ScanInput{Kind: KindPayload, Token: payload.Token, HCID: payload.HCID}, nil
		}
		if payload.HCID != "" {
			return &ScanInput{Kind: KindHCID, HCID: payload.HCID}, nil
		}
		return nil, types.NewValidationError(types.ErrCodeMalformedPayload, "QR payload carries neither token nor HCID", nil)
	}

	if strings.HasPrefix(trimmed, HCIDPrefix) {
		return &ScanInput{Kind: KindHCID, HCID: trimmed}, nil
	}

	return &ScanInput{Kind: KindToken, Token: trimmed}, nil
}

// Redeem resolves scanner input to an HCID. Direct HCID input bypasses token
// lookup entirely; token input must reference a minted, unexpired token.
// Redemption does not consume the token.
func (c *Codec) Redeem(raw string) (string, error) {
	input, err := c.Deserialize(raw)
	if err != nil {
		return "", err
	}

	if input.Kind == KindHCID {
		return input.HCID, nil
	}

	tok, err := c.tokens.GetByToken(input.Token)
	if err != nil {
		return "", err
	}

	if !c.now().Before(tok.ExpiresAt) {
		return "", types.NewAuthorizationError(types.ErrCodeTokenExpired, "Access token has expired")
	}

	return tok.HCID, nil
}

// LiveTokens reports how many stored tokens are currently redeemable.
// Expired tokens are dead but never deleted; redemption must keep failing
// with TOKEN_EXPIRED, not TOKEN_NOT_FOUND, for as long as the token exists.
func (c *Codec) LiveTokens() (int, error) {
	return c.tokens.CountLive(c.now().UTC())
}

// newTokenString builds a time-seeded token: base36 timestamp plus two random
// segments, unique enough for the process lifetime without collision checks
func newTokenString(now time.Time) string {
	ts := strconv.FormatInt(now.UnixMilli(), 36)
	random := strings.ReplaceAll(uuid.New().String(), "-", "")
	return fmt.Sprintf("%s-%s-%s", ts, random[:8], random[8:16])
}
