package token

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TirthC27/HealthID/pkg/logger"
	"github.com/TirthC27/HealthID/pkg/storage"
	"github.com/TirthC27/HealthID/pkg/types"
)

func setupCodec() *Codec {
	return NewCodec(storage.NewMemoryStore(), 15*time.Minute, logger.New("error"))
}

func TestMint_SetsFifteenMinuteExpiry(t *testing.T) {
	codec := setupCodec()
	minted := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	codec.now = func() time.Time { return minted }

	tok, err := codec.Mint("HCID-AB12-CD34")
	require.NoError(t, err)

	assert.Equal(t, "HCID-AB12-CD34", tok.HCID)
	assert.NotEmpty(t, tok.Token)
	assert.Equal(t, minted, tok.CreatedAt)
	assert.Equal(t, minted.Add(15*time.Minute), tok.ExpiresAt)
}

func TestMint_RequiresHCID(t *testing.T) {
	codec := setupCodec()

	_, err := codec.Mint("")
	assert.True(t, types.IsErrorCode(err, types.ErrCodeInvalidInput))
}

func TestMint_TokensAreUnique(t *testing.T) {
	codec := setupCodec()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		tok, err := codec.Mint("HCID-AB12-CD34")
		require.NoError(t, err)
		assert.False(t, seen[tok.Token], "duplicate token minted")
		seen[tok.Token] = true
	}
}

func TestSerialize_RoundTrip(t *testing.T) {
	codec := setupCodec()

	tok, err := codec.Mint("HCID-AB12-CD34")
	require.NoError(t, err)

	payload, err := codec.Serialize(tok)
	require.NoError(t, err)

	input, err := codec.Deserialize(payload)
	require.NoError(t, err)
	assert.Equal(t, KindPayload, input.Kind)
	assert.Equal(t, tok.Token, input.Token)
	assert.Equal(t, tok.HCID, input.HCID)
}

func TestSerialize_CarriesExpiry(t *testing.T) {
	codec := setupCodec()

	tok, err := codec.Mint("HCID-AB12-CD34")
	require.NoError(t, err)

	payload, err := codec.Serialize(tok)
	require.NoError(t, err)

	var decoded types.QRPayload
	require.NoError(t, json.Unmarshal([]byte(payload), &decoded))
	assert.True(t, decoded.ExpiresAt.Equal(tok.ExpiresAt))
}

func TestDeserialize_BareToken(t *testing.T) {
	codec := setupCodec()

	input, err := codec.Deserialize("m5k2x1-a1b2c3d4-e5f6a7b8")
	require.NoError(t, err)
	assert.Equal(t, KindToken, input.Kind)
	assert.Equal(t, "m5k2x1-a1b2c3d4-e5f6a7b8", input.Token)
}

func TestDeserialize_BareHCID(t *testing.T) {
	codec := setupCodec()

	input, err := codec.Deserialize("HCID-ZZ99-ZZ99")
	require.NoError(t, err)
	assert.Equal(t, KindHCID, input.Kind)
	assert.Equal(t, "HCID-ZZ99-ZZ99", input.HCID)
}

func TestDeserialize_EmptyInput(t *testing.T) {
	codec := setupCodec()

	_, err := codec.Deserialize("   ")
	assert.True(t, types.IsErrorCode(err, types.ErrCodeMalformedPayload))
}

func TestDeserialize_InvalidJSON(t *testing.T) {
	codec := setupCodec()

	_, err := codec.Deserialize(`{"token": `)
	assert.True(t, types.IsErrorCode(err, types.ErrCodeMalformedPayload))
}

func TestDeserialize_JSONWithoutTokenOrHCID(t *testing.T) {
	codec := setupCodec()

	_, err := codec.Deserialize(`{"foo": "bar"}`)
	assert.True(t, types.IsErrorCode(err, types.ErrCodeMalformedPayload))
}

func TestRedeem_FreshToken(t *testing.T) {
	codec := setupCodec()

	tok, err := codec.Mint("HCID-AB12-CD34")
	require.NoError(t, err)

	hcid, err := codec.Redeem(tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "HCID-AB12-CD34", hcid)
}

func TestRedeem_FullPayload(t *testing.T) {
	codec := setupCodec()

	tok, err := codec.Mint("HCID-AB12-CD34")
	require.NoError(t, err)

	payload, err := codec.Serialize(tok)
	require.NoError(t, err)

	hcid, err := codec.Redeem(payload)
	require.NoError(t, err)
	assert.Equal(t, "HCID-AB12-CD34", hcid)
}

func TestRedeem_DirectHCIDBypassesLookup(t *testing.T) {
	codec := setupCodec()

	// No token was ever minted for this HCID
	hcid, err := codec.Redeem("HCID-ZZ99-ZZ99")
	require.NoError(t, err)
	assert.Equal(t, "HCID-ZZ99-ZZ99", hcid)
}

func TestRedeem_UnknownToken(t *testing.T) {
	codec := setupCodec()

	_, err := codec.Redeem("never-minted-token")
	assert.True(t, types.IsErrorCode(err, types.ErrCodeTokenNotFound))
}

func TestRedeem_ExpiredToken(t *testing.T) {
	codec := setupCodec()
	minted := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	codec.now = func() time.Time { return minted }

	tok, err := codec.Mint("HCID-AB12-CD34")
	require.NoError(t, err)

	// Advance the clock 16 minutes
	codec.now = func() time.Time { return minted.Add(16 * time.Minute) }

	_, err = codec.Redeem(tok.Token)
	assert.True(t, types.IsErrorCode(err, types.ErrCodeTokenExpired))
}

func TestRedeem_ExactExpiryBoundaryFails(t *testing.T) {
	codec := setupCodec()
	minted := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	codec.now = func() time.Time { return minted }

	tok, err := codec.Mint("HCID-AB12-CD34")
	require.NoError(t, err)

	codec.now = func() time.Time { return minted.Add(15 * time.Minute) }

	_, err = codec.Redeem(tok.Token)
	assert.True(t, types.IsErrorCode(err, types.ErrCodeTokenExpired))
}

func TestRedeem_IsNotSingleUse(t *testing.T) {
	codec := setupCodec()

	tok, err := codec.Mint("HCID-AB12-CD34")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		hcid, err := codec.Redeem(tok.Token)
		require.NoError(t, err)
		assert.Equal(t, "HCID-AB12-CD34", hcid)
	}
}

func TestMint_MultipleTokensStayIndependentlyValid(t *testing.T) {
	codec := setupCodec()

	first, err := codec.Mint("HCID-AB12-CD34")
	require.NoError(t, err)
	second, err := codec.Mint("HCID-AB12-CD34")
	require.NoError(t, err)

	// Minting a new token does not supersede the previous one
	hcid, err := codec.Redeem(first.Token)
	require.NoError(t, err)
	assert.Equal(t, "HCID-AB12-CD34", hcid)

	hcid, err = codec.Redeem(second.Token)
	require.NoError(t, err)
	assert.Equal(t, "HCID-AB12-CD34", hcid)
}

func TestRedeem_ExpiredTokenStaysExpired(t *testing.T) {
	codec := setupCodec()
	minted := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	codec.now = func() time.Time { return minted }

	tok, err := codec.Mint("HCID-AB12-CD34")
	require.NoError(t, err)

	// A dead token is never deleted: redemption must keep failing with
	// TOKEN_EXPIRED no matter how much time passes, so the scanner can tell
	// a stale code apart from one that was never minted
	for _, elapsed := range []time.Duration{16 * time.Minute, 24 * time.Hour, 30 * 24 * time.Hour} {
		codec.now = func() time.Time { return minted.Add(elapsed) }

		_, err := codec.Redeem(tok.Token)
		assert.True(t, types.IsErrorCode(err, types.ErrCodeTokenExpired))
		assert.False(t, types.IsErrorCode(err, types.ErrCodeTokenNotFound))
	}

	stored, err := codec.tokens.GetByToken(tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "HCID-AB12-CD34", stored.HCID)
}

func TestLiveTokens(t *testing.T) {
	codec := setupCodec()
	minted := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	codec.now = func() time.Time { return minted }

	_, err := codec.Mint("HCID-AB12-CD34")
	require.NoError(t, err)

	codec.now = func() time.Time { return minted.Add(20 * time.Minute) }
	fresh, err := codec.Mint("HCID-AB12-CD34")
	require.NoError(t, err)

	live, err := codec.LiveTokens()
	require.NoError(t, err)
	assert.Equal(t, 1, live)

	// The dead token was counted out, not removed
	_, err = codec.Redeem(fresh.Token)
	assert.NoError(t, err)
}
