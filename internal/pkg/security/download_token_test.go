package security

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadTokenRoundtrip(t *testing.T) {
	token, err := GenerateDownloadToken(42, 7, time.Minute, "secret")
	require.NoError(t, err)

	claims, err := VerifyDownloadToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.FileID)
	assert.Equal(t, uint(7), claims.CompanyID)
}

func TestDownloadTokenRejectsWrongSecret(t *testing.T) {
	token, err := GenerateDownloadToken(42, 7, time.Minute, "secret")
	require.NoError(t, err)

	_, err = VerifyDownloadToken(token, "other")
	assert.Error(t, err)
}

func TestDownloadTokenRejectsTampering(t *testing.T) {
	token, err := GenerateDownloadToken(42, 7, time.Minute, "secret")
	require.NoError(t, err)

	parts := strings.SplitN(token, ".", 2)
	tampered := parts[0] + "x." + parts[1]

	_, err = VerifyDownloadToken(tampered, "secret")
	assert.Error(t, err)
}

func TestDownloadTokenExpires(t *testing.T) {
	token, err := GenerateDownloadToken(42, 7, -time.Minute, "secret")
	require.NoError(t, err)

	_, err = VerifyDownloadToken(token, "secret")
	assert.EqualError(t, err, "token expired")
}

func TestDownloadTokenRequiresSecret(t *testing.T) {
	_, err := GenerateDownloadToken(42, 7, time.Minute, "")
	assert.Error(t, err)

	_, err = VerifyDownloadToken("a.b", "")
	assert.Error(t, err)
}
