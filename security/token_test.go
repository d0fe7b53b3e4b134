package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignMatchesHMAC(t *testing.T) {
	svc := NewTokenService("s3cret")

	token, err := svc.Sign("abc123")
	require.NoError(t, err)

	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write([]byte("abc123"))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), token)
	assert.Len(t, token, 64)
}

func TestSignIsDeterministic(t *testing.T) {
	svc := NewTokenService("s3cret")

	a, err := svc.Sign("abc123")
	require.NoError(t, err)
	b, err := svc.Sign("abc123")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other, err := NewTokenService("different").Sign("abc123")
	require.NoError(t, err)
	assert.NotEqual(t, a, other)
}

func TestVerify(t *testing.T) {
	svc := NewTokenService("s3cret")
	ids := []string{"abc123", "86bczf1oqv", "timesheet-demo", "x"}

	for _, id := range ids {
		t.Run(id, func(t *testing.T) {
			token, err := svc.Sign(id)
			require.NoError(t, err)
			assert.True(t, svc.Verify(id, token))

			// flipping any single character must fail
			for i := range token {
				mutated := []byte(token)
				if mutated[i] == '0' {
					mutated[i] = '1'
				} else {
					mutated[i] = '0'
				}
				assert.False(t, svc.Verify(id, string(mutated)), "position %d", i)
			}
		})
	}
}

func TestVerifyRejects(t *testing.T) {
	svc := NewTokenService("s3cret")
	token, err := svc.Sign("abc123")
	require.NoError(t, err)

	tests := []struct {
		name  string
		id    string
		token string
	}{
		{name: "empty token", id: "abc123", token: ""},
		{name: "empty id", id: "", token: token},
		{name: "other id", id: "abc124", token: token},
		{name: "not hex", id: "abc123", token: "zz" + token[2:]},
		{name: "truncated", id: "abc123", token: token[:63]},
		{name: "uppercase", id: "abc123", token: strings.ToUpper(token)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, svc.Verify(tt.id, tt.token))
		})
	}
}

func TestSignedURL(t *testing.T) {
	svc := NewTokenService("s3cret")
	token, err := svc.Sign("abc123")
	require.NoError(t, err)

	link, err := svc.SignedURL("https://autolog.dev/", "abc123")
	require.NoError(t, err)
	assert.Equal(t, "https://autolog.dev/abc123?signed_token="+token, link)
}
