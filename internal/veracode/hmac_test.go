package veracode

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKeyID     = "3ddaeeb10ca690df3fee5e3bd1c329fa"
	testKeySecret = "0123456789abcdef0123456789abcdef"
)

func fixedSigner(t *testing.T) *Signer {
	t.Helper()
	s, err := NewSigner(
		Credentials{KeyID: testKeyID, KeySecret: testKeySecret},
		SignerWithClock(func() time.Time { return time.UnixMilli(1700000000000) }),
		SignerWithNonce(func() ([]byte, error) { return []byte("0123456789abcdef"), nil }),
	)
	require.NoError(t, err)
	return s
}

func TestNewSigner(t *testing.T) {
	t.Run("missing fields", func(t *testing.T) {
		_, err := NewSigner(Credentials{KeyID: "id"})
		assert.Error(t, err)
	})

	t.Run("secret must be hex", func(t *testing.T) {
		_, err := NewSigner(Credentials{KeyID: "id", KeySecret: "zz"})
		assert.Error(t, err)
	})

	t.Run("prefixed credentials", func(t *testing.T) {
		clock := SignerWithClock(func() time.Time { return time.UnixMilli(1700000000000) })
		nonce := SignerWithNonce(func() ([]byte, error) { return []byte("0123456789abcdef"), nil })

		prefixed, err := NewSigner(Credentials{
			KeyID:     "vera01ei-" + testKeyID,
			KeySecret: "vera01es-" + testKeySecret,
		}, clock, nonce)
		require.NoError(t, err)

		want, _ := http.NewRequest(http.MethodGet, "https://api.veracode.com/a", nil)
		got, _ := http.NewRequest(http.MethodGet, "https://api.veracode.com/a", nil)
		require.NoError(t, fixedSigner(t).Sign(want))
		require.NoError(t, prefixed.Sign(got))

		assert.Equal(t, want.Header.Get("Authorization"), got.Header.Get("Authorization"))
		assert.Contains(t, got.Header.Get("Authorization"), "id="+testKeyID+",")
	})
}

func TestSignerSign(t *testing.T) {
	req, err := http.NewRequest(http.MethodPut, "https://api.veracode.com/risk-manager/api-server/v1/assets?action=addToApplication", nil)
	require.NoError(t, err)

	require.NoError(t, fixedSigner(t).Sign(req))

	header := req.Header.Get("Authorization")
	require.True(t, strings.HasPrefix(header, AuthScheme+" "))

	fields := map[string]string{}
	for _, kv := range strings.Split(strings.TrimPrefix(header, AuthScheme+" "), ",") {
		parts := strings.SplitN(kv, "=", 2)
		require.Len(t, parts, 2)
		fields[parts[0]] = parts[1]
	}

	assert.Equal(t, testKeyID, fields["id"])
	assert.Equal(t, "1700000000000", fields["ts"])
	assert.Equal(t, hex.EncodeToString([]byte("0123456789abcdef")), fields["nonce"])

	step := func(key, data []byte) []byte {
		h := hmac.New(sha256.New, key)
		h.Write(data)
		return h.Sum(nil)
	}
	secret, _ := hex.DecodeString(testKeySecret)
	key := step(step(step(secret, []byte("0123456789abcdef")), []byte("1700000000000")), []byte("vcode_request_version_1"))
	data := "id=" + testKeyID + "&host=api.veracode.com&url=/risk-manager/api-server/v1/assets?action=addToApplication&method=PUT"
	assert.Equal(t, hex.EncodeToString(step(key, []byte(data))), fields["sig"])
}

func TestSignerSignatureDependsOnRequest(t *testing.T) {
	s := fixedSigner(t)

	get, _ := http.NewRequest(http.MethodGet, "https://api.veracode.com/a", nil)
	post, _ := http.NewRequest(http.MethodPost, "https://api.veracode.com/a", nil)
	require.NoError(t, s.Sign(get))
	require.NoError(t, s.Sign(post))

	assert.NotEqual(t, get.Header.Get("Authorization"), post.Header.Get("Authorization"))
}
