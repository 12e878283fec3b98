package veracode

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	AuthScheme     = "VERACODE-HMAC-SHA-256"
	requestVersion = "vcode_request_version_1"
	nonceSize      = 16
)

// Credentials are a Veracode API key pair.
type Credentials struct {
	KeyID     string
	KeySecret string
}

// Signer attaches Veracode HMAC authorization headers to requests.
type Signer struct {
	creds  Credentials
	secret []byte

	now   func() time.Time
	nonce func() ([]byte, error)
}

type SignerOption func(*Signer)

func SignerWithClock(now func() time.Time) SignerOption {
	return func(s *Signer) {
		s.now = now
	}
}

func SignerWithNonce(nonce func() ([]byte, error)) SignerOption {
	return func(s *Signer) {
		s.nonce = nonce
	}
}

// NewSigner accepts keys with or without the "vera01ei-" and "vera01es-"
// style prefixes Veracode issues; anything up to the last '-' is dropped.
func NewSigner(creds Credentials, opts ...SignerOption) (*Signer, error) {
	creds = Credentials{
		KeyID:     stripKeyPrefix(creds.KeyID),
		KeySecret: stripKeyPrefix(creds.KeySecret),
	}
	if creds.KeyID == "" || creds.KeySecret == "" {
		return nil, fmt.Errorf("api key id and secret are required")
	}
	secret, err := hex.DecodeString(creds.KeySecret)
	if err != nil {
		return nil, fmt.Errorf("api key secret is not hex encoded: %w", err)
	}

	s := &Signer{
		creds:  creds,
		secret: secret,
		now:    time.Now,
		nonce:  randomNonce,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Sign sets the Authorization header on req.
func (s *Signer) Sign(req *http.Request) error {
	nonce, err := s.nonce()
	if err != nil {
		return fmt.Errorf("generating nonce: %w", err)
	}
	ts := strconv.FormatInt(s.now().UnixMilli(), 10)

	data := fmt.Sprintf("id=%s&host=%s&url=%s&method=%s",
		strings.ToLower(s.creds.KeyID),
		strings.ToLower(req.URL.Host),
		req.URL.RequestURI(),
		strings.ToUpper(req.Method),
	)

	sig := s.signature(data, ts, nonce)

	req.Header.Set("Authorization", fmt.Sprintf("%s id=%s,ts=%s,nonce=%s,sig=%s",
		AuthScheme,
		s.creds.KeyID,
		ts,
		hex.EncodeToString(nonce),
		sig,
	))
	return nil
}

func (s *Signer) signature(data, ts string, nonce []byte) string {
	keyNonce := mac(s.secret, nonce)
	keyDate := mac(keyNonce, []byte(ts))
	signingKey := mac(keyDate, []byte(requestVersion))
	return hex.EncodeToString(mac(signingKey, []byte(data)))
}

func mac(key, content []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(content)
	return h.Sum(nil)
}

func stripKeyPrefix(key string) string {
	key = strings.TrimSpace(key)
	if i := strings.LastIndex(key, "-"); i >= 0 {
		return key[i+1:]
	}
	return key
}

func randomNonce() ([]byte, error) {
	b := make([]byte, nonceSize)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
