package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/turbolytics/registrar/internal/veracode"
	"github.com/turbolytics/registrar/pkg/reconciler"
)

const (
	EnvProfile      = "VERACODE_API_PROFILE"
	EnvKeyID        = "VERACODE_API_KEY_ID"
	EnvKeySecret    = "VERACODE_API_KEY_SECRET"
	DefaultProfile  = "default"
	keyIDField      = "veracode_api_key_id"
	keySecretField  = "veracode_api_key_secret"
	credentialsFile = ".veracode/credentials"
)

// CredentialsHelp tells an operator how to fix a missing or broken
// credentials file.
const CredentialsHelp = `Make sure you have configured your Veracode API credentials in ~/.veracode/credentials
To generate API credentials, go to: https://web.analysiscenter.veracode.com/login/#APICredentialsGenerator
Format:
[default]
veracode_api_key_id = YOUR_API_KEY_ID
veracode_api_key_secret = YOUR_API_KEY_SECRET`

// DefaultCredentialsPath is ~/.veracode/credentials.
func DefaultCredentialsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, credentialsFile), nil
}

// LoadCredentials resolves the API key pair. The environment variables take
// precedence over the credentials file. An empty path means the default
// location and an empty profile means $VERACODE_API_PROFILE or "default".
func LoadCredentials(c Credentials) (veracode.Credentials, error) {
	if id, secret := os.Getenv(EnvKeyID), os.Getenv(EnvKeySecret); id != "" && secret != "" {
		return checkCredentials(veracode.Credentials{KeyID: id, KeySecret: secret}, "environment")
	}

	path := c.Path
	if path == "" {
		var err error
		path, err = DefaultCredentialsPath()
		if err != nil {
			return veracode.Credentials{}, &reconciler.SetupError{Message: "locating credentials file", Err: err}
		}
	}

	profile := c.Profile
	if profile == "" {
		profile = os.Getenv(EnvProfile)
	}
	if profile == "" {
		profile = DefaultProfile
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("ini")
	if err := v.ReadInConfig(); err != nil {
		return veracode.Credentials{}, &reconciler.SetupError{
			Message: fmt.Sprintf("reading credentials file %s", path),
			Err:     err,
		}
	}

	section := strings.ToLower(profile)
	creds := veracode.Credentials{
		KeyID:     strings.TrimSpace(v.GetString(section + "." + keyIDField)),
		KeySecret: strings.TrimSpace(v.GetString(section + "." + keySecretField)),
	}
	return checkCredentials(creds, fmt.Sprintf("profile %q in %s", profile, path))
}

func checkCredentials(creds veracode.Credentials, source string) (veracode.Credentials, error) {
	if creds.KeyID == "" || creds.KeySecret == "" {
		return veracode.Credentials{}, &reconciler.SetupError{
			Message: fmt.Sprintf("%s and %s must be set in %s", keyIDField, keySecretField, source),
		}
	}
	if _, err := veracode.NewSigner(creds); err != nil {
		return veracode.Credentials{}, &reconciler.SetupError{
			Message: fmt.Sprintf("invalid credentials in %s", source),
			Err:     err,
		}
	}
	return creds, nil
}
