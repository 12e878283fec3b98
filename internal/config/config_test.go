package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turbolytics/registrar/pkg/reconciler"
)

func TestNewRegistrarFromFile(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		registrar, err := NewRegistrarFromFile("../../dev/examples/registrar.yml")
		require.NoError(t, err)
		require.NoError(t, registrar.Validate())

		assert.Equal(t, "debug", registrar.Logger.Level)
		assert.Equal(t, 60, registrar.API.TimeoutSeconds)
		assert.Equal(t, 5.0, registrar.API.RateLimitPerSecond)
		assert.Equal(t, 50, registrar.Reconcile.PageSize)
		assert.Equal(t, reconciler.DefaultAssetType, registrar.Reconcile.AssetType)
		assert.Equal(t, "local", registrar.Report.Repository.Type)
		assert.Equal(t, "./dev/reports", registrar.Report.Repository.LocalConfig.Path)
		assert.True(t, registrar.Report.Parquet)
	})

	t.Run("partial config keeps defaults", func(t *testing.T) {
		registrar, err := NewRegistrarFromFile("../../dev/examples/registrar.s3.yml")
		require.NoError(t, err)
		require.NoError(t, registrar.Validate())

		assert.Equal(t, reconciler.DefaultAssetType, registrar.Reconcile.AssetType)
		assert.Equal(t, 30, registrar.API.TimeoutSeconds)
		assert.Equal(t, "registrar-reports", registrar.Report.Repository.S3Config.Bucket)
		assert.Equal(t, "kafka://localhost:9092/registrar.outcomes", registrar.Report.Kafka.URL)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewRegistrarFromFile("does-not-exist.yml")
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(r *Registrar)
	}{
		{name: "zero page size", mutate: func(r *Registrar) { r.Reconcile.PageSize = 0 }},
		{name: "negative timeout", mutate: func(r *Registrar) { r.API.TimeoutSeconds = -1 }},
		{name: "empty asset type", mutate: func(r *Registrar) { r.Reconcile.AssetType = "" }},
		{name: "bad base url", mutate: func(r *Registrar) { r.API.BaseURL = "not a url" }},
		{name: "unknown repository", mutate: func(r *Registrar) { r.Report.Repository.Type = "ftp" }},
		{name: "local without path", mutate: func(r *Registrar) { r.Report.Repository.Type = "local" }},
		{name: "s3 without bucket", mutate: func(r *Registrar) {
			r.Report.Repository.Type = "s3"
			r.Report.Repository.S3Config = &S3Config{}
		}},
		{name: "bad log level", mutate: func(r *Registrar) { r.Logger.Level = "loud" }},
	}

	require.NoError(t, Default().Validate())

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := Default()
			tc.mutate(r)
			assert.Error(t, r.Validate())
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("overrides win", func(t *testing.T) {
		v := viper.New()
		v.Set(KeyAssetType, "Repository")
		v.Set(KeyPageSize, 10)
		v.Set(KeyTimeout, 5)
		v.Set(KeyReportDir, "/tmp/reports")

		c, err := Load("../../dev/examples/registrar.yml", v)
		require.NoError(t, err)
		assert.Equal(t, "Repository", c.Reconcile.AssetType)
		assert.Equal(t, 10, c.Reconcile.PageSize)
		assert.Equal(t, 5, c.API.TimeoutSeconds)
		assert.Equal(t, "/tmp/reports", c.Report.Repository.LocalConfig.Path)
	})

	t.Run("invalid config is a setup error", func(t *testing.T) {
		v := viper.New()
		v.Set(KeyPageSize, -1)

		_, err := Load("", v)
		assert.ErrorIs(t, err, reconciler.ErrSetup)
	})

	t.Run("logger builds to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "run.log")
		l, err := Logger{Level: "info", Path: path}.Build()
		require.NoError(t, err)
		l.Info("hello")
		l.Sync()

		bs, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(bs), "hello")
	})
}
