package config

import (
	"go.uber.org/zap"

	"github.com/turbolytics/registrar/internal/veracode"
	"github.com/turbolytics/registrar/pkg/reconciler"
)

// InitializeClient builds the signed API client shared by the catalog and
// the registry.
func InitializeClient(registrar *Registrar, creds veracode.Credentials, logger *zap.Logger) (*veracode.Client, error) {
	signer, err := veracode.NewSigner(creds)
	if err != nil {
		return nil, &reconciler.SetupError{Message: "creating request signer", Err: err}
	}

	client, err := veracode.New(
		registrar.API.BaseURL,
		signer,
		veracode.WithLogger(logger.Named("http")),
		veracode.WithTimeout(registrar.API.Timeout()),
		veracode.WithRateLimit(registrar.API.RateLimitPerSecond),
	)
	if err != nil {
		return nil, &reconciler.SetupError{Message: "creating api client", Err: err}
	}
	return client, nil
}

// InitializeEngine wires the catalog and registry clients into an engine.
func InitializeEngine(registrar *Registrar, client *veracode.Client, recorder reconciler.Recorder, logger *zap.Logger) (*reconciler.Engine, error) {
	catalog := veracode.NewCatalog(client,
		veracode.CatalogWithLogger(logger.Named("catalog")),
	)
	registry := veracode.NewRegistry(client,
		veracode.RegistryWithLogger(logger.Named("registry")),
		veracode.RegistryWithOwner(registrar.Reconcile.Owner),
		veracode.RegistryWithApplicationValue(registrar.Reconcile.ApplicationValue),
	)

	return reconciler.New(
		reconciler.WithLogger(logger.Named("engine")),
		reconciler.WithCatalog(catalog),
		reconciler.WithRegistry(registry),
		reconciler.WithRecorder(recorder),
		reconciler.WithAssetType(registrar.Reconcile.AssetType),
		reconciler.WithPageSize(registrar.Reconcile.PageSize),
		reconciler.WithMaxPages(registrar.Reconcile.MaxPages),
	)
}
