// Package app wires configuration, credentials, logging and the API client
// into the operations exposed by the CLI.
package app

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/turbolytics/registrar/internal"
	"github.com/turbolytics/registrar/internal/archiver"
	"github.com/turbolytics/registrar/internal/config"
	"github.com/turbolytics/registrar/internal/integrations/kafka"
	"github.com/turbolytics/registrar/internal/local"
	"github.com/turbolytics/registrar/internal/parquet"
	"github.com/turbolytics/registrar/internal/s3"
	"github.com/turbolytics/registrar/internal/veracode"
	"github.com/turbolytics/registrar/pkg/reconciler"
	"github.com/turbolytics/registrar/pkg/reporter"
)

// App holds everything a reconciliation needs. Building it is the only
// place where a setup error can occur.
type App struct {
	Config *config.Registrar
	Logger *zap.Logger
	Client *veracode.Client

	out io.Writer
}

// New loads config from configPath (optional) and v, opens the run log and
// resolves credentials. Any failure is a *reconciler.SetupError.
func New(configPath string, v *viper.Viper, out io.Writer) (*App, error) {
	c, err := config.Load(configPath, v)
	if err != nil {
		return nil, err
	}

	logger, err := c.Logger.Build()
	if err != nil {
		return nil, &reconciler.SetupError{Message: "opening run log", Err: err}
	}
	l := logger.Named("registrar")

	creds, err := config.LoadCredentials(c.Credentials)
	if err != nil {
		l.Error("Credentials unavailable", zap.Error(err))
		logger.Sync()
		return nil, err
	}
	l.Info("Authentication configured", zap.String("key_id", creds.KeyID))

	client, err := config.InitializeClient(c, creds, l)
	if err != nil {
		logger.Sync()
		return nil, err
	}

	return &App{
		Config: c,
		Logger: l,
		Client: client,
		out:    out,
	}, nil
}

// Reconcile runs the engine once, prints and archives the report. The
// returned error is non-nil only for fatal conditions.
func (a *App) Reconcile(ctx context.Context) (reporter.Report, error) {
	runID := uuid.NewString()
	l := a.Logger.With(zap.String("run_id", runID))
	l.Info("Starting create and link process")

	recorders := reporter.MultiRecorder{reporter.New(a.out)}

	if a.Config.Report.Kafka.URL != "" {
		publisher, err := a.newPublisher(ctx, runID, l)
		if err != nil {
			l.Error("Kafka publisher unavailable, continuing without it", zap.Error(err))
		} else {
			defer publisher.Close(ctx)
			recorders = append(recorders, publisher)
		}
	}

	engine, err := config.InitializeEngine(a.Config, a.Client, recorders, l)
	if err != nil {
		report := reporter.Summarize(nil, err)
		reporter.Render(a.out, report)
		return report, err
	}
	engine.ID = runID

	res, runErr := engine.Run(ctx)
	report := reporter.Summarize(res, runErr)
	reporter.Render(a.out, report)

	if runErr != nil {
		l.Error("Run aborted", zap.Error(runErr))
	} else {
		l.Info("Process completed",
			zap.Int("created", report.Created),
			zap.Int("linked", report.Linked),
		)
	}

	arch, err := a.newArchiver(runID, l)
	if err != nil {
		l.Error("Report repository unavailable", zap.Error(err))
	} else if err := arch.Archive(ctx, report); err != nil {
		l.Error("Failed to archive report", zap.Error(err))
	}

	return report, runErr
}

// Candidates returns the assets a run would process, without writing
// anything to the registry.
func (a *App) Candidates(ctx context.Context) ([]reconciler.Asset, error) {
	catalog := veracode.NewCatalog(a.Client, veracode.CatalogWithLogger(a.Logger.Named("catalog")))
	assets, err := reconciler.FetchAssets(ctx, catalog, a.Config.Reconcile.PageSize, a.Config.Reconcile.MaxPages)
	if err != nil {
		return nil, err
	}
	return reconciler.Filter(assets, a.Config.Reconcile.AssetType), nil
}

func (a *App) Close() error {
	return a.Logger.Sync()
}

func (a *App) newPublisher(ctx context.Context, runID string, l *zap.Logger) (*kafka.Publisher, error) {
	u, err := url.Parse(a.Config.Report.Kafka.URL)
	if err != nil {
		return nil, err
	}
	p, err := kafka.NewPublisher(u, runID, l.Named("kafka"))
	if err != nil {
		return nil, err
	}
	if err := p.Connect(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (a *App) newArchiver(runID string, l *zap.Logger) (*archiver.Archiver, error) {
	r := a.Config.Report.Repository

	var repository internal.Repository
	switch r.Type {
	case "", "none":
		return archiver.New(), nil
	case "local":
		repository = local.New(
			r.LocalConfig.Path,
			local.WithPrefix(runID),
			local.WithLogger(l),
		)
	case "s3":
		repo, err := s3.New(
			s3.WithLogger(l),
			s3.WithRegion(r.S3Config.Region),
			s3.WithBucket(r.S3Config.Bucket),
			s3.WithEndpoint(r.S3Config.Endpoint),
			s3.WithPrefix(path.Join(r.S3Config.Prefix, runID)),
			s3.WithForcePathStyle(r.S3Config.ForcePathStyle),
		)
		if err != nil {
			return nil, err
		}
		repository = repo
	default:
		return nil, fmt.Errorf("unknown repository type: %s", r.Type)
	}

	opts := []archiver.Option{
		archiver.WithLogger(l.Named("archiver")),
		archiver.WithRepository(repository),
	}
	if a.Config.Report.Parquet {
		opts = append(opts, archiver.WithParquet(parquet.New()))
	}
	return archiver.New(opts...), nil
}
