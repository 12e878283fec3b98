package reconciler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultPageSize = 100

// Step names the remote operation about to be attempted for a candidate.
type Step string

const (
	StepCreate Step = "create"
	StepLink   Step = "link"
)

// Catalog is the asset catalog service.
type Catalog interface {
	FetchPage(ctx context.Context, pageNumber int, pageSize int) (Page, error)
}

// Registry is the application registry service.
type Registry interface {
	CreateApplication(ctx context.Context, name string) (string, error)
	LinkAsset(ctx context.Context, assetKey string, applicationID string) error
}

// Recorder receives progress from the engine as it happens. For each
// candidate the calls arrive in order: RecordAttempt(StepCreate),
// RecordCreated on success, RecordAttempt(StepLink), RecordOutcome.
type Recorder interface {
	RecordAttempt(asset Asset, step Step)
	RecordCreated(asset Asset, applicationID string)
	RecordOutcome(outcome Outcome)
}

type NoopRecorder struct{}

func (NoopRecorder) RecordAttempt(Asset, Step)   {}
func (NoopRecorder) RecordCreated(Asset, string) {}
func (NoopRecorder) RecordOutcome(Outcome)       {}

// Engine ensures every catalog asset of one type has a linked application.
type Engine struct {
	Catalog   Catalog
	Registry  Registry
	Recorder  Recorder
	AssetType string
	PageSize  int
	// MaxPages caps how many catalog pages are read. 0 reads all of them.
	MaxPages int

	ID string

	logger *zap.Logger
}

type Option func(*Engine)

func WithCatalog(catalog Catalog) Option {
	return func(e *Engine) {
		e.Catalog = catalog
	}
}

func WithRegistry(registry Registry) Option {
	return func(e *Engine) {
		e.Registry = registry
	}
}

func WithRecorder(recorder Recorder) Option {
	return func(e *Engine) {
		e.Recorder = recorder
	}
}

func WithAssetType(assetType string) Option {
	return func(e *Engine) {
		e.AssetType = assetType
	}
}

func WithPageSize(size int) Option {
	return func(e *Engine) {
		e.PageSize = size
	}
}

func WithMaxPages(n int) Option {
	return func(e *Engine) {
		e.MaxPages = n
	}
}

func WithID(id string) Option {
	return func(e *Engine) {
		e.ID = id
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		Recorder:  NoopRecorder{},
		AssetType: DefaultAssetType,
		PageSize:  DefaultPageSize,
		ID:        uuid.NewString(),
		logger:    zap.NewNop(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.Catalog == nil {
		return nil, &SetupError{Message: "catalog is required"}
	}
	if e.Registry == nil {
		return nil, &SetupError{Message: "registry is required"}
	}
	if e.PageSize <= 0 {
		return nil, &SetupError{Message: "page size must be positive"}
	}

	return e, nil
}

// Run performs one reconciliation pass.
//
// A failure to fetch the catalog is returned as a *QueryError and nothing is
// created. Failures for individual candidates are recorded in the result and
// never returned. The returned Result is non-nil even when err is not.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	res := &Result{
		ID:        e.ID,
		AssetType: e.AssetType,
		StartedAt: time.Now(),
	}
	defer func() {
		res.EndedAt = time.Now()
	}()

	e.logger.Info("Starting reconciliation",
		zap.String("run_id", e.ID),
		zap.String("asset_type", e.AssetType),
		zap.Int("page_size", e.PageSize),
		zap.Int("max_pages", e.MaxPages),
	)

	assets, err := FetchAssets(ctx, e.Catalog, e.PageSize, e.MaxPages)
	if err != nil {
		e.logger.Error("Could not establish candidate set", zap.Error(err))
		return res, err
	}
	res.Fetched = len(assets)

	candidates := Filter(assets, e.AssetType)
	res.Candidates = len(candidates)
	res.Items = make([]Outcome, 0, len(candidates))

	e.logger.Info("Fetched assets",
		zap.Int("fetched", res.Fetched),
		zap.Int("candidates", res.Candidates),
	)

	for _, asset := range candidates {
		if err := ctx.Err(); err != nil {
			e.logger.Warn("Context cancelled, stopping reconciliation",
				zap.Int("processed", len(res.Items)),
				zap.Int("remaining", res.Candidates-len(res.Items)),
			)
			return res, err
		}

		// Cancellation is honored between candidates only. A create is
		// always followed by its link.
		outcome := e.process(context.WithoutCancel(ctx), asset)
		res.Items = append(res.Items, outcome)
		res.Outcome = res.Outcome.Add(outcome)
		e.Recorder.RecordOutcome(outcome)
	}

	res.Completed = true

	e.logger.Info("Reconciliation completed",
		zap.String("run_id", e.ID),
		zap.Int("created", res.Outcome.Created),
		zap.Int("linked", res.Outcome.Linked),
	)

	return res, nil
}

func (e *Engine) process(ctx context.Context, asset Asset) Outcome {
	start := time.Now()
	l := e.logger.With(
		zap.String("name", asset.Name),
		zap.String("asset_id", asset.ID),
		zap.String("link_key", asset.LinkKey()),
	)
	fsm := NewFSM(FSMWithLogger(l.Named("fsm")))

	l.Info("Processing asset")

	fsm.Transition(StateCreating)
	e.Recorder.RecordAttempt(asset, StepCreate)

	appID, err := e.Registry.CreateApplication(ctx, asset.Name)
	if err != nil {
		var ce *CreateError
		if !errors.As(err, &ce) {
			err = &CreateError{Name: asset.Name, Err: err}
		}
		fsm.Transition(StateCreateFailed)
		l.Error("Failed to create application",
			zap.Bool("malformed_response", errors.Is(err, ErrMalformedResponse)),
			zap.Error(err),
		)
		return e.outcome(fsm, asset, "", err, start)
	}

	fsm.Transition(StateCreated)
	l.Info("Application created", zap.String("application_id", appID))
	e.Recorder.RecordCreated(asset, appID)

	fsm.Transition(StateLinking)
	e.Recorder.RecordAttempt(asset, StepLink)

	if err := e.Registry.LinkAsset(ctx, asset.LinkKey(), appID); err != nil {
		var le *LinkError
		if !errors.As(err, &le) {
			err = &LinkError{AssetKey: asset.LinkKey(), ApplicationID: appID, Err: err}
		}
		fsm.Transition(StateLinkFailed)
		l.Error("Failed to link asset",
			zap.String("application_id", appID),
			zap.Error(err),
		)
		return e.outcome(fsm, asset, appID, err, start)
	}

	fsm.Transition(StateLinked)
	l.Info("Asset linked", zap.String("application_id", appID))

	return e.outcome(fsm, asset, appID, nil, start)
}

func (e *Engine) outcome(fsm *FSM, asset Asset, appID string, err error, start time.Time) Outcome {
	status, _ := fsm.Status()
	return Outcome{
		Asset:         asset,
		Status:        status,
		ApplicationID: appID,
		Err:           err,
		Duration:      time.Since(start),
	}
}

// Filter keeps the assets whose type label matches assetType exactly.
func Filter(assets []Asset, assetType string) []Asset {
	filtered := make([]Asset, 0, len(assets))
	for _, a := range assets {
		if a.AssetTypeLabel == assetType {
			filtered = append(filtered, a)
		}
	}
	return filtered
}

// FetchAssets reads catalog pages starting at page 1 until the catalog
// reports no more pages or maxPages is reached. maxPages of 0 means no cap.
// A page starting with the same asset as the page before it ends the scan
// and is dropped, so a service ignoring pageNumber cannot loop forever.
func FetchAssets(ctx context.Context, catalog Catalog, pageSize int, maxPages int) ([]Asset, error) {
	var assets []Asset
	var prevFirst string
	for page := 1; maxPages == 0 || page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, &QueryError{Page: page, Err: err}
		}

		p, err := catalog.FetchPage(ctx, page, pageSize)
		if err != nil {
			var qe *QueryError
			if !errors.As(err, &qe) {
				err = &QueryError{Page: page, Err: err}
			}
			return nil, err
		}

		if len(p.Assets) > 0 {
			if page > 1 && p.Assets[0].ID == prevFirst {
				break
			}
			prevFirst = p.Assets[0].ID
		}

		assets = append(assets, p.Assets...)
		if !p.HasMore {
			break
		}
	}
	return assets, nil
}
