package veracode

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/turbolytics/registrar/pkg/reconciler"
)

const (
	applicationsPath = "/v1/applications"
	assetsPath       = "/v1/assets"

	DefaultApplicationValue = "UNKNOWN"
)

// IDExtractor looks for an application identifier in a decoded response.
type IDExtractor func(body map[string]any) (string, bool)

// FieldExtractor reads the identifier at path, e.g. ("application", "id").
func FieldExtractor(path ...string) IDExtractor {
	return func(body map[string]any) (string, bool) {
		var cur any = body
		for _, key := range path {
			m, ok := cur.(map[string]any)
			if !ok {
				return "", false
			}
			cur, ok = m[key]
			if !ok {
				return "", false
			}
		}
		switch v := cur.(type) {
		case string:
			return v, v != ""
		case json.Number:
			return v.String(), true
		}
		return "", false
	}
}

// DefaultIDExtractors are tried in order; the first match wins.
var DefaultIDExtractors = []IDExtractor{
	FieldExtractor("id"),
	FieldExtractor("applicationId"),
	FieldExtractor("application", "id"),
}

// ExtractApplicationID decodes body and runs extractors over it in order.
func ExtractApplicationID(body []byte, extractors []IDExtractor) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return "", &reconciler.MalformedResponseError{Body: body, Err: err}
	}

	for _, extract := range extractors {
		if id, ok := extract(m); ok {
			return id, nil
		}
	}
	return "", &reconciler.MalformedResponseError{Body: body}
}

type createApplicationRequest struct {
	Name             string `json:"name"`
	Owner            string `json:"owner"`
	ApplicationValue string `json:"applicationValue"`
}

type uriFilter struct {
	Values []string `json:"values"`
}

type assetsFilter struct {
	URIs uriFilter `json:"uris"`
}

type operand struct {
	Filter struct {
		Assets assetsFilter `json:"assets"`
	} `json:"filter"`
}

type linkAssetRequest struct {
	QueryFilter struct {
		Filter struct {
			Operator string    `json:"operator"`
			Operands []operand `json:"operands"`
		} `json:"filter"`
	} `json:"queryFilter"`
	ApplicationIDs []string `json:"applicationIds"`
}

func newLinkAssetRequest(assetKey, applicationID string) linkAssetRequest {
	var op operand
	op.Filter.Assets.URIs.Values = []string{assetKey}

	var req linkAssetRequest
	req.QueryFilter.Filter.Operator = "AND"
	req.QueryFilter.Filter.Operands = []operand{op}
	req.ApplicationIDs = []string{applicationID}
	return req
}

// Registry creates applications and links assets to them.
type Registry struct {
	caller           Caller
	owner            string
	applicationValue string
	extractors       []IDExtractor
	logger           *zap.Logger
}

type RegistryOption func(*Registry)

func RegistryWithLogger(logger *zap.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

func RegistryWithOwner(owner string) RegistryOption {
	return func(r *Registry) {
		r.owner = owner
	}
}

func RegistryWithApplicationValue(value string) RegistryOption {
	return func(r *Registry) {
		if value != "" {
			r.applicationValue = value
		}
	}
}

// RegistryWithIDExtractors replaces the identifier extraction order.
func RegistryWithIDExtractors(extractors ...IDExtractor) RegistryOption {
	return func(r *Registry) {
		r.extractors = extractors
	}
}

func NewRegistry(caller Caller, opts ...RegistryOption) *Registry {
	r := &Registry{
		caller:           caller,
		applicationValue: DefaultApplicationValue,
		extractors:       DefaultIDExtractors,
		logger:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) CreateApplication(ctx context.Context, name string) (string, error) {
	r.logger.Info("Creating application", zap.String("name", name))

	body, err := r.caller.Call(ctx, http.MethodPost, applicationsPath, createApplicationRequest{
		Name:             name,
		Owner:            r.owner,
		ApplicationValue: r.applicationValue,
	}, nil)
	if err != nil {
		return "", &reconciler.CreateError{Name: name, Err: err}
	}

	id, err := ExtractApplicationID(body, r.extractors)
	if err != nil {
		r.logger.Error("Could not extract application ID from response",
			zap.String("name", name),
			zap.ByteString("body", body),
		)
		return "", &reconciler.CreateError{Name: name, Err: err}
	}

	r.logger.Info("Application created",
		zap.String("name", name),
		zap.String("application_id", id),
	)
	return id, nil
}

func (r *Registry) LinkAsset(ctx context.Context, assetKey string, applicationID string) error {
	r.logger.Info("Linking asset",
		zap.String("asset_key", assetKey),
		zap.String("application_id", applicationID),
	)

	_, err := r.caller.Call(ctx, http.MethodPut, assetsPath,
		newLinkAssetRequest(assetKey, applicationID),
		url.Values{"action": []string{"addToApplication"}},
	)
	if err != nil {
		return &reconciler.LinkError{
			AssetKey:      assetKey,
			ApplicationID: applicationID,
			Err:           err,
		}
	}

	r.logger.Info("Asset linked",
		zap.String("asset_key", assetKey),
		zap.String("application_id", applicationID),
	)
	return nil
}
