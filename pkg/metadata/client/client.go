package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"strconv"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/openmetalab/metasync/pkg/metadata/errors"
	"github.com/openmetalab/metasync/pkg/metadata/types"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type MetadataClient interface {
	Attributes(ctx context.Context) ([]types.Attribute, error)
	Classes(ctx context.Context) ([]types.Set, error)
	LinkTypesForClasses(ctx context.Context, classIDs []int64) ([]types.LinkType, error)
	TruncateClass(ctx context.Context, classID int64) (*types.TruncateResult, error)
}

func Debug(enabled string) func(*mdClient) {
	return func(c *mdClient) {
		c.debug = (enabled == "true")
	}
}

func Token(token string) func(*mdClient) {
	return func(c *mdClient) {
		c.token = token
	}
}

func NewMetadataClient(origin string, options ...func(*mdClient)) MetadataClient {
	c := &mdClient{
		baseURL: strings.TrimSuffix(origin, "/"),
		debug:   false,
	}

	for _, option := range options {
		option(c)
	}

	return c
}

const (
	TraceAttributeClassID string = "class-id"
	TraceAttributeOrigin  string = "origin"

	// the batch endpoint caps the number of ids that can be joined into a
	// single request path
	linkTypeBatchSize int = 50
)

var tracer = otel.Tracer("metasync/metadata-client")

type mdClient struct {
	baseURL string
	token   string
	debug   bool
}

func (c mdClient) Attributes(ctx context.Context) ([]types.Attribute, error) {
	var err error

	ctx, span := tracer.Start(ctx, "list-attributes",
		trace.WithAttributes(attribute.String(TraceAttributeOrigin, c.baseURL)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	response, responseBody, err := c.callMetadataAPI(
		ctx, http.MethodGet, c.baseURL+"/api/v1/metadata/attribute/list", nil,
	)

	if err != nil {
		return nil, err
	}

	if response.StatusCode != http.StatusOK {
		err = errors.NewErrorFromResponse(response.StatusCode, responseBody)
		return nil, err
	}

	attributes := []types.Attribute{}
	err = json.Unmarshal(responseBody, &attributes)
	if err != nil {
		err = fmt.Errorf("failed to unmarshal attribute list: %s (%w)", err.Error(), errors.ErrBadResponse)
		return nil, err
	}

	return attributes, nil
}

func (c mdClient) Classes(ctx context.Context) ([]types.Set, error) {
	var err error

	ctx, span := tracer.Start(ctx, "list-classes",
		trace.WithAttributes(attribute.String(TraceAttributeOrigin, c.baseURL)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	response, responseBody, err := c.callMetadataAPI(
		ctx, http.MethodGet, c.baseURL+"/api/v1/metadata/class/list", nil,
	)

	if err != nil {
		return nil, err
	}

	if response.StatusCode != http.StatusOK {
		err = errors.NewErrorFromResponse(response.StatusCode, responseBody)
		return nil, err
	}

	sets := []types.Set{}
	err = json.Unmarshal(responseBody, &sets)
	if err != nil {
		err = fmt.Errorf("failed to unmarshal class list: %s (%w)", err.Error(), errors.ErrBadResponse)
		return nil, err
	}

	return sets, nil
}

// LinkTypesForClasses fetches link types for the given class ids in batches
// of up to 50 ids per request, issued sequentially. A failing batch is logged
// and contributes zero items; it never aborts the remaining batches.
func (c mdClient) LinkTypesForClasses(ctx context.Context, classIDs []int64) ([]types.LinkType, error) {
	var err error

	ctx, span := tracer.Start(ctx, "list-link-types",
		trace.WithAttributes(attribute.String(TraceAttributeOrigin, c.baseURL)),
		trace.WithAttributes(attribute.Int("class-count", len(classIDs))),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	log := logging.GetFromContext(ctx)

	linkTypes := make([]types.LinkType, 0, len(classIDs))

	for start := 0; start < len(classIDs); start += linkTypeBatchSize {
		end := start + linkTypeBatchSize
		if end > len(classIDs) {
			end = len(classIDs)
		}

		batch, batchErr := c.linkTypeBatch(ctx, classIDs[start:end])
		if batchErr != nil {
			log.Error("link type batch failed", "offset", start, "count", end-start, "err", batchErr.Error())
			continue
		}

		linkTypes = append(linkTypes, batch...)
	}

	return linkTypes, nil
}

func (c mdClient) linkTypeBatch(ctx context.Context, classIDs []int64) ([]types.LinkType, error) {
	ids := make([]string, 0, len(classIDs))
	for _, id := range classIDs {
		ids = append(ids, strconv.FormatInt(id, 10))
	}

	response, responseBody, err := c.callMetadataAPI(
		ctx, http.MethodGet, c.baseURL+"/api/v1/metadata/linktype/batch/class/"+strings.Join(ids, ","), nil,
	)

	if err != nil {
		return nil, err
	}

	// a not found here is taken to mean that the combined endpoint is not
	// available, so we degrade to one request per class id
	if response.StatusCode == http.StatusNotFound {
		return c.linkTypesOneByOne(ctx, classIDs), nil
	}

	if response.StatusCode != http.StatusOK {
		return nil, errors.NewErrorFromResponse(response.StatusCode, responseBody)
	}

	linkTypes := []types.LinkType{}
	err = json.Unmarshal(responseBody, &linkTypes)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal link type list: %s (%w)", err.Error(), errors.ErrBadResponse)
	}

	return linkTypes, nil
}

func (c mdClient) linkTypesOneByOne(ctx context.Context, classIDs []int64) []types.LinkType {
	log := logging.GetFromContext(ctx)

	linkTypes := make([]types.LinkType, 0, len(classIDs))

	for _, id := range classIDs {
		response, responseBody, err := c.callMetadataAPI(
			ctx, http.MethodGet, c.baseURL+"/api/v1/metadata/linktype/class/"+strconv.FormatInt(id, 10), nil,
		)

		if err == nil && response.StatusCode != http.StatusOK {
			err = errors.NewErrorFromResponse(response.StatusCode, responseBody)
		}

		if err != nil {
			log.Error("failed to fetch link types for class", "class_id", id, "err", err.Error())
			continue
		}

		batch := []types.LinkType{}
		err = json.Unmarshal(responseBody, &batch)
		if err != nil {
			log.Error("failed to unmarshal link types for class", "class_id", id, "err", err.Error())
			continue
		}

		linkTypes = append(linkTypes, batch...)
	}

	return linkTypes
}

func (c mdClient) TruncateClass(ctx context.Context, classID int64) (*types.TruncateResult, error) {
	var err error

	ctx, span := tracer.Start(ctx, "truncate-class",
		trace.WithAttributes(attribute.String(TraceAttributeOrigin, c.baseURL)),
		trace.WithAttributes(attribute.Int64(TraceAttributeClassID, classID)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	response, responseBody, err := c.callMetadataAPI(
		ctx, http.MethodPost, c.baseURL+"/api/v1/metadata/class/truncate/"+strconv.FormatInt(classID, 10), nil,
	)

	if err != nil {
		return nil, err
	}

	if response.StatusCode >= http.StatusBadRequest {
		err = errors.NewErrorFromResponse(response.StatusCode, responseBody)
		return nil, err
	}

	// some successful truncations come back with an empty body, which counts
	// as an implicit success
	if len(responseBody) == 0 {
		return &types.TruncateResult{Success: true}, nil
	}

	result := &types.TruncateResult{}
	err = json.Unmarshal(responseBody, result)
	if err != nil {
		err = fmt.Errorf("failed to unmarshal truncate result: %s (%w)", err.Error(), errors.ErrBadResponse)
		return nil, err
	}

	return result, nil
}

func (c mdClient) callMetadataAPI(ctx context.Context, method, endpoint string, body io.Reader) (*http.Response, []byte, error) {
	httpClient := http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %s (%w)", err.Error(), errors.ErrInternal)
	}

	req.Header.Add("Accept", "application/json")
	if c.token != "" {
		req.Header.Add("Authorization", "Bearer "+c.token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to send request: %s (%w)", err.Error(), errors.ErrRequest)
	}

	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %s (%w)", err.Error(), errors.ErrBadResponse)
	}

	if c.debug && resp.StatusCode >= http.StatusBadRequest && resp.StatusCode != http.StatusNotFound {
		reqbytes, _ := httputil.DumpRequest(req, false)
		respbytes, _ := httputil.DumpResponse(resp, false)

		log := logging.GetFromContext(ctx)
		log.Error("request failed", "request", string(reqbytes), "response", string(respbytes))
	}

	return resp, respBody, nil
}
