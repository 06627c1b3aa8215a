package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/diwise/wikibase-rdf-dumper/pkg/wikibase"
	"github.com/diwise/wikibase-rdf-dumper/pkg/wikibase/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// WikibaseClient reads entities from a remote Wikibase through Special:EntityData
// and the wbgetentities api module.
type WikibaseClient interface {
	GetEntityRevision(ctx context.Context, id wikibase.EntityID, mode wikibase.CacheMode) (*wikibase.EntityRevision, error)
	GetEntityRevisions(ctx context.Context, ids []wikibase.EntityID) (map[wikibase.EntityID]*wikibase.EntityRevision, error)
	GetPropertyDatatypes(ctx context.Context) (map[wikibase.EntityID]string, error)
}

func Debug(enabled string) func(*wbClient) {
	return func(c *wbClient) {
		c.debug = (enabled == "true")
	}
}

func UserAgent(agent string) func(*wbClient) {
	return func(c *wbClient) {
		c.userAgent = agent
	}
}

// BatchSize caps the number of ids per wbgetentities call. The api accepts at most 50.
func BatchSize(size int) func(*wbClient) {
	return func(c *wbClient) {
		if size > 0 && size <= 50 {
			c.batchSize = size
		}
	}
}

// PropertyNamespace is the namespace number holding property pages.
func PropertyNamespace(ns int) func(*wbClient) {
	return func(c *wbClient) {
		c.propertyNamespace = ns
	}
}

// NewWikibaseClient expects the root url of the wiki, e.g. https://www.wikidata.org
func NewWikibaseClient(baseURL string, options ...func(*wbClient)) WikibaseClient {
	c := &wbClient{
		baseURL:           strings.TrimSuffix(baseURL, "/"),
		userAgent:         "wikibase-rdf-dumper",
		batchSize:         50,
		propertyNamespace: 120,
		httpClient: http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}

	for _, option := range options {
		option(c)
	}

	return c
}

const (
	TraceAttributeEntityID string = "entity-id"
	TraceAttributeCount    string = "count"
)

var tracer = otel.Tracer("wikibase-client")

type wbClient struct {
	baseURL           string
	userAgent         string
	batchSize         int
	propertyNamespace int
	debug             bool

	httpClient http.Client
}

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

type entitiesResponse struct {
	Entities map[string]json.RawMessage `json:"entities"`
	Error    *apiError                  `json:"error"`
}

type entityHeader struct {
	ID        string  `json:"id"`
	Missing   *string `json:"missing"`
	LastRevID int64   `json:"lastrevid"`
	Redirects *struct {
		From string `json:"from"`
		To   string `json:"to"`
	} `json:"redirects"`
}

func (c *wbClient) GetEntityRevision(ctx context.Context, id wikibase.EntityID, mode wikibase.CacheMode) (*wikibase.EntityRevision, error) {
	var err error

	ctx, span := tracer.Start(ctx, "get-entity-revision",
		trace.WithAttributes(attribute.String(TraceAttributeEntityID, id.String())),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	headers := map[string][]string{}
	if mode != wikibase.AllowStale {
		headers["Cache-Control"] = []string{"no-cache"}
	}

	response, responseBody, err := c.callAPI(
		ctx, c.baseURL+"/wiki/Special:EntityData/"+url.PathEscape(id.String())+".json", headers,
	)
	if err != nil {
		return nil, err
	}

	if response.StatusCode != http.StatusOK {
		err = errors.NewErrorFromAPIResponse(response.StatusCode, id.String(), responseBody)
		return nil, err
	}

	er := entitiesResponse{}
	if err = json.Unmarshal(responseBody, &er); err != nil {
		err = errors.NewRevisionLookupError("failed to unmarshal entity data", err)
		return nil, err
	}

	for key, raw := range er.Entities {
		var rev *wikibase.EntityRevision
		rev, err = decodeRevision(key, raw)
		if err != nil {
			return nil, err
		}

		// Special:EntityData follows redirects and answers with the target entity
		if key != id.String() {
			return wikibase.NewRedirectRevision(id, rev.ID, rev.RevisionID, rev.Timestamp), nil
		}

		return rev, nil
	}

	err = errors.NewEntityNotFoundError(id.String())
	return nil, err
}

func (c *wbClient) GetEntityRevisions(ctx context.Context, ids []wikibase.EntityID) (map[wikibase.EntityID]*wikibase.EntityRevision, error) {
	var err error

	ctx, span := tracer.Start(ctx, "get-entity-revisions",
		trace.WithAttributes(attribute.Int(TraceAttributeCount, len(ids))),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	log := logging.GetFromContext(ctx)
	revisions := make(map[wikibase.EntityID]*wikibase.EntityRevision, len(ids))

	for start := 0; start < len(ids); start += c.batchSize {
		chunk := ids[start:min(start+c.batchSize, len(ids))]

		var entities map[string]json.RawMessage
		entities, err = c.getEntities(ctx, chunk, "info|aliases|labels|descriptions|claims|sitelinks", true)
		if err != nil {
			return nil, err
		}

		for key, raw := range entities {
			header := entityHeader{}
			if err = json.Unmarshal(raw, &header); err != nil {
				err = errors.NewRevisionLookupError("failed to unmarshal entity", err)
				return nil, err
			}

			if header.Missing != nil {
				continue
			}

			rev, decodeErr := decodeRevision(key, raw)
			if decodeErr != nil {
				// left out, so that a single lookup reports it
				log.Warn("skipping undecodable entity in batch", "entity_id", key, "err", decodeErr.Error())
				continue
			}

			if header.Redirects != nil {
				from, parseErr := wikibase.ParseEntityID(header.Redirects.From)
				if parseErr != nil {
					err = errors.NewRevisionLookupError("bad redirect source", parseErr)
					return nil, err
				}
				revisions[from] = wikibase.NewRedirectRevision(from, rev.ID, rev.RevisionID, rev.Timestamp)
				continue
			}

			revisions[rev.ID] = rev
		}
	}

	return revisions, nil
}

// GetPropertyDatatypes lists all property pages and then asks for their datatypes.
func (c *wbClient) GetPropertyDatatypes(ctx context.Context) (map[wikibase.EntityID]string, error) {
	var err error

	ctx, span := tracer.Start(ctx, "get-property-datatypes")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	var properties []wikibase.EntityID
	properties, err = c.allProperties(ctx)
	if err != nil {
		return nil, err
	}

	datatypes := make(map[wikibase.EntityID]string, len(properties))

	for start := 0; start < len(properties); start += c.batchSize {
		chunk := properties[start:min(start+c.batchSize, len(properties))]

		var entities map[string]json.RawMessage
		entities, err = c.getEntities(ctx, chunk, "datatype", false)
		if err != nil {
			return nil, err
		}

		for key, raw := range entities {
			p := struct {
				Datatype string `json:"datatype"`
			}{}
			if json.Unmarshal(raw, &p) != nil || p.Datatype == "" {
				continue
			}

			id, parseErr := wikibase.ParseEntityID(key)
			if parseErr != nil {
				continue
			}

			datatypes[id] = p.Datatype
		}
	}

	return datatypes, nil
}

func (c *wbClient) allProperties(ctx context.Context) ([]wikibase.EntityID, error) {
	properties := []wikibase.EntityID{}
	apcontinue := ""

	for {
		params := url.Values{}
		params.Set("action", "query")
		params.Set("format", "json")
		params.Set("list", "allpages")
		params.Set("apnamespace", strconv.Itoa(c.propertyNamespace))
		params.Set("aplimit", "500")
		if apcontinue != "" {
			params.Set("apcontinue", apcontinue)
		}

		response, responseBody, err := c.callAPI(ctx, c.baseURL+"/w/api.php?"+params.Encode(), nil)
		if err != nil {
			return nil, err
		}

		if response.StatusCode != http.StatusOK {
			return nil, errors.NewErrorFromAPIResponse(response.StatusCode, "", responseBody)
		}

		result := struct {
			Continue *struct {
				APContinue string `json:"apcontinue"`
			} `json:"continue"`
			Query struct {
				AllPages []struct {
					Title string `json:"title"`
				} `json:"allpages"`
			} `json:"query"`
		}{}

		if err := json.Unmarshal(responseBody, &result); err != nil {
			return nil, errors.NewStoreUnavailableError("failed to unmarshal page list", err)
		}

		for _, page := range result.Query.AllPages {
			title := page.Title
			if idx := strings.LastIndex(title, ":"); idx >= 0 {
				title = title[idx+1:]
			}

			if id, err := wikibase.ParseEntityID(title); err == nil {
				properties = append(properties, id)
			}
		}

		if result.Continue == nil || result.Continue.APContinue == "" {
			break
		}

		apcontinue = result.Continue.APContinue
	}

	return wikibase.SortEntityIDs(properties), nil
}

func (c *wbClient) getEntities(ctx context.Context, ids []wikibase.EntityID, props string, redirects bool) (map[string]json.RawMessage, error) {
	values := make([]string, 0, len(ids))
	for _, id := range ids {
		values = append(values, id.String())
	}

	params := url.Values{}
	params.Set("action", "wbgetentities")
	params.Set("format", "json")
	params.Set("ids", strings.Join(values, "|"))
	params.Set("props", props)
	if redirects {
		params.Set("redirects", "yes")
	}

	response, responseBody, err := c.callAPI(ctx, c.baseURL+"/w/api.php?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	if response.StatusCode != http.StatusOK {
		return nil, errors.NewErrorFromAPIResponse(response.StatusCode, "", responseBody)
	}

	er := entitiesResponse{}
	if err := json.Unmarshal(responseBody, &er); err != nil {
		return nil, errors.NewRevisionLookupError("failed to unmarshal wbgetentities response", err)
	}

	if er.Error != nil {
		return nil, errors.NewErrorFromAPIResponse(response.StatusCode, strings.Join(values, "|"), responseBody)
	}

	return er.Entities, nil
}

func decodeRevision(key string, raw json.RawMessage) (*wikibase.EntityRevision, error) {
	rev, err := wikibase.NewRevisionFromJSON(raw)
	if err != nil {
		return nil, errors.NewInvalidEntityError(key, err)
	}
	return rev, nil
}

func (c *wbClient) callAPI(ctx context.Context, endpoint string, headers map[string][]string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, nil, errors.NewRevisionLookupError("failed to create request", err)
	}

	req.Header.Add("Accept", "application/json")
	req.Header.Add("User-Agent", c.userAgent)

	for header, headerValue := range headers {
		for _, val := range headerValue {
			req.Header.Add(header, val)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, errors.NewRevisionLookupError("failed to send request", err)
	}

	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, errors.NewRevisionLookupError("failed to read response body", err)
	}

	if c.debug && resp.StatusCode >= http.StatusBadRequest && resp.StatusCode != http.StatusNotFound {
		reqbytes, _ := httputil.DumpRequest(req, false)
		respbytes, _ := httputil.DumpResponse(resp, false)

		log := logging.GetFromContext(ctx)
		log.Error("request failed", "request", string(reqbytes), "response", string(respbytes))
	}

	return resp, respBody, nil
}

var _ wikibase.BatchRevisionLookup = (*wbClient)(nil)
var _ wikibase.DatatypeLookup = (*wbClient)(nil)
