package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/naka-gawa/profile-stats/internal/metrics"
)

// ErrMissingField is returned when a response lacks a key the caller relies on.
var ErrMissingField = errors.New("missing field in GraphQL response")

// RequestError is returned when the GraphQL endpoint answers with a status other than 200.
type RequestError struct {
	QueryName  string
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s has failed with a %d: %s", e.QueryName, e.StatusCode, e.Body)
}

// GraphQLError is one entry of the "errors" array of a GraphQL response.
type GraphQLError struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}

// GraphQLErrors is returned when a 200 response still reports errors.
type GraphQLErrors []GraphQLError

func (e GraphQLErrors) Error() string {
	if len(e) == 1 {
		return "graphql error: " + e[0].Message
	}
	return fmt.Sprintf("graphql error: %s (and %d more)", e[0].Message, len(e)-1)
}

// Response is the raw answer of a successful request.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode GraphQL response: %w", err)
	}
	return nil
}

type graphQLQuery struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// Executor sends single GraphQL documents to one endpoint.
// Authentication is the business of the http.Client passed in.
type Executor struct {
	endpoint string
	client   *http.Client
	counter  *metrics.QueryCounter
}

// NewExecutor creates an Executor posting to endpoint and counting calls in counter.
func NewExecutor(endpoint string, client *http.Client, counter *metrics.QueryCounter) *Executor {
	return &Executor{endpoint: endpoint, client: client, counter: counter}
}

// Execute posts query with variables and returns the response untouched when the
// status is 200. The call is counted under queryName whatever the outcome.
func (e *Executor) Execute(ctx context.Context, queryName, query string, variables map[string]any) (*Response, error) {
	e.counter.Inc(queryName)

	if variables == nil {
		variables = map[string]any{}
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(graphQLQuery{Query: query, Variables: variables}); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", queryName, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", queryName, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", queryName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", queryName, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &RequestError{QueryName: queryName, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// envelope is the top level of every GraphQL answer.
type envelope[T any] struct {
	Data   *T            `json:"data"`
	Errors GraphQLErrors `json:"errors"`
}

// executeInto runs the query and decodes its "data" member into a T.
func executeInto[T any](ctx context.Context, e *Executor, queryName, query string, variables map[string]any) (*T, error) {
	resp, err := e.Execute(ctx, queryName, query, variables)
	if err != nil {
		return nil, err
	}
	var env envelope[T]
	if err := resp.Decode(&env); err != nil {
		return nil, err
	}
	if len(env.Errors) > 0 {
		return nil, fmt.Errorf("%s: %w", queryName, env.Errors)
	}
	if env.Data == nil {
		return nil, fmt.Errorf("%s: data: %w", queryName, ErrMissingField)
	}
	return env.Data, nil
}
