// Package tools exposes the recommendation queries as callable tools for an
// LLM coaching agent. Each tool declares a JSON Schema for its arguments;
// calls are validated against it before dispatch.
package tools

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cp-path-builder/backend/internal/domain"
)

// Recommender is the query surface the tools call into
type Recommender interface {
	Search(ctx context.Context, q domain.SearchQuery) ([]domain.ProblemSummary, error)
	GetProblem(ctx context.Context, id int64) (*domain.Problem, error)
	GetProblemByCode(ctx context.Context, contestID int, index string) (*domain.Problem, error)
	FindSimilar(ctx context.Context, problemID int64, excludeSolvedBy *uuid.UUID, limit int) ([]domain.SimilarProblem, error)
	UserStats(ctx context.Context, userID uuid.UUID) (*domain.UserStats, error)
	TopicStrengths(ctx context.Context, userID uuid.UUID) ([]domain.TopicSkillEstimate, error)
	SolvedHistory(ctx context.Context, userID uuid.UUID, limit int, tag string) ([]domain.SolvedEntry, error)
	AvailableTags(ctx context.Context) ([]string, error)
}

// Metrics records tool invocations
type Metrics interface {
	ToolCalled(ctx context.Context, name string, err error)
}

// Declaration describes a tool to the model
type Declaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Call is the context a tool runs in
type Call struct {
	UserID uuid.UUID
	Args   json.RawMessage
}

type handlerFunc func(ctx context.Context, r Recommender, call Call) (any, error)

type tool struct {
	decl    Declaration
	schema  *jsonschema.Schema
	handler handlerFunc
}

// Registry holds the tool catalog
type Registry struct {
	tools       map[string]*tool
	order       []string
	recommender Recommender
	metrics     Metrics
	tracer      trace.Tracer
	logger      *zap.Logger
}

// NewRegistry compiles every tool schema and returns the registry
func NewRegistry(recommender Recommender, metrics Metrics, tracer trace.Tracer, logger *zap.Logger) (*Registry, error) {
	r := &Registry{
		tools:       make(map[string]*tool, len(catalog)),
		recommender: recommender,
		metrics:     metrics,
		tracer:      tracer,
		logger:      logger,
	}

	for _, entry := range catalog {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(entry.schema))
		if err != nil {
			return nil, fmt.Errorf("parse schema for %s: %w", entry.name, err)
		}
		url := "tool://" + entry.name + ".json"
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(url, doc); err != nil {
			return nil, fmt.Errorf("add schema for %s: %w", entry.name, err)
		}
		compiled, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile schema for %s: %w", entry.name, err)
		}

		r.tools[entry.name] = &tool{
			decl: Declaration{
				Name:        entry.name,
				Description: entry.description,
				Parameters:  json.RawMessage(entry.schema),
			},
			schema:  compiled,
			handler: entry.handler,
		}
		r.order = append(r.order, entry.name)
	}

	return r, nil
}

// Declarations lists every tool in catalog order
func (r *Registry) Declarations() []Declaration {
	out := make([]Declaration, len(r.order))
	for i, name := range r.order {
		out[i] = r.tools[name].decl
	}
	return out
}

// Execute validates args against the tool's schema and runs it for userID
func (r *Registry) Execute(ctx context.Context, userID uuid.UUID, name string, args json.RawMessage) (result any, err error) {
	ctx, span := r.tracer.Start(ctx, "Registry.Execute")
	defer span.End()

	span.SetAttributes(
		attribute.String("tool.name", name),
		attribute.String("user.id", userID.String()),
	)

	start := time.Now()
	defer func() {
		if r.metrics != nil {
			r.metrics.ToolCalled(ctx, name, err)
		}
		if err != nil {
			span.RecordError(err)
		}
		r.logger.Debug("Tool executed",
			zap.String("tool", name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
	}()

	t, ok := r.tools[name]
	if !ok {
		return nil, domain.NewDomainError(domain.ErrUnknownTool, fmt.Sprintf("unknown tool: %s", name))
	}

	args = normalizeArgs(args)
	if err := validateArgs(t.schema, args); err != nil {
		return nil, err
	}

	return t.handler(ctx, r.recommender, Call{UserID: userID, Args: args})
}

// normalizeArgs treats missing arguments as an empty object
func normalizeArgs(args json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return json.RawMessage("{}")
	}
	return trimmed
}

func validateArgs(schema *jsonschema.Schema, args json.RawMessage) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(args))
	if err != nil {
		return domain.NewDomainError(domain.ErrInvalidToolArguments, fmt.Sprintf("arguments are not valid JSON: %v", err))
	}
	if err := schema.Validate(inst); err != nil {
		return domain.NewDomainError(domain.ErrInvalidToolArguments, err.Error())
	}
	return nil
}

// decode unmarshals validated arguments into dest
func decode(args json.RawMessage, dest any) error {
	if err := json.Unmarshal(args, dest); err != nil {
		return domain.NewDomainError(domain.ErrInvalidToolArguments, err.Error())
	}
	return nil
}
