package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/graphql-go/graphql"
	graphqlerrors "github.com/graphql-go/graphql/gqlerrors"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"
	"go.uber.org/zap"

	"github.com/mercatolabs/mercato/internal/authn"
	"github.com/mercatolabs/mercato/internal/gqlerrors"
	"github.com/mercatolabs/mercato/internal/metrics"
	"github.com/mercatolabs/mercato/internal/persisted"
	"github.com/mercatolabs/mercato/pkg/identity"
	"github.com/mercatolabs/mercato/pkg/logger"
	"github.com/mercatolabs/mercato/pkg/middleware/requestid"
)

// graphqlRequest is the accepted POST body. The persisted query hash travels
// either in the top-level hash field or in the apollo-style extensions block.
type graphqlRequest struct {
	Query         string                 `json:"query,omitempty"`
	Hash          string                 `json:"hash,omitempty"`
	OperationName string                 `json:"operationName,omitempty"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
	Extensions    *requestExtensions     `json:"extensions,omitempty"`
}

type requestExtensions struct {
	PersistedQuery *persistedQueryExtension `json:"persistedQuery,omitempty"`
}

type persistedQueryExtension struct {
	Sha256Hash string `json:"sha256Hash"`
}

func (r *graphqlRequest) hash() string {
	if r.Hash != "" {
		return r.Hash
	}
	if r.Extensions != nil && r.Extensions.PersistedQuery != nil {
		return r.Extensions.PersistedQuery.Sha256Hash
	}
	return ""
}

// Handler returns the HTTP surface of the server: the graphql endpoint plus
// liveness and readiness probes. Transport middleware (cors, tracing) wraps
// this handler at startup.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", s.handleGraphQL)
	mux.HandleFunc("/healthz", s.handleHealthz)
	return requestid.NewMiddleware(mux)
}

func (s *Server) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	ctx := r.Context()
	log := s.log.With(zap.String("request_id", requestid.FromContext(ctx)))

	var req graphqlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrors(w, http.StatusBadRequest, gqlerrors.MalformedRequest("invalid request body: %v", err))
		metrics.RequestDuration.WithLabelValues("malformed").Observe(time.Since(start).Seconds())
		return
	}

	query, err := s.resolveQueryBody(ctx, &req)
	if err != nil {
		s.writeErrors(w, http.StatusOK, err)
		metrics.RequestDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return
	}

	doc, err := parseQuery(query)
	if err != nil {
		s.writeErrors(w, http.StatusOK, err)
		metrics.RequestDuration.WithLabelValues("malformed").Observe(time.Since(start).Seconds())
		return
	}

	if err := s.guard.Check(doc); err != nil {
		metrics.ShapeRejections.Inc()
		s.writeErrors(w, http.StatusOK, err)
		metrics.RequestDuration.WithLabelValues("rejected").Observe(time.Since(start).Seconds())
		return
	}

	validation := graphql.ValidateDocument(&s.schema, doc, nil)
	if !validation.IsValid {
		s.writeResult(w, http.StatusOK, &graphql.Result{Errors: validation.Errors})
		metrics.RequestDuration.WithLabelValues("malformed").Observe(time.Since(start).Seconds())
		return
	}

	ctx = s.authenticate(ctx, r, log)
	ctx = WithLoaders(ctx, NewLoaders(s.datastore, s.loaderWait, s.loaderMaxBatch))

	result := graphql.Execute(graphql.ExecuteParams{
		Schema:        s.schema,
		AST:           doc,
		Args:          req.Variables,
		OperationName: req.OperationName,
		Context:       ctx,
	})

	outcome := "ok"
	if len(result.Errors) > 0 {
		outcome = "error"
	}
	metrics.RequestDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	s.writeResult(w, http.StatusOK, result)
}

// resolveQueryBody applies the persisted query protocol: hash-only requests
// resolve from the store, hash+body requests register after a digest check,
// and body-only requests pass through.
func (s *Server) resolveQueryBody(ctx context.Context, req *graphqlRequest) (string, error) {
	hash := req.hash()

	if hash == "" {
		if req.Query == "" {
			return "", gqlerrors.MalformedRequest("request carries neither query nor hash")
		}
		return req.Query, nil
	}

	if req.Query == "" {
		// Resolve degrades every store failure to a miss, so any error here
		// means the hash is unknown and the client must retry with the body.
		body, err := s.persisted.Resolve(ctx, hash)
		if err != nil {
			metrics.PersistedQueryLookups.WithLabelValues("miss").Inc()
			return "", gqlerrors.PersistedQueryNotFound()
		}
		metrics.PersistedQueryLookups.WithLabelValues("hit").Inc()
		return body, nil
	}

	if persisted.Digest(req.Query) != hash {
		return "", gqlerrors.MalformedRequest("provided hash does not match the query body")
	}
	s.persisted.Register(ctx, hash, req.Query)
	metrics.PersistedQueryLookups.WithLabelValues("registered").Inc()
	return req.Query, nil
}

// authenticate resolves the bearer credential once per request. Invalid
// credentials degrade to anonymous; they never fail the request outright.
func (s *Server) authenticate(ctx context.Context, r *http.Request, log logger.Logger) context.Context {
	bearer := authn.BearerFromHeader(r.Header.Get("Authorization"))
	id, err := s.authenticator.Authenticate(ctx, bearer)
	if err != nil {
		log.Debug("bearer credential rejected, continuing as anonymous", zap.Error(err))
		return ctx
	}
	if id == nil {
		return ctx
	}
	return identity.ContextWithIdentity(ctx, id)
}

func parseQuery(query string) (*ast.Document, error) {
	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{
			Body: []byte(query),
			Name: "GraphQL request",
		}),
	})
	if err != nil {
		return nil, gqlerrors.MalformedRequest("query does not parse: %v", err)
	}
	return doc, nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ready, err := s.datastore.IsReady(ctx)
	if err != nil || !ready {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) writeErrors(w http.ResponseWriter, status int, errs ...error) {
	formatted := make([]graphqlerrors.FormattedError, 0, len(errs))
	for _, err := range errs {
		formatted = append(formatted, graphqlerrors.FormatError(err))
	}
	s.writeResult(w, status, &graphql.Result{Errors: formatted})
}

func (s *Server) writeResult(w http.ResponseWriter, status int, result *graphql.Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.log.Debug("response write failed", zap.Error(err))
	}
}
