package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"whsper/internal/domain"
	"whsper/internal/engine"
	"whsper/internal/store"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	// DefaultLimit is the page size used when a request omits limit.
	DefaultLimit uint32
	Logger       *slog.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"bad_request"`
	Message string         `json:"message" example:"invalid claim id"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

const requestIDHeader = "X-Request-Id"

// New returns an HTTP handler exposing the read-only claim API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if cfg.DefaultLimit == 0 {
		cfg.DefaultLimit = 20
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(logger))
	hcfg := huma.DefaultConfig("Whsper Claims API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerClaims(group, cfg.Engine, cfg.DefaultLimit)
	registerWindowConfig(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)
	router.Handle("/metrics", promhttp.Handler())

	return router, nil
}

// requestLogger tags every request with an id and logs its outcome.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(requestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, reqID)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("request",
				"request_id", reqID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return newAPIError(http.StatusServiceUnavailable, "unavailable", "request cancelled", nil)
	case errors.Is(err, store.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{item.Get, item.Head} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Whsper Claims API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

type listClaimsInput struct {
	Address         string `path:"address"`
	Limit           string `query:"limit" doc:"Page size; clamped to 1..100"`
	IncludeTerminal string `query:"include_terminal" doc:"Include claimed and cancelled claims (default false)"`
}

func registerClaims(api huma.API, e engine.Engine, defaultLimit uint32) {
	huma.Register(api, huma.Operation{
		OperationID: "get-pending-claim",
		Method:      http.MethodGet,
		Path:        "/claims/{claim_id}",
		Summary:     "Get claim",
		Description: "Returns result=not_found with status 200 when the claim does not exist.",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		ClaimID string `path:"claim_id"`
	}) (*struct {
		Body GetClaimResponse `json:"body"`
	}, error) {
		id, err := strconv.ParseUint(input.ClaimID, 10, 64)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid claim id", map[string]any{"claim_id": input.ClaimID})
		}
		res, err := e.GetPendingClaim(ctx, id)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body GetClaimResponse `json:"body"`
		}{Body: getClaimResponse(res)}, nil
	})

	for _, route := range []struct {
		id    string
		path  string
		index domain.Index
	}{
		{"get-claims-by-recipient", "/recipients/{address}/claims", domain.ByRecipient},
		{"get-claims-by-creator", "/creators/{address}/claims", domain.ByCreator},
	} {
		route := route
		huma.Register(api, huma.Operation{
			OperationID: route.id,
			Method:      http.MethodGet,
			Path:        route.path,
			Summary:     "List claims " + strings.ReplaceAll(route.index.String(), "_", " "),
			Errors:      []int{http.StatusBadRequest},
		}, func(ctx context.Context, input *listClaimsInput) (*struct {
			Body ClaimListResponse `json:"body"`
		}, error) {
			limit, err := parseLimit(input.Limit, defaultLimit)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid limit", map[string]any{"limit": input.Limit})
			}
			includeTerminal, err := parseOptionalBool(input.IncludeTerminal)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid include_terminal", map[string]any{"include_terminal": input.IncludeTerminal})
			}
			items, err := e.ListBy(ctx, route.index, domain.Address(input.Address), limit, includeTerminal)
			if err != nil {
				return nil, handleError(err)
			}
			return &struct {
				Body ClaimListResponse `json:"body"`
			}{Body: ClaimListResponse{
				Items:           mapClaims(items),
				Limit:           engine.EffectiveLimit(limit),
				IncludeTerminal: includeTerminal != nil && *includeTerminal,
			}}, nil
		})
	}
}

func registerWindowConfig(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-claim-window-config",
		Method:      http.MethodGet,
		Path:        "/claim-window-config",
		Summary:     "Get claim window config",
		Description: "Returns zeros when no config has been stored.",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ClaimWindowConfigResponse `json:"body"`
	}, error) {
		cfg, err := e.ClaimWindowConfig(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ClaimWindowConfigResponse `json:"body"`
		}{Body: windowConfigResponse(cfg)}, nil
	})
}

// parseLimit accepts any integer. Negative values become 0 and values past
// uint32 saturate; the engine clamps the rest.
func parseLimit(raw string, fallback uint32) (uint32, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			if strings.HasPrefix(raw, "-") {
				return 0, nil
			}
			return math.MaxUint32, nil
		}
		return 0, err
	}
	switch {
	case n < 0:
		return 0, nil
	case n > math.MaxUint32:
		return math.MaxUint32, nil
	default:
		return uint32(n), nil
	}
}

func parseOptionalBool(raw string) (*bool, error) {
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
