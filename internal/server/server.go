// Package server exposes the monitoring engine over HTTP. It is presentation
// glue: every operation parses input, names an acting user and calls into
// the engine. The actor is selected with the X-Actor-Id header; there is no
// authentication, a user is simply picked from the roster.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"vigia/internal/domain"
	"vigia/internal/engine"
	"vigia/internal/metrics"
	"vigia/internal/rules"
	"vigia/internal/store"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Logger   *slog.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"permission_denied"`
	Message string         `json:"message" example:"role Supervisor cannot assign adhesionGeneral tag Alto"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Vigia API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the error envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(requestLogger(logger))
	hcfg := huma.DefaultConfig("Vigia API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerUsers(group, cfg.Engine)
	registerReviews(group, cfg.Engine)
	registerRules(group, cfg.Engine)
	registerCalibrations(group, cfg.Engine)
	registerMetrics(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("actor", r.Header.Get("X-Actor-Id")),
				slog.Duration("elapsed", time.Since(start)),
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
	var pe *engine.PermissionError
	if errors.As(err, &pe) {
		return newAPIError(http.StatusForbidden, "permission_denied", err.Error(), map[string]any{
			"actor": pe.ActorID,
			"role":  pe.Role,
		})
	}
	var te *engine.InvalidTransitionError
	if errors.As(err, &te) {
		return newAPIError(http.StatusUnprocessableEntity, "invalid_transition", err.Error(), map[string]any{
			"from": te.From,
			"to":   te.To,
		})
	}
	if errors.Is(err, store.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	if errors.Is(err, store.ErrBusy) || errors.Is(err, store.ErrConflict) {
		return newAPIError(http.StatusConflict, "conflict", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	if strings.Contains(lowered, "required") || strings.Contains(lowered, "unknown") || strings.Contains(lowered, "invalid") {
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "invalid_transition"
	case http.StatusForbidden:
		return "permission_denied"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			spec, _ = json.Marshal(api.OpenAPI())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
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

func registerUsers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List selectable users",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.User `json:"body"`
	}, error) {
		return &struct {
			Body []domain.User `json:"body"`
		}{Body: e.ListUsers(ctx)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current selected user",
	}, func(ctx context.Context, input *struct {
		ActorID string `header:"X-Actor-Id"`
	}) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		u, err := e.GetUser(ctx, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.User `json:"body"`
		}{Body: u}, nil
	})
}

func registerReviews(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-review",
		Method:        http.MethodPost,
		Path:          "/reviews",
		Summary:       "Create review",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ActorID string              `header:"X-Actor-Id"`
		Body    CreateReviewRequest `json:"body"`
	}) (*struct {
		Body domain.Review `json:"body"`
	}, error) {
		r, err := e.CreateReview(ctx, engine.CreateReviewOptions{
			CaseNumber:      input.Body.CaseNumber,
			Title:           input.Body.Title,
			Description:     input.Body.Description,
			InitialTagLevel: input.Body.InitialTagLevel,
			ActorID:         input.ActorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Review `json:"body"`
		}{Body: *r}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-reviews",
		Method:      http.MethodGet,
		Path:        "/reviews",
		Summary:     "List reviews visible to the acting user",
	}, func(ctx context.Context, input *struct {
		ActorID string `header:"X-Actor-Id"`
	}) (*struct {
		Body []*domain.Review `json:"body"`
	}, error) {
		items, err := e.ListReviews(ctx, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []*domain.Review `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-review",
		Method:      http.MethodGet,
		Path:        "/reviews/{review_id}",
		Summary:     "Get review",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ReviewID string `path:"review_id"`
	}) (*struct {
		Body domain.Review `json:"body"`
	}, error) {
		r, err := e.GetReview(ctx, input.ReviewID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Review `json:"body"`
		}{Body: *r}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "tag-review",
		Method:      http.MethodPost,
		Path:        "/reviews/{review_id}/tags",
		Summary:     "Assign an evaluation tag",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ReviewID string     `path:"review_id"`
		ActorID  string     `header:"X-Actor-Id"`
		Body     TagRequest `json:"body"`
	}) (*struct {
		Body domain.Review `json:"body"`
	}, error) {
		r, err := e.ApplyTag(ctx, input.ReviewID, domain.Dimension(input.Body.Dimension), domain.TagLevel(input.Body.Level), input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Review `json:"body"`
		}{Body: *r}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "requeue-review",
		Method:      http.MethodPost,
		Path:        "/reviews/{review_id}/requeue",
		Summary:     "Move review to another queue",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ReviewID string         `path:"review_id"`
		ActorID  string         `header:"X-Actor-Id"`
		Body     RequeueRequest `json:"body"`
	}) (*struct {
		Body domain.Review `json:"body"`
	}, error) {
		r, err := e.Requeue(ctx, input.ReviewID, domain.Queue(input.Body.Destination), input.Body.Reason, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Review `json:"body"`
		}{Body: *r}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "mark-pride",
		Method:      http.MethodPost,
		Path:        "/reviews/{review_id}/pride",
		Summary:     "Flag review as pride case",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ReviewID string `path:"review_id"`
		ActorID  string `header:"X-Actor-Id"`
	}) (*struct {
		Body domain.Review `json:"body"`
	}, error) {
		r, err := e.MarkPride(ctx, input.ReviewID, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Review `json:"body"`
		}{Body: *r}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "mark-calibration",
		Method:      http.MethodPost,
		Path:        "/reviews/{review_id}/calibration",
		Summary:     "Flag review for a calibration track",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ReviewID string                 `path:"review_id"`
		ActorID  string                 `header:"X-Actor-Id"`
		Body     MarkCalibrationRequest `json:"body"`
	}) (*struct {
		Body domain.Review `json:"body"`
	}, error) {
		r, err := e.MarkForCalibration(ctx, input.ReviewID, domain.CalibrationType(input.Body.Type), input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Review `json:"body"`
		}{Body: *r}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-review-status",
		Method:      http.MethodPatch,
		Path:        "/reviews/{review_id}/status",
		Summary:     "Advance review lifecycle",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ReviewID string        `path:"review_id"`
		ActorID  string        `header:"X-Actor-Id"`
		Body     StatusRequest `json:"body"`
	}) (*struct {
		Body domain.Review `json:"body"`
	}, error) {
		r, err := e.SetStatus(ctx, input.ReviewID, domain.Status(input.Body.Status), input.ActorID, input.Body.Reason)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Review `json:"body"`
		}{Body: *r}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "comment-review",
		Method:      http.MethodPost,
		Path:        "/reviews/{review_id}/comments",
		Summary:     "Comment on a review",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ReviewID string         `path:"review_id"`
		ActorID  string         `header:"X-Actor-Id"`
		Body     CommentRequest `json:"body"`
	}) (*struct {
		Body domain.Review `json:"body"`
	}, error) {
		r, err := e.AddComment(ctx, input.ReviewID, input.Body.Text, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Review `json:"body"`
		}{Body: *r}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "review-audit",
		Method:      http.MethodGet,
		Path:        "/reviews/{review_id}/audit",
		Summary:     "Review mutation ledger",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ReviewID string `path:"review_id"`
	}) (*struct {
		Body []domain.AuditEntry `json:"body"`
	}, error) {
		entries, err := e.AuditTrail(ctx, input.ReviewID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.AuditEntry `json:"body"`
		}{Body: entries}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "evaluate-review",
		Method:      http.MethodGet,
		Path:        "/reviews/{review_id}/evaluate",
		Summary:     "Preview rule evaluation without applying it",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ReviewID string `path:"review_id"`
	}) (*struct {
		Body *rules.Effect `json:"body"`
	}, error) {
		eff, err := e.EvaluateReview(ctx, input.ReviewID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body *rules.Effect `json:"body"`
		}{Body: eff}, nil
	})
}

func registerRules(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-rules",
		Method:      http.MethodGet,
		Path:        "/rules",
		Summary:     "List transition rules in evaluation order",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.TransitionRule `json:"body"`
	}, error) {
		return &struct {
			Body []domain.TransitionRule `json:"body"`
		}{Body: e.ListRules(ctx)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-rule",
		Method:        http.MethodPost,
		Path:          "/rules",
		Summary:       "Create transition rule",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ActorID string                `header:"X-Actor-Id"`
		Body    domain.TransitionRule `json:"body"`
	}) (*struct {
		Body domain.TransitionRule `json:"body"`
	}, error) {
		rule, err := e.CreateRule(ctx, input.Body, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.TransitionRule `json:"body"`
		}{Body: rule}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-rule",
		Method:      http.MethodPut,
		Path:        "/rules/{rule_id}",
		Summary:     "Update transition rule",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RuleID  string                `path:"rule_id"`
		ActorID string                `header:"X-Actor-Id"`
		Body    domain.TransitionRule `json:"body"`
	}) (*struct {
		Body domain.TransitionRule `json:"body"`
	}, error) {
		rule := input.Body
		rule.ID = input.RuleID
		rule, err := e.UpdateRule(ctx, rule, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.TransitionRule `json:"body"`
		}{Body: rule}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-rule",
		Method:      http.MethodDelete,
		Path:        "/rules/{rule_id}",
		Summary:     "Delete transition rule",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RuleID  string `path:"rule_id"`
		ActorID string `header:"X-Actor-Id"`
	}) (*struct{}, error) {
		if err := e.DeleteRule(ctx, input.RuleID, input.ActorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "toggle-rule",
		Method:      http.MethodPost,
		Path:        "/rules/{rule_id}/toggle",
		Summary:     "Flip a rule's active flag",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RuleID  string `path:"rule_id"`
		ActorID string `header:"X-Actor-Id"`
	}) (*struct {
		Body domain.TransitionRule `json:"body"`
	}, error) {
		rule, err := e.ToggleRule(ctx, input.RuleID, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.TransitionRule `json:"body"`
		}{Body: rule}, nil
	})
}

func registerCalibrations(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-calibration",
		Method:        http.MethodPost,
		Path:          "/calibrations",
		Summary:       "Open a calibration session",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ActorID string                   `header:"X-Actor-Id"`
		Body    CreateCalibrationRequest `json:"body"`
	}) (*struct {
		Body domain.CalibrationRecord `json:"body"`
	}, error) {
		c, err := e.CreateCalibration(ctx, engine.CalibrationCreateOptions{
			Type:           input.Body.Type,
			Title:          input.Body.Title,
			Description:    input.Body.Description,
			ParticipantIDs: input.Body.ParticipantIDs,
			ScheduledAt:    input.Body.ScheduledAt,
			LinkedReviews:  input.Body.LinkedReviews,
			ActorID:        input.ActorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.CalibrationRecord `json:"body"`
		}{Body: *c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-calibrations",
		Method:      http.MethodGet,
		Path:        "/calibrations",
		Summary:     "List calibration sessions visible to the acting user",
	}, func(ctx context.Context, input *struct {
		ActorID string `header:"X-Actor-Id"`
	}) (*struct {
		Body []*domain.CalibrationRecord `json:"body"`
	}, error) {
		items, err := e.ListCalibrations(ctx, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []*domain.CalibrationRecord `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-calibration",
		Method:      http.MethodGet,
		Path:        "/calibrations/{calibration_id}",
		Summary:     "Get calibration session",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CalibrationID string `path:"calibration_id"`
	}) (*struct {
		Body domain.CalibrationRecord `json:"body"`
	}, error) {
		c, err := e.GetCalibration(ctx, input.CalibrationID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.CalibrationRecord `json:"body"`
		}{Body: *c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-calibration-status",
		Method:      http.MethodPatch,
		Path:        "/calibrations/{calibration_id}/status",
		Summary:     "Advance calibration lifecycle",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		CalibrationID string                   `path:"calibration_id"`
		ActorID       string                   `header:"X-Actor-Id"`
		Body          CalibrationStatusRequest `json:"body"`
	}) (*struct {
		Body domain.CalibrationRecord `json:"body"`
	}, error) {
		c, err := e.SetCalibrationStatus(ctx, input.CalibrationID, domain.CalibrationStatus(input.Body.Status), input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.CalibrationRecord `json:"body"`
		}{Body: *c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "comment-calibration",
		Method:      http.MethodPost,
		Path:        "/calibrations/{calibration_id}/comments",
		Summary:     "Comment on a calibration session",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		CalibrationID string         `path:"calibration_id"`
		ActorID       string         `header:"X-Actor-Id"`
		Body          CommentRequest `json:"body"`
	}) (*struct {
		Body domain.CalibrationRecord `json:"body"`
	}, error) {
		c, err := e.AddCalibrationComment(ctx, input.CalibrationID, input.Body.Text, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.CalibrationRecord `json:"body"`
		}{Body: *c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "requeue-calibration",
		Method:      http.MethodPost,
		Path:        "/calibrations/{calibration_id}/requeue",
		Summary:     "Move calibration session to another queue",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		CalibrationID string         `path:"calibration_id"`
		ActorID       string         `header:"X-Actor-Id"`
		Body          RequeueRequest `json:"body"`
	}) (*struct {
		Body domain.CalibrationRecord `json:"body"`
	}, error) {
		c, err := e.RequeueCalibration(ctx, input.CalibrationID, domain.Queue(input.Body.Destination), input.Body.Reason, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.CalibrationRecord `json:"body"`
		}{Body: *c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "link-review",
		Method:      http.MethodPost,
		Path:        "/calibrations/{calibration_id}/reviews",
		Summary:     "Attach a review to the session",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		CalibrationID string            `path:"calibration_id"`
		ActorID       string            `header:"X-Actor-Id"`
		Body          LinkReviewRequest `json:"body"`
	}) (*struct {
		Body domain.CalibrationRecord `json:"body"`
	}, error) {
		c, err := e.LinkReview(ctx, input.CalibrationID, input.Body.ReviewID, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.CalibrationRecord `json:"body"`
		}{Body: *c}, nil
	})
}

func registerMetrics(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "report",
		Method:      http.MethodGet,
		Path:        "/metrics/report",
		Summary:     "Role-scoped quality report",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ActorID string `header:"X-Actor-Id"`
	}) (*struct {
		Body metrics.Report `json:"body"`
	}, error) {
		rep, err := e.Report(ctx, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body metrics.Report `json:"body"`
		}{Body: rep}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "queue-stats",
		Method:      http.MethodGet,
		Path:        "/metrics/queues",
		Summary:     "Queue load and wait statistics",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ActorID string `header:"X-Actor-Id"`
	}) (*struct {
		Body map[domain.Queue]metrics.QueueStats `json:"body"`
	}, error) {
		stats, err := e.QueueStatistics(ctx, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[domain.Queue]metrics.QueueStats `json:"body"`
		}{Body: stats}, nil
	})
}
