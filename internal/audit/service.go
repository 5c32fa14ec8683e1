package audit

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/digital-store/internal/common"
	"github.com/noah-isme/digital-store/internal/obs"
)

// Entry is one audited back-office action.
type Entry struct {
	ID         string            `json:"id"`
	At         time.Time         `json:"at"`
	Action     string            `json:"action"`
	Resource   string            `json:"resource"`
	ResourceID string            `json:"resourceId,omitempty"`
	Method     string            `json:"method"`
	Path       string            `json:"path"`
	Status     int               `json:"status"`
	IP         string            `json:"ip,omitempty"`
	UserAgent  string            `json:"userAgent,omitempty"`
	RequestID  string            `json:"requestId,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Service records admin actions into a Store.
type Service struct {
	Store        Store
	Enabled      bool
	SamplingRate float64
	Now          func() time.Time
}

// Record appends an entry describing req. Action and resource default to values
// derived from the matched route.
func (s Service) Record(ctx context.Context, req *http.Request, action, resource, resourceID string, status int, metadata map[string]string) error {
	if !s.Enabled {
		return nil
	}
	if s.SamplingRate > 0 && s.SamplingRate < 1 && rand.Float64() > s.SamplingRate {
		return nil
	}
	if req == nil {
		return errors.New("audit: request is required")
	}
	if s.Store == nil {
		return errors.New("audit: store not configured")
	}

	route := obs.RoutePattern(req, strings.TrimSpace(req.URL.Path))
	if status == 0 {
		status = http.StatusOK
	}
	if len(metadata) == 0 && req.URL.RawQuery != "" {
		metadata = map[string]string{"query": req.URL.RawQuery}
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	return s.Store.Append(ctx, Entry{
		ID:         uuid.NewString(),
		At:         now().UTC(),
		Action:     buildAction(action, req.Method, route),
		Resource:   buildResource(resource, route),
		ResourceID: strings.TrimSpace(resourceID),
		Method:     req.Method,
		Path:       req.URL.Path,
		Status:     status,
		IP:         common.ClientIP(req),
		UserAgent:  strings.TrimSpace(req.Header.Get("User-Agent")),
		RequestID:  strings.TrimSpace(req.Header.Get("X-Request-ID")),
		Metadata:   metadata,
	})
}

func buildAction(action, method, route string) string {
	if trimmed := strings.TrimSpace(action); trimmed != "" {
		return trimmed
	}
	if route == "" {
		route = "/"
	}
	return strings.ToUpper(strings.TrimSpace(method)) + " " + route
}

// buildResource turns /api/v1/admin/coupons/{code} into admin.coupons.{code}.
func buildResource(resource, route string) string {
	if trimmed := strings.TrimSpace(resource); trimmed != "" {
		return trimmed
	}
	route = strings.Trim(strings.TrimSpace(route), "/")
	if route == "" {
		return "unknown"
	}
	segments := strings.Split(route, "/")
	if len(segments) >= 3 && segments[0] == "api" && segments[1] == "v1" {
		return strings.Join(segments[2:], ".")
	}
	return strings.Join(segments, ".")
}

