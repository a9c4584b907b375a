package analytics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Handler handles analytics HTTP requests.
type Handler struct {
	store          *Store
	collectLimiter *rateLimiter
}

// NewHandler creates a new analytics handler.
// The collect endpoint is rate-limited to 60 requests per IP per minute.
func NewHandler(store *Store) *Handler {
	return &Handler{
		store:          store,
		collectLimiter: newRateLimiter(60, time.Minute),
	}
}

// CollectRequest is the expected request body for the collect endpoint.
type CollectRequest struct {
	PageID    string `json:"page_id"`
	PageType  string `json:"page_type"`
	Referrer  string `json:"referrer"`
	UserAgent string `json:"user_agent"`
}

// Input validation limits for the collect endpoint.
const (
	maxIDLen        = 64
	maxReferrerLen  = 2048
	maxUserAgentLen = 512
)

func validateCollectRequest(req *CollectRequest) error {
	if req.PageID == "" || len(req.PageID) > maxIDLen {
		return fmt.Errorf("page_id is required and at most %d bytes", maxIDLen)
	}
	switch req.PageType {
	case "registration", "watch", "enrollment":
	default:
		return fmt.Errorf("unknown page_type %q", req.PageType)
	}
	if len(req.Referrer) > maxReferrerLen {
		return fmt.Errorf("referrer exceeds maximum length of %d", maxReferrerLen)
	}
	if len(req.UserAgent) > maxUserAgentLen {
		return fmt.Errorf("user_agent exceeds maximum length of %d", maxUserAgentLen)
	}
	return nil
}

// Collect handles incoming page-view reports from published funnel pages.
func (h *Handler) Collect(c echo.Context) error {
	// Rate limit by IP to prevent analytics flooding.
	if !h.collectLimiter.allow(c.RealIP()) {
		return c.NoContent(http.StatusTooManyRequests)
	}

	// Honor Do Not Track.
	if c.Request().Header.Get("DNT") == "1" {
		return c.NoContent(http.StatusNoContent)
	}

	var req CollectRequest
	if err := c.Bind(&req); err != nil {
		return c.NoContent(http.StatusBadRequest)
	}
	if err := validateCollectRequest(&req); err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}

	ua := req.UserAgent
	if ua == "" {
		ua = c.Request().UserAgent()
	}
	ip := c.RealIP()
	v := &Visit{
		VisitorID: VisitorID(ip, ua),
		IPHash:    HashIP(ip),
		PageID:    req.PageID,
		PageType:  req.PageType,
		Device:    ParseDevice(ua),
		Referrer:  req.Referrer,
		Timestamp: time.Now(),
	}
	if err := h.store.SaveVisit(v); err != nil {
		c.Logger().Errorf("save visit: %v", err)
		return c.NoContent(http.StatusInternalServerError)
	}
	return c.NoContent(http.StatusNoContent)
}

// Stats returns aggregated statistics. The period defaults to the last 30
// days; ?days=N widens or narrows it (1..365).
func (h *Handler) Stats(c echo.Context) error {
	days := 30
	if raw := c.QueryParam("days"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &days); err != nil || days < 1 || days > 365 {
			return c.String(http.StatusBadRequest, "days must be between 1 and 365")
		}
	}
	to := time.Now()
	from := to.AddDate(0, 0, -days)
	stats, err := h.store.GetStats(from, to)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

// RegisterRoutes mounts the public collect endpoint and the auth-guarded
// stats endpoint.
func (h *Handler) RegisterRoutes(e *echo.Echo, authMiddleware echo.MiddlewareFunc) {
	e.POST("/api/analytics/collect", h.Collect)
	e.GET("/api/analytics/stats", h.Stats, authMiddleware)
}
