package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/IgorGrieder/shortlink-analytics/internal/constants"
	"github.com/IgorGrieder/shortlink-analytics/internal/infrastructure/logger"
	appvalidation "github.com/IgorGrieder/shortlink-analytics/internal/infrastructure/validation"
	"github.com/IgorGrieder/shortlink-analytics/internal/processing/links"
	"github.com/IgorGrieder/shortlink-analytics/pkg/httputils"
	"go.uber.org/zap"
)

const UserIDHeader = "X-User-Id"

type LinkService interface {
	CreateShortLink(ctx context.Context, in links.CreateLinkInput) (*links.Link, error)
	ResolveAndRecord(ctx context.Context, code string, meta links.ClickMetadata) (string, error)
	GetStats(ctx context.Context, code string) (*links.Stats, error)
	GetDailyStats(ctx context.Context, code string, from, to time.Time) ([]links.DailyCount, error)
}

type LinksHandler struct {
	svc LinkService

	baseURL        string
	redirectStatus int
	trustProxy     bool
	clickTimeout   time.Duration
}

type LinksHandlerOptions struct {
	BaseURL           string
	RedirectStatus    int
	TrustProxyHeaders bool
	ClickTimeout      time.Duration
}

func NewLinksHandler(svc LinkService, opts LinksHandlerOptions) *LinksHandler {
	if opts.ClickTimeout <= 0 {
		opts.ClickTimeout = 3 * time.Second
	}
	switch opts.RedirectStatus {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusTemporaryRedirect:
	default:
		opts.RedirectStatus = http.StatusTemporaryRedirect
	}

	return &LinksHandler{
		svc:            svc,
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		redirectStatus: opts.RedirectStatus,
		trustProxy:     opts.TrustProxyHeaders,
		clickTimeout:   opts.ClickTimeout,
	}
}

type createLinkRequest struct {
	URL       string     `json:"url" validate:"required,notblank,http_url"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty" validate:"omitempty,future"`
}

type createLinkResponse struct {
	ShortCode   string     `json:"shortCode"`
	ShortURL    string     `json:"shortUrl"`
	OriginalURL string     `json:"originalUrl"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

type codeParam struct {
	Code string `json:"code" validate:"shortcode"`
}

func (h *LinksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputils.WriteAPIError(w, r, constants.ErrInvalidRequestBody)
		return
	}
	if err := appvalidation.Validate(req); err != nil {
		apiErr := constants.ErrInvalidRequestBody
		switch field, tag := appvalidation.FirstFieldError(err); {
		case field == "url":
			apiErr = constants.ErrInvalidURL
		case field == "expiresAt" && tag == "future":
			apiErr = constants.ErrExpiryInPast
		}
		httputils.WriteAPIError(w, r, apiErr)
		return
	}

	link, err := h.svc.CreateShortLink(r.Context(), links.CreateLinkInput{
		URL:       req.URL,
		ExpiresAt: req.ExpiresAt,
		OwnerID:   r.Header.Get(UserIDHeader),
	})
	if err != nil {
		switch {
		case errors.Is(err, links.ErrInvalidURL):
			httputils.WriteAPIError(w, r, constants.ErrInvalidURL)
		default:
			logger.Error("failed to create link", zap.Error(err))
			httputils.WriteAPIError(w, r, constants.ErrInternalError)
		}
		return
	}

	httputils.WriteAPISuccess(w, r, constants.SuccessLinkCreated, createLinkResponse{
		ShortCode:   link.ShortCode,
		ShortURL:    h.baseURL + "/" + link.ShortCode,
		OriginalURL: link.OriginalURL,
		CreatedAt:   link.CreatedAt,
		ExpiresAt:   link.ExpiresAt,
	})
}

// Redirect records the visit and then redirects. The click write is detached
// from the request context so a client hanging up does not abort it.
func (h *LinksHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if appvalidation.Validate(codeParam{Code: code}) != nil {
		http.NotFound(w, r)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.clickTimeout)
	defer cancel()

	target, err := h.svc.ResolveAndRecord(ctx, code, links.ClickMetadata{
		IPAddress: httputils.ClientIP(r, h.trustProxy),
		UserAgent: r.UserAgent(),
		Referer:   r.Referer(),
	})
	if err != nil {
		switch {
		case errors.Is(err, links.ErrNotFound):
			http.NotFound(w, r)
		default:
			logger.Error("failed to resolve short code", zap.Error(err), zap.String("code", code))
			w.WriteHeader(http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Location", target)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(h.redirectStatus)
}

type clickResponse struct {
	ClickedAt time.Time `json:"clickedAt"`
	IPAddress string    `json:"ipAddress,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	Referer   string    `json:"referer,omitempty"`
}

type statsResponse struct {
	ShortCode    string          `json:"shortCode"`
	OriginalURL  string          `json:"originalUrl"`
	ClickCount   int64           `json:"clickCount"`
	RecentClicks []clickResponse `json:"recentClicks"`
}

func (h *LinksHandler) Stats(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if appvalidation.Validate(codeParam{Code: code}) != nil {
		httputils.WriteAPIError(w, r, constants.ErrLinkNotFound)
		return
	}

	stats, err := h.svc.GetStats(r.Context(), code)
	if err != nil {
		h.writeLookupError(w, r, err, code, "failed to fetch stats")
		return
	}

	recent := make([]clickResponse, 0, len(stats.RecentClicks))
	for _, c := range stats.RecentClicks {
		recent = append(recent, clickResponse{
			ClickedAt: c.ClickedAt,
			IPAddress: c.IPAddress,
			UserAgent: c.UserAgent,
			Referer:   c.Referer,
		})
	}

	httputils.WriteAPISuccess(w, r, constants.SuccessStatsFound, statsResponse{
		ShortCode:    stats.ShortCode,
		OriginalURL:  stats.OriginalURL,
		ClickCount:   stats.ClickCount,
		RecentClicks: recent,
	})
}

type dailyStatsResponse struct {
	ShortCode string             `json:"shortCode"`
	From      string             `json:"from"`
	To        string             `json:"to"`
	Daily     []links.DailyCount `json:"daily"`
}

type dailyStatsQueryParams struct {
	From string `json:"from" validate:"required,datetime=2006-01-02"`
	To   string `json:"to" validate:"required,datetime=2006-01-02"`
}

func (h *LinksHandler) DailyStats(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if appvalidation.Validate(codeParam{Code: code}) != nil {
		httputils.WriteAPIError(w, r, constants.ErrLinkNotFound)
		return
	}

	params := dailyStatsQueryParams{
		From: r.URL.Query().Get("from"),
		To:   r.URL.Query().Get("to"),
	}
	if err := appvalidation.Validate(params); err != nil {
		apiErr := constants.ErrInvalidDateRange
		switch field, tag := appvalidation.FirstFieldError(err); {
		case tag == "required":
			apiErr = constants.ErrMissingDateRange
		case tag == "datetime":
			apiErr = apiErr.WithMessage("invalid " + field + " (YYYY-MM-DD)")
		}
		httputils.WriteAPIError(w, r, apiErr)
		return
	}

	from, _ := time.Parse(time.DateOnly, params.From)
	to, _ := time.Parse(time.DateOnly, params.To)

	daily, err := h.svc.GetDailyStats(r.Context(), code, from, to)
	if err != nil {
		switch {
		case errors.Is(err, links.ErrInvalidRange):
			httputils.WriteAPIError(w, r, constants.ErrReversedDateRange)
			return
		case errors.Is(err, links.ErrRangeTooLarge):
			httputils.WriteAPIError(w, r, constants.ErrDateRangeTooLarge)
			return
		}
		h.writeLookupError(w, r, err, code, "failed to fetch daily stats")
		return
	}

	httputils.WriteAPISuccess(w, r, constants.SuccessDailyStatsFound, dailyStatsResponse{
		ShortCode: code,
		From:      from.Format(time.DateOnly),
		To:        to.Format(time.DateOnly),
		Daily:     daily,
	})
}

func (h *LinksHandler) writeLookupError(w http.ResponseWriter, r *http.Request, err error, code, msg string) {
	if errors.Is(err, links.ErrNotFound) {
		httputils.WriteAPIError(w, r, constants.ErrLinkNotFound)
		return
	}
	logger.Error(msg, zap.Error(err), zap.String("code", code))
	httputils.WriteAPIError(w, r, constants.ErrInternalError)
}
