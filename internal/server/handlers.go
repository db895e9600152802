package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campaigntrip/convertapi/internal/circuitbreaker"
	"github.com/campaigntrip/convertapi/internal/convert"
	"github.com/campaigntrip/convertapi/internal/cookie"
	"github.com/campaigntrip/convertapi/internal/logging"
	"github.com/campaigntrip/convertapi/internal/metrics"
	"github.com/campaigntrip/convertapi/internal/resolve"
	"github.com/campaigntrip/convertapi/internal/signer"
	"github.com/campaigntrip/convertapi/internal/validation"
)

// DecodeRequest is the body of POST /v1/cookies/decode
type DecodeRequest struct {
	Cookie    string `json:"cookie"`
	Key       string `json:"key,omitempty"`
	Full      bool   `json:"full,omitempty"`
	Resolve   bool   `json:"resolve,omitempty"`
	AccountID string `json:"accountId,omitempty"`
	ProjectID string `json:"projectId,omitempty"`
}

// DecodeResponse is the body returned for a decoded cookie
type DecodeResponse struct {
	Mode     string `json:"mode"`
	Key      string `json:"key,omitempty"`
	Resolved bool   `json:"resolved"`
	Data     any    `json:"data"`
}

func (s *Server) decodeCookieHandler(c *gin.Context) {
	var req DecodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "request body must be a JSON object",
		})
		return
	}

	req.Cookie = validation.SanitizeString(req.Cookie, validation.MaxCookieLength+1)
	if req.Key == "" {
		req.Key = cookie.DefaultField
	}
	if errs := validation.Validate(
		validation.Required("cookie", req.Cookie),
		validation.MaxLength("cookie", req.Cookie, validation.MaxCookieLength),
		validation.FieldKey("key", req.Key),
		validation.NumericID("accountId", req.AccountID),
		validation.NumericID("projectId", req.ProjectID),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"message": errs.Error(),
			"details": errs,
		})
		return
	}

	mode := "field"
	if req.Full {
		mode = "full"
	}

	var (
		data cookie.Data
		err  error
	)
	if req.Full {
		data, err = cookie.Decode(req.Cookie)
	} else {
		data, err = cookie.DecodeField(req.Cookie, req.Key)
	}
	if err != nil {
		metrics.CookieDecodesTotal.WithLabelValues(mode, "error").Inc()
		s.writeDecodeError(c, err)
		return
	}
	metrics.CookieDecodesTotal.WithLabelValues(mode, "ok").Inc()

	resp := DecodeResponse{Mode: mode, Data: data}
	if !req.Full {
		resp.Key = req.Key
	}

	if !req.Resolve {
		c.JSON(http.StatusOK, resp)
		return
	}

	accountID := orDefault(req.AccountID, s.cfg.AccountID)
	projectID := orDefault(req.ProjectID, s.cfg.ProjectID)
	if s.client == nil || accountID == "" || projectID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "resolve_unavailable",
			"message": "resolving ids needs API credentials plus an account and project",
		})
		return
	}

	ctx := c.Request.Context()
	var maps *resolve.Maps
	err = s.breaker.Do(accountID+"/"+projectID, func() (err error) {
		maps, err = s.client.ExperienceVariantMaps(ctx, accountID, projectID)
		return err
	}, upstreamFailure)
	if errors.Is(err, circuitbreaker.ErrOpen) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "upstream_unavailable",
			"message": "the Convert API is failing for this project; try again later",
		})
		return
	}
	if err != nil {
		logging.L(ctx).Error("failed to build experience maps", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "upstream_failed",
			"message": err.Error(),
		})
		return
	}

	tr := s.translator(ctx, req.Full)
	if req.Full {
		translated, err := tr.TranslateCookie(data, maps)
		if err != nil {
			s.writeDecodeError(c, err)
			return
		}
		resp.Data = translated
	} else {
		translated, err := tr.TranslateField(data, req.Key, maps)
		if err != nil {
			s.writeDecodeError(c, err)
			return
		}
		resp.Data = translated
	}
	resp.Resolved = true

	c.JSON(http.StatusOK, resp)
}

// upstreamFailure reports whether err says the Convert API is unhealthy,
// as opposed to rejecting this particular request.
func upstreamFailure(err error) bool {
	var apiErr *convert.APIError
	return errors.Is(err, convert.ErrTransport) || (errors.As(err, &apiErr) && apiErr.Retryable())
}

func (s *Server) writeDecodeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, cookie.ErrFieldNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "field_not_found", "message": err.Error()})
	case errors.Is(err, cookie.ErrMalformedCookie):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "malformed_cookie", "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
	}
}

// SignatureRequest is the body of POST /v1/signatures
type SignatureRequest struct {
	ApplicationID string `json:"applicationId,omitempty"`
	Secret        string `json:"secret,omitempty"`
	URL           string `json:"url"`
	Body          string `json:"body,omitempty"`
	Expires       int64  `json:"expires,omitempty"`
}

// SignatureResponse shows every intermediate of a request signature
type SignatureResponse struct {
	Message   string            `json:"message"`
	Signature string            `json:"signature"`
	Expires   int64             `json:"expires"`
	Headers   map[string]string `json:"headers"`
}

func (s *Server) signatureHandler(c *gin.Context) {
	var req SignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "request body must be a JSON object"})
		return
	}

	req.ApplicationID = orDefault(req.ApplicationID, s.cfg.ApplicationID)
	req.Secret = orDefault(req.Secret, s.cfg.Secret)
	if errs := validation.Validate(
		validation.Required("url", req.URL),
		validation.Required("applicationId", req.ApplicationID),
		validation.Required("secret", req.Secret),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": errs.Error(), "details": errs})
		return
	}

	expires := req.Expires
	if expires == 0 {
		expires = signer.Expires(time.Now())
	}
	sig := signer.Sign(req.ApplicationID, expires, req.URL, req.Body, req.Secret)

	c.JSON(http.StatusOK, SignatureResponse{
		Message:   signer.Message(req.ApplicationID, expires, req.URL, req.Body),
		Signature: sig,
		Expires:   expires,
		Headers: map[string]string{
			signer.HeaderExpires:       strconv.FormatInt(expires, 10),
			signer.HeaderApplicationID: req.ApplicationID,
			signer.HeaderAuthorization: signer.Authorization(sig),
		},
	})
}

func orDefault(value, defaultValue string) string {
	if value != "" {
		return value
	}
	return defaultValue
}
