package qrcode

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"qrcode_dashboard/graph/model"
	"qrcode_dashboard/internal/metrics"

	"go.uber.org/zap"
)

const (
	endpointGenerate   = "generate"
	endpointRegenerate = "regenerate"
	endpointReverse    = "reverse"

	// ограничение на размер ответа удалённого сервиса
	maxResponseSize = 5 << 20
)

type Client interface {
	Generate(ctx context.Context, params model.GenerateParams) (*model.QRImage, error)
	Regenerate(ctx context.Context, params model.RegenerateParams) (*model.QRImage, error)
	Reverse(ctx context.Context, params model.ReverseParams) (*ReverseResponse, error)
	ReverseGet(ctx context.Context, params model.ReverseParams) (*ReverseResponse, error)
	Resolve(ctx context.Context, payload *model.ScanPayload) (*model.Identity, error)
}

type Options struct {
	BaseURL string
	Timeout time.Duration
	// UseGet переключает Resolve на GET /api/reverse/{id}/{sg}/{t}/{v}
	UseGet     bool
	HTTPClient *http.Client
}

type client struct {
	baseURL    string
	useGet     bool
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(opts Options, logger *zap.Logger) Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		useGet:     opts.UseGet,
		httpClient: httpClient,
		logger:     logger,
	}
}

// ReverseResponse ответ /api/reverse
type ReverseResponse struct {
	Success      bool                 `json:"success"`
	Number       flexString           `json:"number"`
	OriginalData *model.ReverseParams `json:"originalData,omitempty"`
	Error        string               `json:"error,omitempty"`
}

type errorEnvelope struct {
	Error string `json:"error"`
}

// flexString принимает номер как строкой, так и числом
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("number must be a string or a number: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

func (c *client) Generate(ctx context.Context, params model.GenerateParams) (*model.QRImage, error) {
	path := "/api/qrcode/" + joinPath(params.ID, params.Number, string(params.Version))
	return c.fetchImage(ctx, endpointGenerate, path, "failed to generate QR code")
}

func (c *client) Regenerate(ctx context.Context, params model.RegenerateParams) (*model.QRImage, error) {
	path := "/api/regenerate/" + joinPath(params.ID, params.Signature, params.Timestamp.String(), string(params.Version))
	return c.fetchImage(ctx, endpointRegenerate, path, "failed to regenerate QR code")
}

func (c *client) Reverse(ctx context.Context, params model.ReverseParams) (*ReverseResponse, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal reverse request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/reverse", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doReverse(req, params.ID)
}

func (c *client) ReverseGet(ctx context.Context, params model.ReverseParams) (*ReverseResponse, error) {
	path := "/api/reverse/" + joinPath(params.ID, params.Signature, params.Timestamp.String(), string(params.Version))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	return c.doReverse(req, params.ID)
}

// Resolve отправляет отсканированные данные на проверку и возвращает номер участника.
// Повторных попыток нет: ошибка сразу уходит вызывающему.
func (c *client) Resolve(ctx context.Context, payload *model.ScanPayload) (*model.Identity, error) {
	if payload == nil {
		return nil, fmt.Errorf("scan payload cannot be nil")
	}

	var (
		resp *ReverseResponse
		err  error
	)
	if c.useGet {
		resp, err = c.ReverseGet(ctx, payload.ReverseParams())
	} else {
		resp, err = c.Reverse(ctx, payload.ReverseParams())
	}
	if err != nil {
		return nil, err
	}

	if !resp.Success {
		c.logger.Warn("reverse lookup rejected", zap.String("qr_id", payload.ID), zap.String("reason", resp.Error))
		return nil, &LookupError{Kind: LookupRejected, Message: resp.Error}
	}

	if resp.Number == "" {
		c.logger.Error("reverse lookup returned no number", zap.String("qr_id", payload.ID))
		return nil, &LookupError{Kind: LookupMalformed, Message: "success response without number"}
	}

	return &model.Identity{
		ID:      payload.ID,
		Number:  string(resp.Number),
		Version: payload.Version,
	}, nil
}

func (c *client) doReverse(req *http.Request, qrID string) (*ReverseResponse, error) {
	body, _, err := c.do(req, endpointReverse)
	if err != nil {
		return nil, err
	}

	var resp ReverseResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.logger.Error("failed to parse reverse response", zap.Error(err), zap.String("qr_id", qrID))
		metrics.RemoteCallsTotal.WithLabelValues(endpointReverse, metrics.OutcomeMalformed).Inc()
		return nil, &LookupError{Kind: LookupMalformed, Message: "invalid response body", Err: err}
	}

	metrics.RemoteCallsTotal.WithLabelValues(endpointReverse, reverseOutcome(&resp)).Inc()
	c.logger.Debug("reverse lookup completed", zap.String("qr_id", qrID), zap.Bool("success", resp.Success))
	return &resp, nil
}

func reverseOutcome(resp *ReverseResponse) string {
	switch {
	case !resp.Success:
		return metrics.OutcomeRejected
	case resp.Number == "":
		return metrics.OutcomeMalformed
	}
	return metrics.OutcomeSuccess
}

func (c *client) fetchImage(ctx context.Context, endpoint, path, fallback string) (*model.QRImage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	body, header, err := c.do(req, endpoint)
	if err != nil {
		var lookupErr *LookupError
		if errors.As(err, &lookupErr) && lookupErr.Message == "" {
			lookupErr.Message = fallback
		}
		return nil, err
	}

	metrics.RemoteCallsTotal.WithLabelValues(endpoint, metrics.OutcomeSuccess).Inc()

	contentType := header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}

	return &model.QRImage{ContentType: contentType, Data: body}, nil
}

// do выполняет запрос и возвращает тело и заголовки успешного ответа.
// Успешный вызов учитывается в метриках вызывающим, после разбора тела.
func (c *client) do(req *http.Request, endpoint string) ([]byte, http.Header, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.RemoteCallDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		c.logger.Error("qrcode api request failed", zap.Error(err), zap.String("endpoint", endpoint))
		metrics.RemoteCallsTotal.WithLabelValues(endpoint, metrics.OutcomeError).Inc()
		return nil, nil, &LookupError{Kind: LookupTransport, Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("failed to close response body", zap.Error(err))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		metrics.RemoteCallsTotal.WithLabelValues(endpoint, metrics.OutcomeError).Inc()
		return nil, nil, &LookupError{Kind: LookupTransport, Status: resp.StatusCode, Err: err}
	}
	if len(body) > maxResponseSize {
		c.logger.Error("qrcode api response too large", zap.String("endpoint", endpoint), zap.Int("limit", maxResponseSize))
		metrics.RemoteCallsTotal.WithLabelValues(endpoint, metrics.OutcomeMalformed).Inc()
		return nil, nil, &LookupError{Kind: LookupMalformed, Status: resp.StatusCode, Message: "response too large"}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope errorEnvelope
		_ = json.Unmarshal(body, &envelope)
		c.logger.Error("qrcode api returned error",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.String("error", envelope.Error))
		metrics.RemoteCallsTotal.WithLabelValues(endpoint, metrics.OutcomeError).Inc()
		return nil, nil, &LookupError{Kind: LookupTransport, Status: resp.StatusCode, Message: envelope.Error}
	}

	return body, resp.Header, nil
}

func joinPath(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return strings.Join(escaped, "/")
}
