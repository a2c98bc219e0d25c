package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"movedesk/internal"
	"movedesk/internal/config"
)

// Client talks to the movedesk marketplace backend: the description parser,
// the catalog variant resolver, custom-item creation and order item
// persistence. All four calls share the bearer-token envelope protocol.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
	log        *zap.Logger
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors"`
	Data    json.RawMessage `json:"data"`
}

func NewClient(cfg config.Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.BackendTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.BackendRateLimitRPS),
		log:        log,
	}
}

// ParseDescription sends a free-text inventory description to the upstream
// parser and returns the normalized parse result. The result gets a fresh
// seed id; the clarify session uses it to guard one-shot queue construction.
func (c *Client) ParseDescription(ctx context.Context, orderID, text string) (internal.ParseResult, error) {
	body, err := c.postJSON(ctx, "orders/"+url.PathEscape(orderID)+"/parse-description", map[string]any{
		"text":     text,
		"language": c.cfg.Language,
	})
	if err != nil {
		return internal.ParseResult{}, err
	}

	var wire parseResultWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return internal.ParseResult{}, fmt.Errorf("decode parse result: %w", err)
	}

	result := normalizeParseResult(wire)
	result.SeedID = uuid.NewString()
	return result, nil
}

// ResolveVariant asks the catalog which concrete variant the collected
// attribute answers denote for the given generic item type.
func (c *Client) ResolveVariant(ctx context.Context, itemTypeID string, answers map[string]string, language string) (internal.ResolveVariantResult, error) {
	body, err := c.postJSON(ctx, "catalog/resolve-variant", map[string]any{
		"itemTypeId": itemTypeID,
		"answers":    answers,
		"language":   language,
	})
	if err != nil {
		return internal.ResolveVariantResult{}, err
	}

	var out internal.ResolveVariantResult
	if err := json.Unmarshal(body, &out); err != nil {
		return internal.ResolveVariantResult{}, fmt.Errorf("decode resolve result: %w", err)
	}
	if out.Found && out.Variant == nil {
		return internal.ResolveVariantResult{}, errors.New("resolve result marked found without a variant")
	}
	return out, nil
}

// CreateCustomItem registers a brand-new catalog entry and returns it shaped
// as a resolved variant; the price defaults to the draft's estimate.
func (c *Client) CreateCustomItem(ctx context.Context, draft internal.CustomItemDraft) (internal.ResolvedVariant, error) {
	body, err := c.postJSON(ctx, "catalog/custom-items", draft)
	if err != nil {
		return internal.ResolvedVariant{}, err
	}

	var out struct {
		Success bool                 `json:"success"`
		Item    internal.CatalogItem `json:"item"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return internal.ResolvedVariant{}, fmt.Errorf("decode custom item: %w", err)
	}
	if !out.Success || out.Item.ID == "" {
		return internal.ResolvedVariant{}, errors.New("custom item creation rejected")
	}

	return internal.ResolvedVariant{
		ID:        out.Item.ID,
		NameEn:    out.Item.NameEn,
		NameHe:    out.Item.NameHe,
		BasePrice: draft.EstimatedPrice,
	}, nil
}

// AddOrderItem persists one finalized line item on the order.
func (c *Client) AddOrderItem(ctx context.Context, orderID string, payload internal.OrderItemPayload) (internal.OrderItem, error) {
	body, err := c.postJSON(ctx, "orders/"+url.PathEscape(orderID)+"/items", payload)
	if err != nil {
		return internal.OrderItem{}, err
	}

	var out internal.OrderItem
	if err := json.Unmarshal(body, &out); err != nil {
		return internal.OrderItem{}, fmt.Errorf("decode order item: %w", err)
	}
	return out, nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	if strings.TrimSpace(c.cfg.BackendAPIToken) == "" {
		return nil, errors.New("missing MOVEDESK_API_TOKEN")
	}

	baseURL := strings.TrimRight(c.cfg.BackendBaseURL, "/") + "/"
	u, err := url.Parse(baseURL + endpoint)
	if err != nil {
		return nil, err
	}

	blob, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		c.limiter.WaitTurn()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(blob))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.BackendAPIToken)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < 5 {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				c.log.Debug("backend retry", zap.String("endpoint", endpoint), zap.Int("status", resp.StatusCode), zap.Int("attempt", attempt))
				time.Sleep(backoff)
				lastErr = fmt.Errorf("backend status %d", resp.StatusCode)
				continue
			}
			return nil, fmt.Errorf("backend api error: status=%d body=%s", resp.StatusCode, string(respBody))
		}

		var apiResp apiResponse
		if err := json.Unmarshal(respBody, &apiResp); err != nil {
			return nil, err
		}
		if !apiResp.Success {
			return nil, fmt.Errorf("backend api unsuccessful: %s", firstNonEmpty(apiResp.Message, string(apiResp.Errors)))
		}
		return apiResp.Data, nil
	}

	if lastErr == nil {
		lastErr = errors.New("backend request failed")
	}
	return nil, lastErr
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
