package yida

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	tokenPath       = "/v1.0/oauth2/accessToken"
	searchPath      = "/v1.0/yida/forms/instances/search"
	instancesPath   = "/v1.0/yida/forms/instances"
	batchSavePath   = "/v1.0/yida/forms/instances/batchSave"
	tokenHeader     = "x-acs-dingtalk-access-token"
	tokenSafetySkew = 60 * time.Second
	defaultExpireIn = 7200
)

// FormClient exposes the Yida form-instance operations used by the ledger store.
type FormClient interface {
	SearchAll(ctx context.Context, formUUID string, conditions map[string]any) ([]FormInstance, error)
	UpdateInstance(ctx context.Context, formUUID, instanceID string, data map[string]any) error
	CreateInstance(ctx context.Context, formUUID string, data map[string]any) (string, error)
	BatchCreateInstances(ctx context.Context, formUUID string, rows []map[string]any) ([]string, error)
}

// Options configures a Client.
type Options struct {
	BaseURL     string
	AppKey      string
	AppSecret   string
	AppType     string
	SystemToken string
	UserID      string
	PageSize    int
	Timeout     time.Duration
	// Cache stores access tokens; defaults to an in-process cache.
	Cache TokenCache
}

// Client is a resty-backed implementation of FormClient.
type Client struct {
	httpClient  *resty.Client
	appKey      string
	appSecret   string
	appType     string
	systemToken string
	userID      string
	pageSize    int
	cache       TokenCache

	tokenMu sync.Mutex
}

// NewClient builds a Yida client using the provided options.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	cache := opts.Cache
	if cache == nil {
		cache = NewMemoryTokenCache()
	}

	restyClient := resty.New().
		SetBaseURL(strings.TrimSuffix(opts.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)

	return &Client{
		httpClient:  restyClient,
		appKey:      opts.AppKey,
		appSecret:   opts.AppSecret,
		appType:     opts.AppType,
		systemToken: opts.SystemToken,
		userID:      opts.UserID,
		pageSize:    pageSize,
		cache:       cache,
	}
}

// APIError represents a non-2xx DingTalk response.
type APIError struct {
	Status    int    `json:"-"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestid"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dingtalk api error: status=%d, code=%s, message=%s", e.Status, e.Code, e.Message)
}

// IsUnauthorized reports whether err is a DingTalk 401.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
	ExpireIn    int64  `json:"expireIn"`
}

// AccessToken returns a cached token or requests a new one.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	token, ok, err := c.cache.Get(ctx, c.cacheKey())
	if err != nil {
		return "", fmt.Errorf("read token cache: %w", err)
	}
	if ok {
		return token, nil
	}

	if c.appKey == "" || c.appSecret == "" {
		return "", errors.New("dingtalk app key and secret are required")
	}

	result := new(tokenResponse)
	apiErr := new(APIError)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(map[string]string{"appKey": c.appKey, "appSecret": c.appSecret}).
		SetResult(result).
		SetError(apiErr).
		Post(tokenPath)
	if err != nil {
		return "", fmt.Errorf("request access token: %w", err)
	}
	if resp.IsError() {
		apiErr.Status = resp.StatusCode()
		return "", apiErr
	}
	if result.AccessToken == "" {
		return "", fmt.Errorf("access token missing in response: %s", truncate(resp.String()))
	}

	expireIn := result.ExpireIn
	if expireIn <= 0 {
		expireIn = defaultExpireIn
	}
	ttl := time.Duration(expireIn)*time.Second - tokenSafetySkew
	if ttl > 0 {
		if err := c.cache.Set(ctx, c.cacheKey(), result.AccessToken, ttl); err != nil {
			return "", fmt.Errorf("write token cache: %w", err)
		}
	}

	return result.AccessToken, nil
}

func (c *Client) invalidateToken(ctx context.Context) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	_ = c.cache.Delete(ctx, c.cacheKey())
}

func (c *Client) cacheKey() string {
	return "dingtalk:access_token:" + c.appKey
}

// call sends an authenticated request. A 401 drops the cached token and the
// request is sent once more with a fresh one.
func (c *Client) call(ctx context.Context, method, path string, body any) ([]byte, error) {
	raw, err := c.callOnce(ctx, method, path, body)
	if err != nil && IsUnauthorized(err) {
		c.invalidateToken(ctx)
		raw, err = c.callOnce(ctx, method, path, body)
	}
	return raw, err
}

func (c *Client) callOnce(ctx context.Context, method, path string, body any) ([]byte, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	apiErr := new(APIError)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader(tokenHeader, token).
		SetBody(body).
		SetError(apiErr).
		Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr.Status = resp.StatusCode()
		if apiErr.Message == "" {
			apiErr.Message = truncate(resp.String())
		}
		return nil, apiErr
	}
	return resp.Body(), nil
}

func (c *Client) baseBody(formUUID string) map[string]any {
	return map[string]any{
		"appType":     c.appType,
		"systemToken": c.systemToken,
		"userId":      c.userID,
		"formUuid":    formUUID,
	}
}

// SearchPage is one page of form instances.
type SearchPage struct {
	Instances   []FormInstance
	CurrentPage int
	TotalCount  int
}

// Search fetches one page of instances matching the field conditions.
func (c *Client) Search(ctx context.Context, formUUID string, conditions map[string]any, page int) (SearchPage, error) {
	body := c.baseBody(formUUID)
	body["pageNumber"] = page
	body["pageSize"] = c.pageSize
	body["dataCreateFrom"] = 0
	if len(conditions) > 0 {
		encoded, err := json.Marshal(conditions)
		if err != nil {
			return SearchPage{}, fmt.Errorf("encode search conditions: %w", err)
		}
		body["searchFieldJson"] = string(encoded)
	}

	raw, err := c.call(ctx, http.MethodPost, searchPath, body)
	if err != nil {
		return SearchPage{}, fmt.Errorf("search form %s: %w", formUUID, err)
	}
	return decodeSearchPage(raw), nil
}

// SearchAll walks every page of matching instances.
func (c *Client) SearchAll(ctx context.Context, formUUID string, conditions map[string]any) ([]FormInstance, error) {
	var all []FormInstance
	for page := 1; ; page++ {
		result, err := c.Search(ctx, formUUID, conditions, page)
		if err != nil {
			return nil, err
		}
		all = append(all, result.Instances...)

		if len(result.Instances) == 0 || len(result.Instances) < c.pageSize {
			break
		}
		if result.TotalCount > 0 && len(all) >= result.TotalCount {
			break
		}
	}
	return all, nil
}

// UpdateInstance changes the given fields of one instance; other fields are kept.
func (c *Client) UpdateInstance(ctx context.Context, formUUID, instanceID string, data map[string]any) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode update data: %w", err)
	}
	body := c.baseBody(formUUID)
	body["formInstanceId"] = instanceID
	body["updateFormDataJson"] = string(encoded)

	if _, err := c.call(ctx, http.MethodPut, instancesPath, body); err != nil {
		return fmt.Errorf("update instance %s: %w", instanceID, err)
	}
	return nil
}

// CreateInstance inserts one instance and returns its id.
func (c *Client) CreateInstance(ctx context.Context, formUUID string, data map[string]any) (string, error) {
	encoded, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode form data: %w", err)
	}
	body := c.baseBody(formUUID)
	body["formDataJson"] = string(encoded)

	raw, err := c.call(ctx, http.MethodPost, instancesPath, body)
	if err != nil {
		return "", fmt.Errorf("create instance in %s: %w", formUUID, err)
	}
	ids := decodeResultIDs(raw)
	if len(ids) == 0 {
		return "", nil
	}
	return ids[0], nil
}

// BatchCreateInstances inserts several instances in one call. Yida expects
// each row as its own JSON string.
func (c *Client) BatchCreateInstances(ctx context.Context, formUUID string, rows []map[string]any) ([]string, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	list := make([]string, 0, len(rows))
	for _, row := range rows {
		encoded, err := json.Marshal(row)
		if err != nil {
			return nil, fmt.Errorf("encode form data: %w", err)
		}
		list = append(list, string(encoded))
	}

	body := c.baseBody(formUUID)
	body["formDataJsonList"] = list
	body["noExecuteExpression"] = true
	body["asynchronousExecution"] = false
	body["keepRunningAfterException"] = true

	raw, err := c.call(ctx, http.MethodPost, batchSavePath, body)
	if err != nil {
		return nil, fmt.Errorf("batch create in %s: %w", formUUID, err)
	}
	return decodeResultIDs(raw), nil
}

func truncate(s string) string {
	const limit = 512
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
