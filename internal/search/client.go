// Package search 封装上游职位搜索 API（JSearch / RapidAPI）的访问。
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/javabetatester/JobAlerts/internal/config"
)

var (
	// ErrUnauthorized 表示 API Key 无效或缺失。
	ErrUnauthorized = errors.New("search api unauthorized")

	// ErrRateLimited 表示触发了上游限流。
	ErrRateLimited = errors.New("search api rate limited")
)

// APIError 表示除认证 / 限流外的上游 HTTP 错误。
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("search api http %d: %s", e.StatusCode, e.Body)
}

// Response 是上游搜索接口的响应。
type Response struct {
	Status    string `json:"status"`
	RequestID string `json:"request_id"`
	Data      []Job  `json:"data"`
	Count     int    `json:"count"`
}

// Job 是上游返回的一条原始职位数据。
type Job struct {
	JobID               string   `json:"job_id"`
	EmployerName        string   `json:"employer_name"`
	JobTitle            string   `json:"job_title"`
	JobDescription      string   `json:"job_description"`
	JobApplyLink        string   `json:"job_apply_link"`
	JobCity             string   `json:"job_city"`
	JobState            string   `json:"job_state"`
	JobCountry          string   `json:"job_country"`
	JobEmploymentType   string   `json:"job_employment_type"`
	JobMinSalary        *float64 `json:"job_min_salary"`
	JobMaxSalary        *float64 `json:"job_max_salary"`
	JobPostedAtDatetime string   `json:"job_posted_at_datetime_utc"`
}

// Client 定义搜索客户端接口，调度器只依赖这一个方法。
type Client interface {
	// Search 按关键词 + 地区检索职位。employmentType 为空表示不过滤，
	// page 小于 1 时按第 1 页处理。空响应不是错误，返回 Data 为空的 Response。
	Search(ctx context.Context, query, location, employmentType string, page int) (*Response, error)
}

// HTTPClient 是基于 RapidAPI 的 Client 实现。
type HTTPClient struct {
	cfg    *config.SearchConfig
	hc     *http.Client
	logger *slog.Logger
}

// NewHTTPClient 创建 HTTPClient。
func NewHTTPClient(cfg *config.SearchConfig, logger *slog.Logger) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		cfg:    cfg,
		hc:     &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Search 调用上游 /search 接口。
func (c *HTTPClient) Search(ctx context.Context, query, location, employmentType string, page int) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query is empty")
	}
	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("query", BuildQuery(query, location))
	params.Set("page", strconv.Itoa(page))
	params.Set("num_pages", "1")
	if et := strings.TrimSpace(employmentType); et != "" {
		params.Set("employment_types", et)
	}

	endpoint := "https://" + c.cfg.APIHost + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("X-RapidAPI-Key", c.cfg.APIKey)
	req.Header.Set("X-RapidAPI-Host", c.cfg.APIHost)
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	if len(body) == 0 {
		// 上游偶尔返回空 body，视为无结果而不是错误
		return &Response{Status: "success"}, nil
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	c.logger.Debug("search api returned",
		slog.String("query", query),
		slog.Int("results", len(out.Data)))
	return &out, nil
}

// BuildQuery 拼接最终的检索语句："<query> in <location>"。
func BuildQuery(query, location string) string {
	query = strings.TrimSpace(query)
	location = strings.TrimSpace(location)
	if location == "" {
		return query
	}
	return query + " in " + location
}

// ErrorKind 将错误归类为指标用的标签值。
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	default:
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return "http_" + strconv.Itoa(apiErr.StatusCode)
		}
		return "other"
	}
}
