// Package registry предоставляет клиент для академического реестра университета.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Client инкапсулирует HTTP-взаимодействие с академическим реестром.
type Client struct {
	baseURL    string
	httpClient *retryablehttp.Client
}

// StudentRecord описывает запись о студенте в ответе академического реестра.
type StudentRecord struct {
	RegistrationNumber string `json:"registration_number"`
	Name               string `json:"name"`
	Email              string `json:"email"`
	Faculty            string `json:"faculty"`
	Course             string `json:"course"`
	GraduationYear     int    `json:"graduation_year"`
}

// NewClient создаёт HTTP-клиент для обращения к академическому реестру по указанному адресу.
func NewClient(baseURL string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.HTTPClient.Timeout = 5 * time.Second
	rc.Logger = nil

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: rc,
	}
}

// GetStudent запрашивает данные студента по регистрационному номеру.
// При отсутствии студента в реестре возвращает nil без ошибки.
func (c *Client) GetStudent(ctx context.Context, regNumber string) (*StudentRecord, int, error) {
	if c == nil || c.baseURL == "" {
		return nil, 0, fmt.Errorf("registry client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	endpoint := fmt.Sprintf("%s/api/students/%s", base, url.PathEscape(regNumber))

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, resp.StatusCode, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result StudentRecord
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}

	return &result, resp.StatusCode, nil
}
