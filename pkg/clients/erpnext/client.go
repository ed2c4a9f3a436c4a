package erpnext

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/tacogroup/prodlive/internal/config"
	"github.com/tacogroup/prodlive/internal/domain/models"
)

// Client exposes the ERPNext operations used by the application.
type Client interface {
	FetchActiveWorkOrders(ctx context.Context) ([]models.WorkOrder, error)
}

// APIClient is a resty-backed implementation of Client.
type APIClient struct {
	httpClient *resty.Client
}

// workOrderFields and workOrderFilters follow the ERPNext list API: JSON
// arrays passed as query string values.
const (
	workOrderFields = `["name","qty","produced_qty","status",` +
		`"custom_machine_id","custom_pipe_size","custom_location"]`
	workOrderFilters = `[["status","in",["In Process","Not Started"]]]`
)

// NewClient builds an ERPNext API client from the provided configuration.
func NewClient(cfg config.ERPConfig) *APIClient {
	restyClient := resty.New()
	restyClient.
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetHeader("Authorization", fmt.Sprintf("token %s:%s", cfg.APIKey, cfg.APISecret)).
		SetHeader("Accept", "application/json").
		SetTimeout(10 * time.Second)

	return &APIClient{httpClient: restyClient}
}

type workOrderListResponse struct {
	Data []models.WorkOrder `json:"data"`
}

// apiError represents an ERPNext error payload.
type apiError struct {
	Message   string `json:"message"`
	Exception string `json:"exception"`
}

// FetchActiveWorkOrders returns the work orders currently in process or not
// yet started. An empty result is not an error.
func (c *APIClient) FetchActiveWorkOrders(ctx context.Context) ([]models.WorkOrder, error) {
	result := new(workOrderListResponse)
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("fields", workOrderFields).
		SetQueryParam("filters", workOrderFilters).
		SetResult(result).
		SetError(apiErr).
		Get("/api/resource/Work Order")
	if err != nil {
		return nil, fmt.Errorf("fetch work orders: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		message := apiErr.Message
		if message == "" {
			message = apiErr.Exception
		}
		return nil, fmt.Errorf("erpnext api error: code=%d, message=%s", resp.StatusCode(), message)
	}

	return result.Data, nil
}
