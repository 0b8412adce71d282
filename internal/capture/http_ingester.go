package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"example.com/backstage/services/warehouse/internal/models"
	"example.com/backstage/services/warehouse/internal/services"

	"github.com/pkg/errors"
)

const storeQRPath = "/api/v1/store_qr"

// HTTPIngester sends scans through the API's POST /store_qr endpoint, so the
// capture process never writes to the database itself
type HTTPIngester struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

type storeQRRequest struct {
	QRText string `json:"qr_text"`
}

type storeQRResponse struct {
	Created bool            `json:"created"`
	Product *models.Product `json:"product"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// NewHTTPIngester creates an ingester for the API at baseURL, authenticating with an admin key
func NewHTTPIngester(baseURL, apiKey string, timeout time.Duration) (*HTTPIngester, error) {
	if baseURL == "" {
		return nil, errors.New("capture API URL is required")
	}
	if apiKey == "" {
		return nil, errors.New("capture API key is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPIngester{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// IngestQR posts the scan text. A rejected payload comes back as services.ErrValidation.
func (i *HTTPIngester) IngestQR(ctx context.Context, text string) (*models.Product, bool, error) {
	body, err := json.Marshal(storeQRRequest{QRText: text})
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to encode scan")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.baseURL+storeQRPath, bytes.NewReader(body))
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to build store_qr request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+i.apiKey)

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to call store_qr")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		var out storeQRResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, false, errors.Wrap(err, "failed to decode store_qr response")
		}
		return out.Product, out.Created, nil
	case http.StatusBadRequest:
		return nil, false, errors.Wrap(services.ErrValidation, apiMessage(resp))
	}
	return nil, false, fmt.Errorf("store_qr returned %d: %s", resp.StatusCode, apiMessage(resp))
}

func apiMessage(resp *http.Response) string {
	var e errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
		return http.StatusText(resp.StatusCode)
	}
	return e.Error
}
