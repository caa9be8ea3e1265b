package scanner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"scholarflow/internal/domain/document"
	"scholarflow/internal/errs"
)

type APIOptions struct {
	BaseURL            string
	APIKey             string
	RequestsPerSecond  float64
	MaliciousThreshold int
	HTTPClient         *http.Client
}

// API looks files up by SHA-256 on a hash reputation service that answers in
// the VirusTotal v3 file-object shape. A hash the service has never seen has
// no verdict; it is not reported clean.
type API struct {
	baseURL   string
	apiKey    string
	threshold int
	client    *http.Client
	limiter   *rate.Limiter
}

func NewAPI(opts APIOptions) (*API, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("scanner api base_url is required")
	}
	threshold := opts.MaliciousThreshold
	if threshold <= 0 {
		threshold = 1
	}
	limit := rate.Limit(opts.RequestsPerSecond)
	if opts.RequestsPerSecond <= 0 {
		limit = rate.Every(15 * time.Second)
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &API{
		baseURL:   base,
		apiKey:    strings.TrimSpace(opts.APIKey),
		threshold: threshold,
		client:    client,
		limiter:   rate.NewLimiter(limit, 1),
	}, nil
}

func (a *API) Name() string {
	return "api"
}

func (a *API) Scan(ctx context.Context, filePath string, _ string) (document.ScanResult, error) {
	sum, err := fileSHA256(filePath)
	if err != nil {
		return document.ScanResult{}, err
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return document.ScanResult{}, fmt.Errorf("%w: waiting for api rate limit: %v", document.ErrScanTimeout, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/files/"+sum, nil)
	if err != nil {
		return document.ScanResult{}, errs.Wrap(err, "build api request")
	}
	req.Header.Set("Accept", "application/json")
	if a.apiKey != "" {
		req.Header.Set("x-apikey", a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return document.ScanResult{}, fmt.Errorf("%w: api lookup: %v", document.ErrScanTimeout, err)
		}
		return document.ScanResult{}, fmt.Errorf("%w: api lookup: %v", document.ErrScannerUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return document.ScanResult{}, fmt.Errorf("%w: read api response: %v", document.ErrScannerUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return document.ScanResult{}, errs.Permanent(fmt.Errorf("%w: hash %s unknown to lookup service", ErrNoVerdict, sum))
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode >= 500:
		return document.ScanResult{}, fmt.Errorf("%w: api status %d", document.ErrScannerUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return document.ScanResult{}, fmt.Errorf("api status %d", resp.StatusCode)
	}

	return a.parse(body)
}

func (a *API) parse(body []byte) (document.ScanResult, error) {
	if !gjson.ValidBytes(body) {
		return document.ScanResult{}, fmt.Errorf("%w: api returned invalid json", ErrNoVerdict)
	}
	stats := gjson.GetBytes(body, "data.attributes.last_analysis_stats")
	if !stats.Exists() {
		return document.ScanResult{}, fmt.Errorf("%w: api response has no analysis stats", ErrNoVerdict)
	}

	malicious := int(stats.Get("malicious").Int())
	if malicious < a.threshold {
		return document.ScanResult{Clean: true}, nil
	}

	threat := gjson.GetBytes(body, "data.attributes.popular_threat_classification.suggested_threat_label").String()
	if threat == "" {
		threat = fmt.Sprintf("flagged-by-%d-engines", malicious)
	}
	return document.ScanResult{Clean: false, ThreatName: threat}, nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errs.Wrap(err, "open file for hashing")
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errs.Wrap(err, "hash file")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
