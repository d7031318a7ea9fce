package thredds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/rs/zerolog"

	"github.com/dgketchum/metio/internal/pkg/domain"
)

// FetchStrategy controls how stubbornly the client retries a subset download.
type FetchStrategy struct {
	MaximumRetries int
	RetrySleep     time.Duration
	FetchTimeout   time.Duration
}

var DefaultFetchStrategy = FetchStrategy{
	MaximumRetries: 3,
	RetrySleep:     10 * time.Second,
	FetchTimeout:   5 * time.Minute,
}

// Client fetches NetCDF subsets from a THREDDS NetCDF Subset Service.
type Client struct {
	baseURL  string
	client   *http.Client
	strategy FetchStrategy
}

func NewClient(baseURL string) *Client {
	return NewClientWithStrategy(baseURL, DefaultFetchStrategy)
}

func NewClientWithStrategy(baseURL string, strategy FetchStrategy) *Client {
	return &Client{
		baseURL:  baseURL,
		client:   &http.Client{Timeout: strategy.FetchTimeout},
		strategy: strategy,
	}
}

// SubsetURL builds the NCSS request for a variable over an extent and period.
func (c *Client) SubsetURL(dataset, variable string, extent domain.Extent, period domain.TimePeriod) string {
	params := url.Values{}
	params.Add("var", variable)
	params.Add("north", fmt.Sprintf("%f", extent.North))
	params.Add("south", fmt.Sprintf("%f", extent.South))
	params.Add("west", fmt.Sprintf("%f", extent.West))
	params.Add("east", fmt.Sprintf("%f", extent.East))
	params.Add("horizStride", "1")
	params.Add("time_start", period.Start.Format("2006-01-02T15:04:05Z"))
	params.Add("time_end", period.End.Format("2006-01-02T15:04:05Z"))
	params.Add("timeStride", "1")
	params.Add("accept", "netcdf")

	return fmt.Sprintf("%s/%s?%s", c.baseURL, dataset, params.Encode())
}

// FetchSubset downloads a subset and decodes it. The epoch is the reference
// date the source counts its time coordinate from.
func (c *Client) FetchSubset(ctx context.Context, dataset, variable string, extent domain.Extent, period domain.TimePeriod, epoch time.Time) (*Subset, error) {
	if err := extent.Valid(); err != nil {
		return nil, err
	}
	if err := period.Valid(); err != nil {
		return nil, err
	}

	subsetURL := c.SubsetURL(dataset, variable, extent, period)

	tmpfile, err := c.fetchToFile(ctx, subsetURL)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmpfile)

	nc, err := netcdf.Open(tmpfile)
	if err != nil {
		return nil, fmt.Errorf("unable to read netcdf subset from %s (%w)", c.baseURL, err)
	}
	defer nc.Close()

	subset, err := decodeSubset(func(name string) (varGetter, error) { return nc.GetVarGetter(name) }, variable, epoch)
	if err != nil {
		return nil, fmt.Errorf("unable to decode %s subset (%w)", variable, err)
	}

	return subset, nil
}

func (c *Client) fetchToFile(ctx context.Context, subsetURL string) (string, error) {
	log := zerolog.Ctx(ctx)

	var lastErr error

	for attempt := 0; attempt <= c.strategy.MaximumRetries; attempt++ {
		if attempt > 0 {
			log.Info().Msgf("retrying subset fetch, attempt %d of %d", attempt, c.strategy.MaximumRetries)
			select {
			case <-time.After(c.strategy.RetrySleep):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		path, err := c.fetchOnce(ctx, subsetURL)
		if err == nil {
			return path, nil
		}
		lastErr = err
		log.Error().Err(err).Msgf("subset fetch failed")
	}

	return "", fmt.Errorf("subset fetch failed after %d retries (%w)", c.strategy.MaximumRetries, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, subsetURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, subsetURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("HTTP error when fetching subset: %d (%s)", resp.StatusCode, string(body))
	}

	tmpfile, err := os.CreateTemp("", "metio-subset-*.nc")
	if err != nil {
		return "", err
	}

	_, err = io.Copy(tmpfile, resp.Body)
	closeErr := tmpfile.Close()
	if err != nil {
		os.Remove(tmpfile.Name())
		return "", fmt.Errorf("unable to spool subset to disk (%w)", err)
	}
	if closeErr != nil {
		os.Remove(tmpfile.Name())
		return "", closeErr
	}

	return tmpfile.Name(), nil
}
