package actions

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"emperror.dev/errors"
	"github.com/cenkalti/backoff"
	"github.com/hashicorp/go-cleanhttp"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"
)

const TenorSearchURL = "https://tenor.googleapis.com/v2/search"

var ErrNoGIF = errors.NewPlain("tenor returned no gifs")

// TenorClient looks up random gifs through the tenor v2 search api
type TenorClient struct {
	Key     string
	BaseURL string
	HTTP    *http.Client
	Limiter *rate.Limiter

	// MaxRetries is how many times a failed request is retried
	MaxRetries uint64
}

func NewTenorClient(key string) *TenorClient {
	client := cleanhttp.DefaultPooledClient()
	client.Timeout = time.Second * 10

	return &TenorClient{
		Key:        key,
		BaseURL:    TenorSearchURL,
		HTTP:       client,
		Limiter:    rate.NewLimiter(rate.Every(time.Second), 5),
		MaxRetries: 2,
	}
}

type tenorResponse struct {
	Results []struct {
		MediaFormats map[string]struct {
			URL string `json:"url"`
		} `json:"media_formats"`
	} `json:"results"`
}

type tenorStatusError int

func (t tenorStatusError) Error() string {
	return "tenor responded with status " + http.StatusText(int(t))
}

// RandomGIF returns the url of a random gif matching query
func (t *TenorClient) RandomGIF(ctx context.Context, query string) (string, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("key", t.Key)
	q.Set("client_key", "yuzu")
	q.Set("limit", "1")
	q.Set("random", "true")
	q.Set("media_filter", "gif")
	reqURL := t.BaseURL + "?" + q.Encode()

	var result string
	op := func() error {
		if err := t.Limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		gif, err := t.fetch(ctx, reqURL)
		if err != nil {
			var status tenorStatusError
			// client errors won't get better by retrying, except for rate limits
			if errors.As(err, &status) && status < 500 && status != http.StatusTooManyRequests {
				return backoff.Permanent(err)
			}
			if errors.Is(err, ErrNoGIF) {
				return backoff.Permanent(err)
			}
			return err
		}

		result = gif
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Millisecond * 200
	b.MaxElapsedTime = time.Second * 5

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, t.MaxRetries), ctx))
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Err
	}
	return result, err
}

func (t *TenorClient) fetch(ctx context.Context, reqURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := t.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", tenorStatusError(resp.StatusCode)
	}

	var decoded tenorResponse
	if err = jsoniter.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", errors.WithMessage(err, "decode tenor response")
	}

	for _, r := range decoded.Results {
		for _, format := range []string{"gif", "mediumgif", "tinygif"} {
			if m, ok := r.MediaFormats[format]; ok && m.URL != "" {
				return m.URL, nil
			}
		}
	}

	return "", ErrNoGIF
}
