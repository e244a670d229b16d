package httpclient

import (
	"net/http"
	"net/url"
	"time"
)

//go:generate mockery --name=HttpClientInterface --case=underscore --structname=HttpClientMock --inpackage --filename=http_client_mock.go
type HttpClientInterface interface {
	Do(*http.Request) (*http.Response, error)
	Get(url string) (resp *http.Response, err error)
	PostForm(url string, data url.Values) (resp *http.Response, err error)
}

const TimeoutClientInSeconds = 40

// DefaultClient returns a default HTTP client with a timeout.
func DefaultClient() HttpClientInterface {
	return &http.Client{Timeout: TimeoutClientInSeconds * time.Second}
}

var _ HttpClientInterface = DefaultClient()
