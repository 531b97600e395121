package notify

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const sendTimeout = 10 * time.Second

func newHTTPClient() *resty.Client {
	return resty.New().
		SetTimeout(sendTimeout).
		SetHeader("Content-Type", "application/json")
}

// checkStatus turns a non-2xx response into an error carrying a body excerpt.
func checkStatus(channel string, resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}
	body := resp.String()
	if len(body) > 1024 {
		body = body[:1024]
	}
	return fmt.Errorf("%s: unexpected status %d: %s", channel, resp.StatusCode(), body)
}
