package apiclient

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

const genericDetail = "Error"

// RequestFailed is returned for any non-2xx response.
type RequestFailed struct {
	Op         string
	Status     int
	StatusText string
	Detail     string
}

func (e *RequestFailed) Error() string {
	return e.Detail
}

// NetworkUnavailable is returned when the request never produced a response.
type NetworkUnavailable struct {
	Op  string
	Err error
}

func (e *NetworkUnavailable) Error() string {
	return fmt.Sprintf("%s: network unavailable: %v", e.Op, e.Err)
}

func (e *NetworkUnavailable) Unwrap() error { return e.Err }

// IsRequestFailure reports whether err came from the backend round trip,
// either as a non-2xx response or as a transport failure. Callers treat both
// the same way.
func IsRequestFailure(err error) bool {
	var failed *RequestFailed
	if errors.As(err, &failed) {
		return true
	}
	var network *NetworkUnavailable
	return errors.As(err, &network)
}

// Detail returns the human-readable message for a request failure, or the
// error text for anything else.
func Detail(err error) string {
	var failed *RequestFailed
	if errors.As(err, &failed) {
		return failed.Detail
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func newRequestFailed(op string, resp *http.Response, body []byte) *RequestFailed {
	text := statusText(resp)
	return &RequestFailed{
		Op:         op,
		Status:     resp.StatusCode,
		StatusText: text,
		Detail:     extractDetail(body, text),
	}
}

// extractDetail prefers the server's detail message, which the backend puts
// at the top level or inside its {error, data} envelope.
func extractDetail(body []byte, statusText string) string {
	if gjson.ValidBytes(body) {
		for _, path := range []string{"detail", "data.detail"} {
			if res := gjson.GetBytes(body, path); res.Type == gjson.String && res.Str != "" {
				return res.Str
			}
		}
	}
	if statusText != "" {
		return statusText
	}
	return genericDetail
}

func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}
