package twilio

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
)

// paramsKey is the echo context key the middleware stores parsed form
// parameters under.
const paramsKey = "twilioParams"

// ValidateSignature checks an X-Twilio-Signature header: HMAC-SHA1 over the
// request URL concatenated with the sorted form parameters.
func ValidateSignature(authToken, signature, requestURL string, params map[string]string) bool {
	if authToken == "" || signature == "" {
		return false
	}
	data := requestURL
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		data += k + params[k]
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(data))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

// AuthMiddleware validates carrier webhook signatures. With an empty auth
// token it only parses the form body, so local runs without carrier
// credentials still work.
func AuthMiddleware(authToken string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			body, err := io.ReadAll(c.Request().Body)
			if err != nil {
				return c.String(http.StatusBadRequest, "failed to read body")
			}
			form, err := url.ParseQuery(string(body))
			if err != nil {
				return c.String(http.StatusBadRequest, "failed to parse form")
			}
			params := make(map[string]string, len(form))
			for k, vs := range form {
				if len(vs) > 0 {
					params[k] = vs[0]
				}
			}

			if authToken != "" {
				signature := c.Request().Header.Get("X-Twilio-Signature")
				requestURL := absoluteURL(c.Request(), c.Request().URL.Path)
				if !ValidateSignature(authToken, signature, requestURL, params) {
					return c.String(http.StatusUnauthorized, "invalid signature")
				}
			}

			c.Set(paramsKey, params)
			return next(c)
		}
	}
}

// requestParams returns the form parameters stored by AuthMiddleware.
func requestParams(c echo.Context) map[string]string {
	params, _ := c.Get(paramsKey).(map[string]string)
	if params == nil {
		params = map[string]string{}
	}
	return params
}

// absoluteURL rebuilds the public URL for a path, preferring forwarded
// headers set by the fronting proxy.
func absoluteURL(r *http.Request, path string) string {
	scheme := "https"
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
		if strings.Contains(host, "localhost") || strings.Contains(host, "127.0.0.1") {
			scheme = "http"
		}
	}
	return fmt.Sprintf("%s://%s%s", scheme, host, path)
}

// streamHost returns the public host used to build the media-stream URL.
func streamHost(r *http.Request) string {
	if h := r.Header.Get("X-Forwarded-Host"); h != "" {
		return h
	}
	return r.Host
}
