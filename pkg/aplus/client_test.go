package aplus

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	client, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	return client
}

func TestGetReturnsPageWithHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "key=secret", r.Header.Get("Authorization"))
		w.Header().Set("Last-Modified", "Mon, 09 Mar 2026 10:00:00 GMT")
		w.Header().Set("Expires", "Mon, 09 Mar 2026 11:00:00 GMT")
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer server.Close()

	client := newTestClient(t, Config{Timeout: 5 * time.Second})

	page, err := client.Get(context.Background(), server.URL, RequestOptions{APIKey: "secret"})
	require.NoError(t, err)
	require.Equal(t, server.URL, page.URL)
	require.Contains(t, string(page.Body), "ok")
	require.Equal(t, "Mon, 09 Mar 2026 10:00:00 GMT", page.LastModified())
	require.Equal(t, time.Date(2026, 3, 9, 11, 0, 0, 0, time.UTC), page.Expires())
}

func TestGetSendsConditionalHeader(t *testing.T) {
	var received string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r.Header.Get("If-Modified-Since")
		_, _ = w.Write([]byte("fresh"))
	}))
	defer server.Close()

	client := newTestClient(t, Config{Timeout: 5 * time.Second})

	since := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	_, err := client.Get(context.Background(), server.URL, RequestOptions{IfModifiedSince: since})
	require.NoError(t, err)
	require.Equal(t, "Mon, 09 Mar 2026 10:00:00 GMT", received)
}

func TestGetClassifiesNotModified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Expires", "Tue, 10 Mar 2026 12:00:00 GMT")
		w.WriteHeader(http.StatusNotModified)
	}))
	defer server.Close()

	client := newTestClient(t, Config{Timeout: 5 * time.Second})

	_, err := client.Get(context.Background(), server.URL, RequestOptions{IfModifiedSince: time.Now()})
	require.Error(t, err)

	expires, ok := IsNotModified(err)
	require.True(t, ok)
	require.Equal(t, time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC), expires)
}

func TestGetClassifiesServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, Config{Timeout: 5 * time.Second})

	_, err := client.Get(context.Background(), server.URL, RequestOptions{})
	var serviceErr *ServiceError
	require.ErrorAs(t, err, &serviceErr)
	require.Equal(t, http.StatusInternalServerError, serviceErr.StatusCode)
}

func TestGetClassifiesConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := newTestClient(t, Config{Timeout: time.Second})

	_, err := client.Get(context.Background(), server.URL, RequestOptions{})
	var connectionErr *ConnectionError
	require.ErrorAs(t, err, &connectionErr)
	require.Error(t, errors.Unwrap(err))
}

func TestPostMultipartCarriesFieldsAndFiles(t *testing.T) {
	type part struct {
		fileName    string
		contentType string
		content     string
	}
	fields := make(url.Values)
	parts := make(map[string]part)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(t, err)
		require.Equal(t, "multipart/form-data", mediaType)

		reader := multipart.NewReader(r.Body, params["boundary"])
		for {
			p, err := reader.NextPart()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			content, err := io.ReadAll(p)
			require.NoError(t, err)
			if p.FileName() == "" {
				fields.Add(p.FormName(), string(content))
			} else {
				parts[p.FormName()] = part{
					fileName:    p.FileName(),
					contentType: p.Header.Get("Content-Type"),
					content:     string(content),
				}
			}
		}
		_, _ = w.Write([]byte("received"))
	}))
	defer server.Close()

	client := newTestClient(t, Config{Timeout: 5 * time.Second})

	page, err := client.Post(context.Background(), server.URL, RequestOptions{APIKey: "secret"},
		url.Values{"answer": {"42"}},
		[]UploadFile{{
			FieldName: "file1",
			FileName:  "main.py",
			MIMEType:  "text/x-python",
			Content:   strings.NewReader("print(42)\n"),
		}})
	require.NoError(t, err)
	require.Contains(t, string(page.Body), "received")

	require.Equal(t, "42", fields.Get("answer"))
	require.Equal(t, "main.py", parts["file1"].fileName)
	require.Equal(t, "text/x-python", parts["file1"].contentType)
	require.Equal(t, "print(42)\n", parts["file1"].content)
}

func TestPostWithoutFilesSendsURLEncodedForm(t *testing.T) {
	var contentType, body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		payload, _ := io.ReadAll(r.Body)
		body = string(payload)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := newTestClient(t, Config{Timeout: 5 * time.Second})

	_, err := client.Post(context.Background(), server.URL, RequestOptions{}, url.Values{"answer": {"42"}}, nil)
	require.NoError(t, err)
	require.Equal(t, "application/x-www-form-urlencoded", contentType)
	require.Equal(t, "answer=42", body)
}

func TestHostRemapRedirectsRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("remapped"))
	}))
	defer server.Close()

	serverHost := strings.TrimPrefix(server.URL, "http://")
	client := newTestClient(t, Config{
		Timeout:   5 * time.Second,
		HostRemap: map[string]string{"grader.internal": serverHost},
	})

	page, err := client.Get(context.Background(), "http://grader.internal/exercise1/", RequestOptions{})
	require.NoError(t, err)
	require.Contains(t, string(page.Body), "remapped")
	// The reported URL stays the caller's original.
	require.Equal(t, "http://grader.internal/exercise1/", page.URL)
}

func TestParseHTTPDate(t *testing.T) {
	parsed := ParseHTTPDate("Mon, 09 Mar 2026 10:00:00 GMT")
	require.Equal(t, time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC), parsed)

	require.True(t, ParseHTTPDate("").IsZero())
	require.True(t, ParseHTTPDate("not a date").IsZero())
}
