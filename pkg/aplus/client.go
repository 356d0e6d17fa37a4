// Package aplus implements the HTTP protocol client for an externally hosted
// exercise/grading service. It performs authenticated page fetches and
// multipart submission uploads and classifies transport outcomes into the
// typed errors declared in errors.go.
package aplus

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const maxRedirects = 10

// Config carries the explicit transport configuration for the client. All
// values are optional; zero values fall back to system defaults.
type Config struct {
	// Timeout bounds one request/response exchange end to end.
	Timeout time.Duration
	// CABundlePath points at a PEM bundle to verify service certificates against.
	CABundlePath string
	// CADirPath points at a directory of PEM files added to the trust pool.
	CADirPath string
	// HostRemap substitutes request hosts, used to redirect traffic in
	// constrained or test deployments.
	HostRemap map[string]string
}

// UploadFile describes one file carried in a multipart submission upload.
type UploadFile struct {
	FieldName string
	FileName  string
	MIMEType  string
	Content   io.Reader
}

// RemotePage is the raw outcome of a successful fetch. The body is unparsed;
// document parsing belongs to the content extractor.
type RemotePage struct {
	URL    string
	Body   []byte
	Header http.Header
}

// LastModified returns the raw Last-Modified response header.
func (p *RemotePage) LastModified() string {
	return p.Header.Get("Last-Modified")
}

// Expires returns the parsed Expires response header, zero when absent or
// unparseable.
func (p *RemotePage) Expires() time.Time {
	return ParseHTTPDate(p.Header.Get("Expires"))
}

// Client talks to the exercise service. It is stateless between calls and
// safe for concurrent use.
type Client struct {
	http      *http.Client
	hostRemap map[string]string
	logger    zerolog.Logger
}

// New constructs a client from the given transport configuration.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if cfg.CABundlePath != "" || cfg.CADirPath != "" {
		pool, err := buildCertPool(cfg.CABundlePath, cfg.CADirPath)
		if err != nil {
			return nil, err
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: pool}
	}

	return &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		hostRemap: cfg.HostRemap,
		logger:    logger.With().Str("component", "aplus_client").Logger(),
	}, nil
}

// RequestOptions carries the per-request protocol headers.
type RequestOptions struct {
	// APIKey is sent as "Authorization: key=<value>" when non-empty.
	APIKey string
	// IfModifiedSince enables a conditional GET when non-zero. Ignored on POST.
	IfModifiedSince time.Time
}

// Get fetches the page at serviceURL. A 304 upstream answer surfaces as a
// NotModifiedError carrying the parsed Expires header.
func (c *Client) Get(ctx context.Context, serviceURL string, opts RequestOptions) (*RemotePage, error) {
	target := c.remapURL(serviceURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &ConnectionError{URL: serviceURL, Err: err}
	}

	applyAuthorization(req, opts.APIKey)
	if !opts.IfModifiedSince.IsZero() {
		req.Header.Set("If-Modified-Since", opts.IfModifiedSince.UTC().Format(http.TimeFormat))
	}

	return c.do(req, serviceURL)
}

// Post submits form fields and files to serviceURL. With files present the
// body is multipart and every file carries its declared filename and MIME
// type; without files a url-encoded form is sent.
func (c *Client) Post(ctx context.Context, serviceURL string, opts RequestOptions, fields url.Values, files []UploadFile) (*RemotePage, error) {
	target := c.remapURL(serviceURL)

	var (
		body        io.Reader
		contentType string
	)

	if len(files) > 0 {
		buffer := &bytes.Buffer{}
		writer := multipart.NewWriter(buffer)

		for name, values := range fields {
			for _, value := range values {
				if err := writer.WriteField(name, value); err != nil {
					return nil, &ConnectionError{URL: serviceURL, Err: err}
				}
			}
		}

		for _, file := range files {
			part, err := createFilePart(writer, file)
			if err != nil {
				return nil, &ConnectionError{URL: serviceURL, Err: err}
			}
			if _, err := io.Copy(part, file.Content); err != nil {
				return nil, &ConnectionError{URL: serviceURL, Err: err}
			}
		}

		if err := writer.Close(); err != nil {
			return nil, &ConnectionError{URL: serviceURL, Err: err}
		}

		body = buffer
		contentType = writer.FormDataContentType()
	} else {
		body = strings.NewReader(fields.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return nil, &ConnectionError{URL: serviceURL, Err: err}
	}

	req.Header.Set("Content-Type", contentType)
	applyAuthorization(req, opts.APIKey)

	return c.do(req, serviceURL)
}

func (c *Client) do(req *http.Request, originalURL string) (*RemotePage, error) {
	started := time.Now()

	res, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", originalURL).Msg("exercise service request failed")
		return nil, &ConnectionError{URL: originalURL, Err: err}
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusOK:
		// handled below
	case res.StatusCode == http.StatusNotModified:
		return nil, &NotModifiedError{URL: originalURL, Expires: ParseHTTPDate(res.Header.Get("Expires"))}
	default:
		c.logger.Warn().Int("status", res.StatusCode).Str("url", originalURL).Msg("exercise service returned error status")
		return nil, &ServiceError{URL: originalURL, StatusCode: res.StatusCode}
	}

	payload, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &ConnectionError{URL: originalURL, Err: err}
	}

	c.logger.Debug().
		Str("url", originalURL).
		Int("bytes", len(payload)).
		Dur("elapsed", time.Since(started)).
		Msg("exercise service request completed")

	return &RemotePage{URL: originalURL, Body: payload, Header: res.Header}, nil
}

func (c *Client) remapURL(raw string) string {
	if len(c.hostRemap) == 0 {
		return raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	if replacement, ok := c.hostRemap[parsed.Host]; ok {
		parsed.Host = replacement
		return parsed.String()
	}

	return raw
}

func applyAuthorization(req *http.Request, apiKey string) {
	if apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("key=%s", apiKey))
	}
}

func createFilePart(writer *multipart.Writer, file UploadFile) (io.Writer, error) {
	if file.MIMEType == "" {
		return writer.CreateFormFile(file.FieldName, file.FileName)
	}

	headers := make(textproto.MIMEHeader)
	headers.Set("Content-Disposition", fmt.Sprintf(
		`form-data; name=%q; filename=%q`, file.FieldName, file.FileName))
	headers.Set("Content-Type", file.MIMEType)

	return writer.CreatePart(headers)
}

// ParseHTTPDate parses an HTTP date header value, returning the zero time on
// failure.
func ParseHTTPDate(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}

	parsed, err := http.ParseTime(value)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

func buildCertPool(bundlePath, dirPath string) (*x509.CertPool, error) {
	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}

	if bundlePath != "" {
		pem, err := os.ReadFile(bundlePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read ca bundle: %w", err)
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in ca bundle %s", bundlePath)
		}
	}

	if dirPath != "" {
		entries, err := os.ReadDir(dirPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read ca directory: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			pem, err := os.ReadFile(filepath.Join(dirPath, entry.Name()))
			if err != nil {
				continue
			}
			pool.AppendCertsFromPEM(pem)
		}
	}

	return pool, nil
}
