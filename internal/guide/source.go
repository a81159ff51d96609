package guide

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/torqueline/estimator/internal/resilience"
)

const defaultUserAgent = "estimator/1.0"

// LoadOptions configures guide loading.
type LoadOptions struct {
	Sheet     string        // XLSX sheet name; empty means the first sheet
	Timeout   time.Duration // transport timeout for remote sources
	UserAgent string
	Retry     resilience.RetryConfig
}

// Load reads the guide at source, which may be a local path, an
// http(s):// URL, or an ftp:// URL. Sources ending in .xlsx are parsed
// as workbooks, everything else as CSV.
func Load(ctx context.Context, source string, opts LoadOptions) (*Guide, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.DefaultRetryConfig()
		opts.Retry.OnRetry = resilience.RetryLogger("guide", "fetch")
	}

	data, err := readSource(ctx, source, opts)
	if err != nil {
		return nil, err
	}

	var rows []Row
	if isWorkbook(source) {
		rows, err = ParseXLSX(data, opts.Sheet)
	} else {
		rows, err = ParseCSV(bytes.NewReader(data))
	}
	if err != nil {
		return nil, err
	}

	zap.L().Info("guide: loaded",
		zap.String("source", source),
		zap.Int("rows", len(rows)),
	)
	return New(rows), nil
}

func isWorkbook(source string) bool {
	path := source
	if u, err := url.Parse(source); err == nil && u.Path != "" {
		path = u.Path
	}
	return strings.EqualFold(filepath.Ext(path), ".xlsx")
}

func readSource(ctx context.Context, source string, opts LoadOptions) ([]byte, error) {
	u, err := url.Parse(source)
	if err != nil || u.Scheme == "" {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, eris.Wrapf(err, "guide: read file %s", source)
		}
		return data, nil
	}

	switch u.Scheme {
	case "http", "https":
		return fetchHTTP(ctx, source, opts)
	case "ftp":
		return fetchFTP(ctx, u, opts)
	default:
		return nil, eris.Errorf("guide: unsupported source scheme %q", u.Scheme)
	}
}

func fetchHTTP(ctx context.Context, rawURL string, opts LoadOptions) ([]byte, error) {
	client := &http.Client{Timeout: opts.Timeout}

	data, err := resilience.DoVal(ctx, opts.Retry, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "guide: build request")
		}
		req.Header.Set("User-Agent", opts.UserAgent)

		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close() //nolint:errcheck

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "guide: read response body")
		}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(
				eris.Errorf("guide: status %d from %s", resp.StatusCode, rawURL),
				resp.StatusCode,
			)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, eris.Errorf("guide: unexpected status %d from %s", resp.StatusCode, rawURL)
		}
		return body, nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "guide: http fetch")
	}
	return data, nil
}

func fetchFTP(ctx context.Context, u *url.URL, opts LoadOptions) ([]byte, error) {
	host := u.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "21")
	}
	if u.Path == "" {
		return nil, eris.New("guide: ftp url has no path")
	}

	user, pass := "anonymous", "anonymous@"
	if u.User != nil {
		user = u.User.Username()
		pass, _ = u.User.Password()
	}

	zap.L().Debug("guide: ftp connect", zap.String("host", host), zap.String("path", u.Path))

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "guide: ftp dial")
	}
	defer conn.Quit() //nolint:errcheck

	if err := conn.Login(user, pass); err != nil {
		return nil, eris.Wrap(err, "guide: ftp login")
	}

	resp, err := conn.Retr(u.Path)
	if err != nil {
		return nil, eris.Wrap(err, "guide: ftp retrieve")
	}
	defer resp.Close() //nolint:errcheck

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, eris.Wrap(err, "guide: ftp read")
	}
	return data, nil
}
