package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/textproto"
	"net/url"
	"path"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jlaffaye/ftp"

	"github.com/lox/drillboard/internal/metrics"
)

const ftpDialTimeout = 30 * time.Second

// FetchFTP downloads a spreadsheet from an ftp:// URL. Without user info in
// the URL it logs in anonymously. Connection and login failures are retried;
// a missing file is not.
func FetchFTP(ctx context.Context, rawURL string, maxBytes int64) (string, []byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", nil, fmt.Errorf("parse ftp url: %w", err)
	}
	if u.Scheme != "ftp" {
		return "", nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		return "", nil, fmt.Errorf("ftp url %s has no file path", rawURL)
	}

	addr := u.Host
	if u.Port() == "" {
		addr = net.JoinHostPort(u.Hostname(), "21")
	}
	user, pass := "anonymous", "anonymous"
	if u.User != nil {
		user = u.User.Username()
		if p, ok := u.User.Password(); ok {
			pass = p
		}
	}

	var data []byte
	operation := func() error {
		conn, err := ftp.Dial(addr, ftp.DialWithTimeout(ftpDialTimeout), ftp.DialWithContext(ctx))
		if err != nil {
			return fmt.Errorf("ftp dial: %w", err)
		}
		defer conn.Quit()

		if err := conn.Login(user, pass); err != nil {
			return fmt.Errorf("ftp login: %w", err)
		}

		resp, err := conn.Retr(u.Path)
		if err != nil {
			if isFileUnavailable(err) {
				return backoff.Permanent(fmt.Errorf("ftp retr %s: %w", u.Path, err))
			}
			return fmt.Errorf("ftp retr %s: %w", u.Path, err)
		}
		defer resp.Close()

		data, err = ReadLimited(resp, maxBytes)
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = time.Minute
	notify := func(err error, wait time.Duration) {
		log.Printf("ftp: %s: %v, retrying in %s", u.Host, err, wait.Round(time.Millisecond))
	}
	if err := backoff.RetryNotify(operation, backoff.WithContext(bo, ctx), notify); err != nil {
		metrics.FTPFetchesTotal.WithLabelValues("error").Inc()
		return "", nil, err
	}

	metrics.FTPFetchesTotal.WithLabelValues("success").Inc()
	return path.Base(u.Path), data, nil
}

func isFileUnavailable(err error) bool {
	var tpErr *textproto.Error
	return errors.As(err, &tpErr) && tpErr.Code == ftp.StatusFileUnavailable
}
