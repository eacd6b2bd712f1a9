package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// DownloadProgress is called after each chunk. total is -1 when the server
// sent no Content-Length.
type DownloadProgress func(written, total int64)

// Download streams url into w without authentication headers, so release
// asset redirects to other hosts never see the token.
func (c *Client) Download(ctx context.Context, url string, w io.Writer, progress DownloadProgress) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/octet-stream")

	resp, err := c.downloader.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, newAPIError(req, resp)
	}

	total := resp.ContentLength
	buf := make([]byte, 32*1024)
	var written int64
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return written, fmt.Errorf("write download: %w", err)
			}
			written += int64(n)
			if progress != nil {
				progress(written, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return written, fmt.Errorf("download %s: %w", url, readErr)
		}
	}
	if total >= 0 && written != total {
		return written, fmt.Errorf("download %s: got %d of %d bytes", url, written, total)
	}
	return written, nil
}
