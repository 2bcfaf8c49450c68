package stream

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/banshee-data/trackside/internal/httputil"
)

// SSEDialer opens half-duplex Server-Sent-Events channels. Send on an SSE
// handle returns ErrNotDuplex.
type SSEDialer struct {
	// Client overrides the HTTP client, e.g. with a MockHTTPClient in
	// tests. Defaults to the standard client.
	Client httputil.HTTPClient
}

// Dial issues a GET with an event-stream Accept header and wraps the
// response body as a message source.
func (d *SSEDialer) Dial(ctx context.Context, url string) (Handle, error) {
	client := d.Client
	if client == nil {
		client = httputil.NewStandardClient(nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("sse dial %s: unexpected status %d", url, resp.StatusCode)
	}

	return &sseHandle{body: resp.Body, scanner: bufio.NewScanner(resp.Body)}, nil
}

type sseHandle struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

// ReadMessage assembles the next SSE event's data payload. Comment lines and
// non-data fields are skipped; multi-line data is joined with newlines; an
// empty line dispatches the accumulated event.
func (h *sseHandle) ReadMessage() ([]byte, error) {
	var data [][]byte
	for h.scanner.Scan() {
		line := h.scanner.Bytes()

		if len(line) == 0 {
			if len(data) > 0 {
				return bytes.Join(data, []byte("\n")), nil
			}
			continue
		}
		if line[0] == ':' {
			continue // keepalive comment
		}
		if value, ok := bytes.CutPrefix(line, []byte("data:")); ok {
			data = append(data, append([]byte(nil), bytes.TrimPrefix(value, []byte(" "))...))
		}
		// event:, id: and retry: fields are not used by this client.
	}
	if err := h.scanner.Err(); err != nil {
		return nil, err
	}
	if len(data) > 0 {
		return bytes.Join(data, []byte("\n")), nil
	}
	return nil, io.EOF
}

func (h *sseHandle) Send([]byte) error {
	return ErrNotDuplex
}

func (h *sseHandle) Close() error {
	return h.body.Close()
}
