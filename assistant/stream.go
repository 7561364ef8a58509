package assistant

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/squall-labs/squall/core"
)

// streamPath is the API endpoint for streamed responses.
const streamPath = "/v1/stream"

// doneSentinel marks the end of the event stream.
const doneSentinel = "[DONE]"

// recordBuffer sizes the decode-ahead window between the SSE reader
// goroutine and the consumer.
const recordBuffer = 64

// Stream sends input to the assistant and returns the response as a
// record stream. Cancel ctx to abandon the stream; the underlying
// response body is closed when the stream ends either way.
func (c *Client) Stream(ctx context.Context, input string) (*EventStream, error) {
	payload, err := json.Marshal(streamRequest{Input: input, Stream: true})
	if err != nil {
		return nil, decodeError(err)
	}

	url := c.config.BaseURL + streamPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, networkError(err)
	}

	for key, values := range c.buildHeaders() {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	resp, err := c.config.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, networkError(err)
	}

	requestID := resp.Header.Get("x-request-id")

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, statusError(resp.StatusCode, body, requestID)
	}

	s := &EventStream{
		records: make(chan core.Record, recordBuffer),
		errCh:   make(chan error, 1),
	}
	go s.consume(ctx, resp.Body)
	return s, nil
}

// Collaborator adapts the client to the engine's collaborator shape.
// The engine's sanitized prompt becomes the stream input; the engine
// handles shape detection, retries, and classification from there.
func (c *Client) Collaborator() core.Collaborator {
	return func(ctx context.Context, input string, _ core.Options) (any, error) {
		return c.Stream(ctx, input)
	}
}

// EventStream is a live assistant response. It implements
// core.RecordStream; Next returns io.EOF after the final record.
type EventStream struct {
	records chan core.Record
	errCh   chan error
}

var _ core.RecordStream = (*EventStream)(nil)

// Next returns the next record, blocking until one is available, the
// stream ends, or ctx is done.
func (s *EventStream) Next(ctx context.Context) (core.Record, error) {
	select {
	case <-ctx.Done():
		return core.Record{}, ctx.Err()
	case rec, ok := <-s.records:
		if !ok {
			// errCh is settled before records closes.
			if err := <-s.errCh; err != nil {
				return core.Record{}, err
			}
			return core.Record{}, io.EOF
		}
		return rec, nil
	}
}

// consume drains the SSE body into the record channel. It owns both
// channels: errCh settles first, then records closes, so Next observes
// a consistent end of stream.
func (s *EventStream) consume(ctx context.Context, body io.ReadCloser) {
	err := s.readEvents(ctx, body)
	body.Close()
	if err != nil {
		s.errCh <- err
	}
	close(s.errCh)
	close(s.records)
}

func (s *EventStream) readEvents(ctx context.Context, body io.Reader) error {
	reader := bufio.NewReader(body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return networkError(err)
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ":") || strings.HasPrefix(line, "event:") {
			continue
		}
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == doneSentinel {
			return nil
		}

		var ev wireEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return decodeError(err)
		}

		select {
		case s.records <- ev.record():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
