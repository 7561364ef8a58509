package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"
)

// Normalize detects the shape of a collaborator response and pushes its
// decoded content into sink as canonical StreamEvents. Detection runs
// through an ordered adapter table; the first adapter that recognizes
// the value drains it. Precedence: token streams, record streams,
// generic item streams, raw byte streams, then plain strings.
//
// Empty text fragments are dropped. A value no adapter recognizes is a
// collaborator contract violation and yields a non-retryable NO_STREAM
// error; Normalize never fabricates partial events for it.
func Normalize(ctx context.Context, resp any, sink EventSink) error {
	if resp == nil {
		return noStreamError(resp)
	}
	for _, match := range shapeAdapters {
		if drain, ok := match(resp); ok {
			return drain(ctx, sink)
		}
	}
	return noStreamError(resp)
}

// drainFunc consumes one concrete response shape.
type drainFunc func(ctx context.Context, sink EventSink) error

// shapeAdapter inspects a response value and, when it recognizes the
// shape, returns the drain routine for it.
type shapeAdapter func(resp any) (drainFunc, bool)

var shapeAdapters = []shapeAdapter{
	matchTokenStream,
	matchRecordStream,
	matchItemStream,
	matchByteStream,
	matchPlainText,
}

func noStreamError(resp any) *ClassifiedError {
	return NewClassifiedError(CodeNoStream,
		fmt.Sprintf("response %T does not match any recognized stream shape", resp), nil)
}

// matchTokenStream recognizes iterables of raw text fragments.
func matchTokenStream(resp any) (drainFunc, bool) {
	switch src := resp.(type) {
	case TokenStream:
		return func(ctx context.Context, sink EventSink) error {
			return drainTokens(ctx, src, sink)
		}, true
	case <-chan string:
		return func(ctx context.Context, sink EventSink) error {
			return drainStringChan(ctx, src, sink)
		}, true
	case chan string:
		return func(ctx context.Context, sink EventSink) error {
			return drainStringChan(ctx, src, sink)
		}, true
	case []string:
		return func(ctx context.Context, sink EventSink) error {
			for _, frag := range src {
				if err := ctx.Err(); err != nil {
					return err
				}
				emitText(sink, frag)
			}
			return nil
		}, true
	}
	return nil, false
}

func drainTokens(ctx context.Context, src TokenStream, sink EventSink) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		frag, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		emitText(sink, frag)
	}
}

func drainStringChan(ctx context.Context, ch <-chan string, sink EventSink) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frag, ok := <-ch:
			if !ok {
				return nil
			}
			emitText(sink, frag)
		}
	}
}

// matchRecordStream recognizes iterables of typed records.
func matchRecordStream(resp any) (drainFunc, bool) {
	switch src := resp.(type) {
	case RecordStream:
		return func(ctx context.Context, sink EventSink) error {
			return drainRecords(ctx, src, sink)
		}, true
	case <-chan Record:
		return func(ctx context.Context, sink EventSink) error {
			return drainRecordChan(ctx, src, sink)
		}, true
	case chan Record:
		return func(ctx context.Context, sink EventSink) error {
			return drainRecordChan(ctx, src, sink)
		}, true
	case []Record:
		return func(ctx context.Context, sink EventSink) error {
			for _, rec := range src {
				if err := ctx.Err(); err != nil {
					return err
				}
				emitRecord(sink, rec)
			}
			return nil
		}, true
	}
	return nil, false
}

func drainRecords(ctx context.Context, src RecordStream, sink EventSink) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		emitRecord(sink, rec)
	}
}

func drainRecordChan(ctx context.Context, ch <-chan Record, sink EventSink) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec, ok := <-ch:
			if !ok {
				return nil
			}
			emitRecord(sink, rec)
		}
	}
}

// matchItemStream recognizes iterables of untyped items. Each item is
// coerced to text through a structural probe.
func matchItemStream(resp any) (drainFunc, bool) {
	switch src := resp.(type) {
	case <-chan any:
		return func(ctx context.Context, sink EventSink) error {
			return drainItemChan(ctx, src, sink)
		}, true
	case chan any:
		return func(ctx context.Context, sink EventSink) error {
			return drainItemChan(ctx, src, sink)
		}, true
	case []any:
		return func(ctx context.Context, sink EventSink) error {
			for _, item := range src {
				if err := ctx.Err(); err != nil {
					return err
				}
				emitText(sink, itemText(item))
			}
			return nil
		}, true
	}
	return nil, false
}

func drainItemChan(ctx context.Context, ch <-chan any, sink EventSink) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item, ok := <-ch:
			if !ok {
				return nil
			}
			emitText(sink, itemText(item))
		}
	}
}

// itemText coerces one untyped stream item to text: strings pass
// through, objects contribute their content or text field, and
// anything else is serialized rather than reduced to a placeholder.
func itemText(item any) string {
	switch v := item.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case map[string]any:
		for _, key := range []string{"content", "text"} {
			if s, ok := v[key].(string); ok && s != "" {
				return s
			}
		}
		return serialize(v)
	case fmt.Stringer:
		return v.String()
	default:
		return serialize(v)
	}
}

// matchByteStream recognizes raw byte streams such as HTTP bodies.
func matchByteStream(resp any) (drainFunc, bool) {
	src, ok := resp.(io.Reader)
	if !ok {
		return nil, false
	}
	return func(ctx context.Context, sink EventSink) error {
		return drainReader(ctx, src, sink)
	}, true
}

func drainReader(ctx context.Context, r io.Reader, sink EventSink) error {
	var dec utf8Decoder
	buf := make([]byte, 4096)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			emitText(sink, dec.decode(buf[:n]))
		}
		if errors.Is(err, io.EOF) {
			emitText(sink, dec.flush())
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// utf8Decoder converts byte chunks to text, holding back an incomplete
// trailing UTF-8 sequence until the rest of its bytes arrive.
type utf8Decoder struct {
	pending []byte
}

func (d *utf8Decoder) decode(p []byte) string {
	data := append(d.pending, p...)
	d.pending = nil

	// Find the end of the last complete rune. Only the final UTFMax-1
	// bytes can belong to an unfinished sequence.
	cut := len(data)
	for i := len(data) - 1; i >= 0 && len(data)-i < utf8.UTFMax; i-- {
		b := data[i]
		if b < 0x80 {
			break // ASCII byte, everything before cut is complete
		}
		if b >= 0xC0 {
			if !utf8.FullRune(data[i:]) {
				cut = i
			}
			break
		}
		// 0x80..0xBF continuation byte, keep walking back
	}

	if cut < len(data) {
		d.pending = append(d.pending, data[cut:]...)
		data = data[:cut]
	}
	return string(data)
}

func (d *utf8Decoder) flush() string {
	if len(d.pending) == 0 {
		return ""
	}
	s := string(d.pending) // invalid remainders decode to U+FFFD
	d.pending = nil
	return s
}

// matchPlainText recognizes a single string-bearing value and surfaces
// it as exactly one text event.
func matchPlainText(resp any) (drainFunc, bool) {
	var text string
	switch v := resp.(type) {
	case string:
		text = v
	case []byte:
		text = string(v)
	case fmt.Stringer:
		text = v.String()
	case map[string]any:
		s, ok := stringBearing(v)
		if !ok {
			return nil, false
		}
		text = s
	default:
		return nil, false
	}
	return func(ctx context.Context, sink EventSink) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		emitText(sink, text)
		return nil
	}, true
}

// stringBearing reports whether a map carries its text under a content
// or text key. Maps without one are not a recognized plain shape.
func stringBearing(m map[string]any) (string, bool) {
	for _, key := range []string{"content", "text"} {
		if s, ok := m[key].(string); ok {
			return s, true
		}
	}
	return "", false
}

// emitText sends one text event, dropping empty fragments.
func emitText(sink EventSink, text string) {
	if text == "" {
		return
	}
	sink(StreamEvent{Kind: EventText, Text: text, Timestamp: time.Now()})
}

// emitRecord maps one structured record onto the closest event kind.
// Records with an unrecognized discriminator still surface as text from
// their first string payload so data is not silently dropped.
func emitRecord(sink EventSink, rec Record) {
	switch canonicalRecordKind(rec.Type) {
	case EventText:
		emitText(sink, rec.Text)
	case EventToolInvoked:
		sink(StreamEvent{
			Kind:      EventToolInvoked,
			ToolName:  rec.ToolName,
			ToolArgs:  rec.ToolArgs,
			Timestamp: time.Now(),
		})
	case EventToolCompleted:
		sink(StreamEvent{
			Kind:       EventToolCompleted,
			ToolName:   rec.ToolName,
			ToolResult: rec.ToolResult,
			Timestamp:  time.Now(),
		})
	case EventError:
		msg := rec.Message
		if msg == "" {
			msg = rec.Text
		}
		sink(StreamEvent{Kind: EventError, Message: msg, Timestamp: time.Now()})
	default:
		for _, s := range []string{rec.Text, rec.ToolResult, rec.Message, rec.ToolName} {
			if s != "" {
				emitText(sink, s)
				return
			}
		}
	}
}

// canonicalRecordKind maps a wire discriminator onto an event kind. The
// empty kind marks an unrecognized discriminator.
func canonicalRecordKind(t string) EventKind {
	switch strings.ToLower(t) {
	case "text", "token", "delta", "content", "message", "message_delta":
		return EventText
	case "tool_call", "tool_use", "tool_invoked":
		return EventToolInvoked
	case "tool_result", "tool_completed", "tool_output":
		return EventToolCompleted
	case "error":
		return EventError
	}
	return ""
}
