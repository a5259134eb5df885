package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// consoleHandler writes one line per record:
//
//	<ts> <LEVEL> [<stage> #<sentence>] <component>: <msg> key=value ...
//
// component, stage and sentence are lifted out of the attributes into the
// line header; everything else is rendered as key=value pairs.
type consoleHandler struct {
	mu        *sync.Mutex
	out       io.Writer
	level     slog.Leveler
	addSource bool

	header lineHeader
	// group is the dotted prefix applied to attributes added after WithGroup.
	group string
	// attrs holds the pairs rendered once by WithAttrs.
	attrs []byte
}

type lineHeader struct {
	component   string
	stage       string
	sentence    int64
	hasSentence bool
}

// lift records header fields. It returns false for attributes that belong
// in the key=value tail.
func (h *lineHeader) lift(key string, value slog.Value) bool {
	switch key {
	case FieldComponent:
		if h.component == "" {
			h.component = value.String()
		}
		return true
	case FieldStage:
		h.stage = value.String()
		return true
	case FieldSentence:
		if value.Kind() != slog.KindInt64 {
			return false
		}
		h.sentence = value.Int64()
		h.hasSentence = true
		return true
	}
	return false
}

func newConsoleHandler(out io.Writer, level slog.Leveler, addSource bool) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, out: out, level: level, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	header := h.header
	tail := make([]byte, 0, 64+len(h.attrs))
	tail = append(tail, h.attrs...)
	record.Attrs(func(attr slog.Attr) bool {
		tail = appendAttr(tail, &header, h.group, attr)
		return true
	})

	line := make([]byte, 0, 96+len(tail))
	line = append(line, timestampOf(record.Time)...)
	line = append(line, ' ')
	line = append(line, levelLabel(record.Level)...)
	line = append(line, ' ')
	if header.stage != "" || header.hasSentence {
		line = append(line, '[')
		line = append(line, header.stage...)
		if header.hasSentence {
			if header.stage != "" {
				line = append(line, ' ')
			}
			line = append(line, '#')
			line = strconv.AppendInt(line, header.sentence, 10)
		}
		line = append(line, "] "...)
	}
	if header.component != "" {
		line = append(line, header.component...)
		line = append(line, ": "...)
	}
	if msg := strings.TrimSpace(record.Message); msg != "" {
		line = append(line, msg...)
	} else {
		line = append(line, "(no message)"...)
	}
	if h.addSource {
		if src := record.Source(); src != nil && src.File != "" {
			line = fmt.Appendf(line, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	line = append(line, tail...)
	line = append(line, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(line)
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.attrs = append([]byte(nil), h.attrs...)
	for _, attr := range attrs {
		clone.attrs = appendAttr(clone.attrs, &clone.header, h.group, attr)
	}
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.group = h.group + name + "."
	return &clone
}

func appendAttr(dst []byte, header *lineHeader, group string, attr slog.Attr) []byte {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	if attr.Value.Kind() == slog.KindGroup {
		members := attr.Value.Group()
		if attr.Key != "" {
			group += attr.Key + "."
		}
		for _, member := range members {
			dst = appendAttr(dst, header, group, member)
		}
		return dst
	}
	if group == "" && header.lift(attr.Key, attr.Value) {
		return dst
	}
	dst = append(dst, ' ')
	dst = append(dst, group...)
	dst = append(dst, attr.Key...)
	dst = append(dst, '=')
	return appendValue(dst, attr.Value)
}

func appendValue(dst []byte, v slog.Value) []byte {
	switch v.Kind() {
	case slog.KindString:
		return appendText(dst, v.String())
	case slog.KindInt64:
		return strconv.AppendInt(dst, v.Int64(), 10)
	case slog.KindUint64:
		return strconv.AppendUint(dst, v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.AppendFloat(dst, v.Float64(), 'f', -1, 64)
	case slog.KindBool:
		return strconv.AppendBool(dst, v.Bool())
	case slog.KindDuration:
		return append(dst, v.Duration().String()...)
	case slog.KindTime:
		return append(dst, timestampOf(v.Time())...)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return appendText(dst, err.Error())
		}
		return appendText(dst, fmt.Sprint(v.Any()))
	default:
		return appendText(dst, v.String())
	}
}

// appendText quotes values that would otherwise break key=value parsing.
func appendText(dst []byte, s string) []byte {
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.AppendQuote(dst, s)
	}
	return append(dst, s...)
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
