package workfiles

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultTemplate names work files when no template is configured.
const DefaultTemplate = "{project[code]}_{asset}_{task}_v{version:0>3}<_{comment}>{ext}"

var (
	// ErrInvalidTemplate is returned for templates that cannot be parsed.
	ErrInvalidTemplate = errors.New("invalid template")

	// ErrMissingKey is returned when a required template key has no value.
	ErrMissingKey = errors.New("missing template key")
)

// Data holds template values. Nested keys are addressed as "{a[b]}".
type Data map[string]any

type segmentKind int

const (
	literalSeg segmentKind = iota
	keySeg
	optionalSeg
)

type segment struct {
	kind  segmentKind
	text  string
	path  []string
	fill  byte
	align byte
	width int
	inner []segment
}

// Template formats file names from Data. Placeholders are "{key}",
// "{key:0>N}" for padding and "{a[b]}" for nested keys. Sections in "<...>"
// are dropped when any of their keys is missing.
type Template struct {
	raw  string
	segs []segment
}

// ParseTemplate parses raw.
func ParseTemplate(raw string) (*Template, error) {
	segs, rest, err := parseSegments(raw, false)
	if err != nil {
		return nil, err
	}
	if rest != "" {
		return nil, fmt.Errorf("%w: unexpected %q in %q", ErrInvalidTemplate, rest[:1], raw)
	}
	return &Template{raw: raw, segs: segs}, nil
}

// MustParseTemplate is ParseTemplate that panics on error.
func MustParseTemplate(raw string) *Template {
	t, err := ParseTemplate(raw)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Template) String() string {
	return t.raw
}

// HasKey reports whether the template references key at its top level.
func (t *Template) HasKey(key string) bool {
	var walk func([]segment) bool
	walk = func(segs []segment) bool {
		for _, s := range segs {
			if s.kind == keySeg && s.path[0] == key {
				return true
			}
			if s.kind == optionalSeg && walk(s.inner) {
				return true
			}
		}
		return false
	}
	return walk(t.segs)
}

func parseSegments(s string, inOptional bool) ([]segment, string, error) {
	var segs []segment
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, segment{kind: literalSeg, text: lit.String()})
			lit.Reset()
		}
	}

	for len(s) > 0 {
		switch s[0] {
		case '{':
			end := strings.IndexByte(s, '}')
			if end < 0 {
				return nil, "", fmt.Errorf("%w: unclosed placeholder", ErrInvalidTemplate)
			}
			seg, err := parsePlaceholder(s[1:end])
			if err != nil {
				return nil, "", err
			}
			flush()
			segs = append(segs, seg)
			s = s[end+1:]
		case '<':
			if inOptional {
				return nil, "", fmt.Errorf("%w: nested optional section", ErrInvalidTemplate)
			}
			inner, rest, err := parseSegments(s[1:], true)
			if err != nil {
				return nil, "", err
			}
			if !strings.HasPrefix(rest, ">") {
				return nil, "", fmt.Errorf("%w: unclosed optional section", ErrInvalidTemplate)
			}
			flush()
			segs = append(segs, segment{kind: optionalSeg, inner: inner})
			s = rest[1:]
		case '>':
			if inOptional {
				flush()
				return segs, s, nil
			}
			return nil, "", fmt.Errorf("%w: unmatched '>'", ErrInvalidTemplate)
		case '}':
			return nil, "", fmt.Errorf("%w: unmatched '}'", ErrInvalidTemplate)
		default:
			lit.WriteByte(s[0])
			s = s[1:]
		}
	}
	if inOptional {
		return nil, "", fmt.Errorf("%w: unclosed optional section", ErrInvalidTemplate)
	}
	flush()
	return segs, "", nil
}

func parsePlaceholder(body string) (segment, error) {
	name, spec, hasSpec := strings.Cut(body, ":")
	seg := segment{kind: keySeg}

	for {
		i := strings.IndexByte(name, '[')
		if i < 0 {
			break
		}
		j := strings.IndexByte(name, ']')
		if j < i {
			return segment{}, fmt.Errorf("%w: bad key %q", ErrInvalidTemplate, body)
		}
		if i > 0 {
			seg.path = append(seg.path, name[:i])
		}
		seg.path = append(seg.path, name[i+1:j])
		name = name[j+1:]
	}
	if name != "" {
		seg.path = append(seg.path, name)
	}
	if len(seg.path) == 0 {
		return segment{}, fmt.Errorf("%w: empty placeholder", ErrInvalidTemplate)
	}

	if hasSpec {
		// fill, align, width: "0>3"
		if len(spec) < 3 || (spec[1] != '>' && spec[1] != '<') {
			return segment{}, fmt.Errorf("%w: bad format %q", ErrInvalidTemplate, spec)
		}
		w, err := strconv.Atoi(spec[2:])
		if err != nil || w < 0 {
			return segment{}, fmt.Errorf("%w: bad width %q", ErrInvalidTemplate, spec)
		}
		seg.fill, seg.align, seg.width = spec[0], spec[1], w
	}
	return seg, nil
}

func lookup(data Data, path []string) (any, bool) {
	var cur any = map[string]any(data)
	for _, k := range path {
		var next any
		var ok bool
		switch m := cur.(type) {
		case map[string]any:
			next, ok = m[k]
		case Data:
			next, ok = m[k]
		case map[string]string:
			next, ok = m[k]
		}
		if !ok || next == nil {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func (s segment) format(v any) string {
	out := fmt.Sprint(v)
	if pad := s.width - len(out); pad > 0 {
		fill := strings.Repeat(string(s.fill), pad)
		if s.align == '<' {
			return out + fill
		}
		return fill + out
	}
	return out
}

func keyName(path []string) string {
	if len(path) == 1 {
		return path[0]
	}
	return path[0] + "[" + strings.Join(path[1:], "][") + "]"
}

// Format fills the template from data.
func (t *Template) Format(data Data) (string, error) {
	var b strings.Builder
	for _, s := range t.segs {
		switch s.kind {
		case literalSeg:
			b.WriteString(s.text)
		case keySeg:
			v, ok := lookup(data, s.path)
			if !ok {
				return "", fmt.Errorf("%w: %s", ErrMissingKey, keyName(s.path))
			}
			b.WriteString(s.format(v))
		case optionalSeg:
			b.WriteString(formatOptional(s.inner, data))
		}
	}
	return b.String(), nil
}

func formatOptional(segs []segment, data Data) string {
	var b strings.Builder
	for _, s := range segs {
		if s.kind == literalSeg {
			b.WriteString(s.text)
			continue
		}
		v, ok := lookup(data, s.path)
		if !ok {
			return ""
		}
		b.WriteString(s.format(v))
	}
	return b.String()
}

// versionPattern compiles a matcher for file names the template produces
// from data with any version and any of extensions. The version is the
// first submatch.
func (t *Template) versionPattern(data Data, extensions []string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")

	var write func(segs []segment, optional bool) error
	write = func(segs []segment, optional bool) error {
		for _, s := range segs {
			switch s.kind {
			case literalSeg:
				b.WriteString(regexp.QuoteMeta(s.text))
			case optionalSeg:
				b.WriteString("(?:")
				if err := write(s.inner, true); err != nil {
					return err
				}
				b.WriteString(")?")
			case keySeg:
				switch {
				case len(s.path) == 1 && s.path[0] == "version":
					b.WriteString(`(\d+)`)
				case len(s.path) == 1 && s.path[0] == "ext":
					quoted := make([]string, 0, len(extensions))
					for _, e := range extensions {
						quoted = append(quoted, regexp.QuoteMeta(e))
					}
					b.WriteString("(?:" + strings.Join(quoted, "|") + ")")
				default:
					v, ok := lookup(data, s.path)
					switch {
					case ok:
						b.WriteString(regexp.QuoteMeta(s.format(v)))
					case optional:
						b.WriteString(".+?")
					default:
						return fmt.Errorf("%w: %s", ErrMissingKey, keyName(s.path))
					}
				}
			}
		}
		return nil
	}
	if err := write(t.segs, false); err != nil {
		return nil, err
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}
