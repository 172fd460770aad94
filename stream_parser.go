// stream_parser.go: Generic push-style XML stream parser
//
// StreamParser pulls bytes from a Source, tokenizes them with encoding/xml
// and pushes element events to an ElementHandler. It owns the ParserContext
// (the stack of open element names) for the duration of one run and knows
// nothing about what the events mean.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cerberus

import (
	"bytes"
	"encoding/xml"
	goerrors "errors"
	"io"
	"strings"

	"github.com/agilira/go-errors"
	"golang.org/x/net/html/charset"
)

// DefaultMaxDepth bounds element nesting when no explicit limit is configured
const DefaultMaxDepth = 64

// Attribute is one attribute of a start tag. Space holds the resolved
// namespace URL (or "xmlns" for namespace declarations), empty otherwise.
type Attribute struct {
	Space string
	Name  string
	Value string
}

// ElementHandler reacts to parse events. Returning an error aborts the run;
// the error is handed back to the caller unchanged.
type ElementHandler interface {
	StartElement(ctx *ParserContext, name string, attrs []Attribute) error
	EndElement(ctx *ParserContext, name string) error
	CharData(ctx *ParserContext, text []byte) error
}

// ParserContext is the transient state of one parse run
type ParserContext struct {
	stack   []string
	source  string
	decoder *xml.Decoder
	input   *trackingReader
}

// trackingReader remembers the first failure of the underlying source and of
// the charset conversion so decoder errors can be attributed to their cause
type trackingReader struct {
	r          io.Reader
	readErr    error
	charsetErr error
}

func (tr *trackingReader) Read(p []byte) (int, error) {
	n, err := tr.r.Read(p)
	if err != nil && err != io.EOF && tr.readErr == nil {
		tr.readErr = err
	}
	return n, err
}

// charsetReader converts documents declaring a non UTF-8 encoding
func (tr *trackingReader) charsetReader(label string, input io.Reader) (io.Reader, error) {
	r, err := charset.NewReaderLabel(label, input)
	if err != nil {
		tr.charsetErr = err
		return nil, err
	}
	return r, nil
}

// Depth returns the number of currently open elements
func (c *ParserContext) Depth() int {
	return len(c.stack)
}

// Path returns a copy of the open element names, outermost first
func (c *ParserContext) Path() []string {
	out := make([]string, len(c.stack))
	copy(out, c.stack)
	return out
}

// Top returns the innermost open element name, or "" outside the root
func (c *ParserContext) Top() string {
	if len(c.stack) == 0 {
		return ""
	}
	return c.stack[len(c.stack)-1]
}

// KeyPath joins the open element names below the document root with
// KeySeparator. Inside the root element itself it is empty.
func (c *ParserContext) KeyPath() string {
	if len(c.stack) <= 1 {
		return ""
	}
	return strings.Join(c.stack[1:], KeySeparator)
}

// Source returns the name of the source being parsed
func (c *ParserContext) Source() string {
	return c.source
}

// Position returns the decoder's current line and column
func (c *ParserContext) Position() (line, column int) {
	if c.decoder == nil {
		return 0, 0
	}
	return c.decoder.InputPos()
}

func (c *ParserContext) push(name string) {
	c.stack = append(c.stack, name)
}

func (c *ParserContext) pop() {
	if len(c.stack) > 0 {
		c.stack = c.stack[:len(c.stack)-1]
	}
}

// StreamParser drives an XML tokenizer over a Source
type StreamParser struct {
	// MaxDepth limits element nesting; values <= 0 use DefaultMaxDepth
	MaxDepth int
}

// NewStreamParser creates a stream parser with the given nesting limit
func NewStreamParser(maxDepth int) *StreamParser {
	return &StreamParser{MaxDepth: maxDepth}
}

// Run parses src to completion, dispatching events to h. It never closes src.
// Malformed documents and read failures are reported as CERBERUS_PARSE_ERROR;
// handler errors are returned as they are.
func (p *StreamParser) Run(src Source, h ElementHandler) error {
	maxDepth := p.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	input := &trackingReader{r: src}
	decoder := xml.NewDecoder(input)
	decoder.Strict = true
	decoder.CharsetReader = input.charsetReader
	ctx := &ParserContext{
		stack:   make([]string, 0, 8),
		source:  src.Name(),
		decoder: decoder,
		input:   input,
	}

	rootSeen := false
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return p.tokenError(ctx, err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			if ctx.Depth() == 0 && rootSeen {
				return p.structureError(ctx, "document has more than one root element")
			}
			if ctx.Depth() >= maxDepth {
				return p.structureError(ctx, "element nesting exceeds maximum depth", "max_depth", maxDepth)
			}
			if dup, ok := duplicateAttribute(t.Attr); ok {
				return p.structureError(ctx, "attribute specified more than once",
					"element", t.Name.Local, "attribute", dup)
			}
			rootSeen = true
			ctx.push(t.Name.Local)
			if err := h.StartElement(ctx, t.Name.Local, convertAttributes(t.Attr)); err != nil {
				return err
			}

		case xml.EndElement:
			if err := h.EndElement(ctx, t.Name.Local); err != nil {
				return err
			}
			ctx.pop()

		case xml.CharData:
			if ctx.Depth() == 0 {
				if len(bytes.TrimSpace(t)) > 0 {
					return p.structureError(ctx, "character data outside the root element")
				}
				continue
			}
			if err := h.CharData(ctx, t); err != nil {
				return err
			}
		}
		// Comments, processing instructions and directives carry no configuration.
	}

	if !rootSeen {
		return p.structureError(ctx, "document has no root element")
	}
	if ctx.Depth() != 0 {
		return p.structureError(ctx, "unexpected end of document", "open_element", ctx.Top())
	}
	return nil
}

// tokenError classifies a decoder failure by cause: a syntax error, a read
// failure of the byte source, an unsupported declared encoding, or a
// declaration the decoder rejects.
func (p *StreamParser) tokenError(ctx *ParserContext, err error) error {
	var syntaxErr *xml.SyntaxError
	if goerrors.As(err, &syntaxErr) {
		return errors.Wrap(err, ErrCodeParseError, "malformed XML").
			WithContext("source", ctx.source).
			WithContext("line", syntaxErr.Line)
	}
	line, _ := ctx.Position()
	msg := "invalid XML declaration"
	switch {
	case ctx.input != nil && ctx.input.readErr != nil:
		msg = "failed reading configuration source"
	case ctx.input != nil && ctx.input.charsetErr != nil:
		msg = "unsupported document encoding"
	}
	return errors.Wrap(err, ErrCodeParseError, msg).
		WithContext("source", ctx.source).
		WithContext("line", line)
}

// structureError reports a document that tokenizes but is not a single
// well-formed tree. extra holds additional context as key/value pairs.
func (p *StreamParser) structureError(ctx *ParserContext, msg string, extra ...interface{}) error {
	line, column := ctx.Position()
	err := errors.New(ErrCodeParseError, msg).
		WithContext("source", ctx.source).
		WithContext("line", line).
		WithContext("column", column)
	for i := 0; i+1 < len(extra); i += 2 {
		if key, ok := extra[i].(string); ok {
			err = err.WithContext(key, extra[i+1])
		}
	}
	return err
}

// duplicateAttribute returns the first attribute name that occurs twice on
// one start tag. encoding/xml accepts such tags although XML forbids them.
func duplicateAttribute(attrs []xml.Attr) (string, bool) {
	if len(attrs) < 2 {
		return "", false
	}
	seen := make(map[xml.Name]struct{}, len(attrs))
	for _, a := range attrs {
		if _, ok := seen[a.Name]; ok {
			if a.Name.Space != "" {
				return a.Name.Space + ":" + a.Name.Local, true
			}
			return a.Name.Local, true
		}
		seen[a.Name] = struct{}{}
	}
	return "", false
}

func convertAttributes(attrs []xml.Attr) []Attribute {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]Attribute, len(attrs))
	for i, a := range attrs {
		out[i] = Attribute{Space: a.Name.Space, Name: a.Name.Local, Value: a.Value}
	}
	return out
}
