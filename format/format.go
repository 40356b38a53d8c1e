// Package format normalizes arbitrary tool return values into the wire
// content-block array. It is a terminal boundary: formatting problems become
// error-shaped results instead of propagating.
package format

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/scrivener-app/scrivener/mcp"
)

// FileReader is the filesystem collaborator used for filePath-shaped results.
// The formatter only decides whether to read; where the bytes come from is
// not its concern.
type FileReader interface {
	Exists(path string) bool
	ReadFile(path string) ([]byte, error)
}

// OSFileReader reads from the process's own filesystem.
type OSFileReader struct{}

func (OSFileReader) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (OSFileReader) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// FileResult is a typed way for handlers to return a file reference.
type FileResult struct {
	FilePath string `json:"filePath"`
	MimeType string `json:"mimeType,omitempty"`
}

// ResourceRef is a typed way for handlers to return a resource reference.
type ResourceRef struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

// Options tweaks formatting of a single result.
type Options struct {
	// MimeType overrides sniffing for raw byte payloads.
	MimeType string
}

// Formatter shapes tool results into mcp.CallToolResult values.
type Formatter struct {
	files FileReader
	log   *slog.Logger
}

// New constructs a Formatter. A nil reader disables filePath resolution; a
// nil logger falls back to slog.Default.
func New(files FileReader, log *slog.Logger) *Formatter {
	if log == nil {
		log = slog.Default()
	}
	return &Formatter{files: files, log: log.With(slog.String("component", "format"))}
}

// Format converts a tool's raw return value into the wire result shape. It
// never returns an error: failures are folded into an error-shaped result.
func (f *Formatter) Format(result any, opts Options) mcp.CallToolResult {
	switch v := result.(type) {
	case nil:
		return textResult("Operation completed successfully with no result.", false)
	case error:
		return textResult(v.Error(), true)
	case mcp.CallToolResult:
		return v
	case *mcp.CallToolResult:
		if v == nil {
			return textResult("Operation completed successfully with no result.", false)
		}
		return *v
	case mcp.ContentBlock:
		return mcp.CallToolResult{Content: []mcp.ContentBlock{v}}
	case []mcp.ContentBlock:
		return mcp.CallToolResult{Content: v}
	case string:
		return textResult(v, false)
	case []byte:
		return mcp.CallToolResult{Content: []mcp.ContentBlock{f.binaryBlock(v, opts.MimeType, "")}}
	case FileResult:
		return f.fileResult(v)
	case *FileResult:
		if v == nil {
			return textResult("Operation completed successfully with no result.", false)
		}
		return f.fileResult(*v)
	case ResourceRef:
		return resourceResult(v)
	case map[string]any:
		return f.formatMap(v)
	}

	if blocks, ok := contentBlockSlice(result); ok {
		return mcp.CallToolResult{Content: blocks}
	}

	// Structs and other composites: pretty-printed JSON. Scalars that don't
	// marshal cleanly fall back to fmt.
	switch result.(type) {
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return textResult(fmt.Sprint(result), false)
	}
	return f.jsonResult(result)
}

// formatMap applies the duck-typed result shapes: error, MCP block
// passthrough, file reference, resource reference, then plain object.
func (f *Formatter) formatMap(m map[string]any) mcp.CallToolResult {
	if errVal, ok := m["error"]; ok && errVal != nil {
		return textResult(errorText(errVal), true)
	}

	if t, ok := m["type"].(string); ok {
		switch t {
		case mcp.ContentTypeText, mcp.ContentTypeImage, mcp.ContentTypeAudio, mcp.ContentTypeResource:
			if block, ok := reshapeBlock(m); ok {
				return mcp.CallToolResult{Content: []mcp.ContentBlock{block}}
			}
		}
	}

	if path, ok := m["filePath"].(string); ok && path != "" && f.files != nil && f.files.Exists(path) {
		mt, _ := m["mimeType"].(string)
		return f.fileResult(FileResult{FilePath: path, MimeType: mt})
	}

	uri, hasURI := m["uri"].(string)
	mt, hasMime := m["mimeType"].(string)
	if hasURI && hasMime && uri != "" && mt != "" {
		ref := ResourceRef{URI: uri, MimeType: mt}
		ref.Text, _ = m["text"].(string)
		ref.Blob, _ = m["blob"].(string)
		return resourceResult(ref)
	}

	return f.jsonResult(m)
}

func (f *Formatter) fileResult(fr FileResult) mcp.CallToolResult {
	if f.files == nil || !f.files.Exists(fr.FilePath) {
		return textResult(fmt.Sprintf("file not found: %s", fr.FilePath), true)
	}
	data, err := f.files.ReadFile(fr.FilePath)
	if err != nil {
		f.log.Error("failed to read result file", slog.String("path", fr.FilePath), slog.String("err", err.Error()))
		return textResult(fmt.Sprintf("Error formatting result: %v", err), true)
	}

	mimeType := fr.MimeType
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(fr.FilePath))
	}
	return mcp.CallToolResult{Content: []mcp.ContentBlock{f.binaryBlock(data, mimeType, "file://"+fr.FilePath)}}
}

// binaryBlock types a byte payload by its MIME category: text is inlined,
// image/audio are base64 data blocks, anything else becomes an embedded
// resource.
func (f *Formatter) binaryBlock(data []byte, mimeType, uri string) mcp.ContentBlock {
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	// Strip parameters such as "; charset=utf-8" for category matching.
	category := mimeType
	if i := strings.Index(category, ";"); i >= 0 {
		category = strings.TrimSpace(category[:i])
	}

	switch {
	case strings.HasPrefix(category, "text/"):
		return mcp.ContentBlock{Type: mcp.ContentTypeText, Text: string(data)}
	case strings.HasPrefix(category, "image/"):
		return mcp.ContentBlock{Type: mcp.ContentTypeImage, Data: base64.StdEncoding.EncodeToString(data), MimeType: category}
	case strings.HasPrefix(category, "audio/"):
		return mcp.ContentBlock{Type: mcp.ContentTypeAudio, Data: base64.StdEncoding.EncodeToString(data), MimeType: category}
	default:
		return mcp.ContentBlock{
			Type: mcp.ContentTypeResource,
			Resource: &mcp.ResourceContents{
				URI:      uri,
				MimeType: category,
				Blob:     base64.StdEncoding.EncodeToString(data),
			},
		}
	}
}

func (f *Formatter) jsonResult(v any) mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		f.log.Error("failed to format tool result", slog.String("err", err.Error()))
		return textResult(fmt.Sprintf("Error formatting result: %v", err), true)
	}
	return textResult(string(data), false)
}

func resourceResult(ref ResourceRef) mcp.CallToolResult {
	return mcp.CallToolResult{Content: []mcp.ContentBlock{{
		Type: mcp.ContentTypeResource,
		Resource: &mcp.ResourceContents{
			URI:      ref.URI,
			MimeType: ref.MimeType,
			Text:     ref.Text,
			Blob:     ref.Blob,
		},
	}}}
}

func textResult(text string, isError bool) mcp.CallToolResult {
	return mcp.CallToolResult{
		Content: []mcp.ContentBlock{{Type: mcp.ContentTypeText, Text: text}},
		IsError: isError,
	}
}

// errorText renders the error field of an error-shaped result.
func errorText(v any) string {
	switch e := v.(type) {
	case string:
		return e
	case error:
		return e.Error()
	case map[string]any:
		if msg, ok := e["message"].(string); ok {
			return msg
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

// reshapeBlock round-trips a loosely typed map into a ContentBlock, verifying
// it survives as the claimed type.
func reshapeBlock(m map[string]any) (mcp.ContentBlock, bool) {
	data, err := json.Marshal(m)
	if err != nil {
		return mcp.ContentBlock{}, false
	}
	var block mcp.ContentBlock
	if err := json.Unmarshal(data, &block); err != nil {
		return mcp.ContentBlock{}, false
	}
	return block, block.Type != ""
}

// contentBlockSlice accepts []*mcp.ContentBlock and similar pre-formatted
// slices handed back by handlers.
func contentBlockSlice(v any) ([]mcp.ContentBlock, bool) {
	ptrs, ok := v.([]*mcp.ContentBlock)
	if !ok {
		return nil, false
	}
	out := make([]mcp.ContentBlock, 0, len(ptrs))
	for _, p := range ptrs {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out, true
}
