// Package cursor implements the opaque pagination cursors used by the list
// methods. A cursor encodes an offset into a deterministically ordered
// snapshot; it degrades gracefully when the underlying list has changed.
package cursor

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

const prefix = "o:"

// Encode turns an offset into an opaque cursor string.
func Encode(offset int) string {
	return base64.StdEncoding.EncodeToString([]byte(prefix + strconv.Itoa(offset)))
}

// Decode turns a cursor back into an offset. An empty, corrupt, or negative
// cursor decodes to offset 0; callers never see an error.
func Decode(cursor string) int {
	if cursor == "" {
		return 0
	}
	raw, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return 0
	}
	s, ok := strings.CutPrefix(string(raw), prefix)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Page is one slice of a paginated listing. NextCursor is empty when the page
// reaches the end of the list.
type Page[T any] struct {
	Items      []T
	NextCursor string
}

// Paginate slices items according to the supplied cursor and page size. A
// pageSize <= 0 returns all remaining items in one page. Offsets beyond the
// end of the list clamp rather than fail, since a stale cursor may reference
// a snapshot that has since shrunk.
func Paginate[T any](items []T, cur string, pageSize int) Page[T] {
	start := Decode(cur)
	if start > len(items) {
		start = len(items)
	}
	end := len(items)
	if pageSize > 0 && start+pageSize < end {
		end = start + pageSize
	}
	page := Page[T]{Items: make([]T, end-start)}
	copy(page.Items, items[start:end])
	if end < len(items) {
		page.NextCursor = Encode(end)
	}
	return page
}

// String renders the page bounds for debugging.
func (p Page[T]) String() string {
	return fmt.Sprintf("page{items:%d, next:%q}", len(p.Items), p.NextCursor)
}
