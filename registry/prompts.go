package registry

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scrivener-app/scrivener/mcp"
)

// Prompts is the prompt catalog, keyed by generated id.
type Prompts struct {
	*Registry[mcp.Prompt]
}

// NewPrompts constructs the prompt catalog, announcing mutations as
// notifications/prompts/list_changed.
func NewPrompts(b Broadcaster) *Prompts {
	return &Prompts{Registry: New[mcp.Prompt](string(mcp.PromptsListChangedNotificationMethod), b)}
}

var promptIDSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// GeneratePromptID derives a catalog id from a prompt name: the sanitized
// name plus a short random suffix so re-registering a name yields a fresh
// entry unless the caller supplies the id explicitly.
func GeneratePromptID(name string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return promptIDSanitizer.ReplaceAllString(name, "_") + "_" + suffix
}

// Set validates and upserts a prompt. A new entry gets a generated id and a
// created timestamp; updates keep created and refresh updated.
func (p *Prompts) Set(id string, prompt mcp.Prompt) (mcp.Prompt, error) {
	if prompt.Name == "" {
		return mcp.Prompt{}, errors.New("prompt must have a name")
	}
	if len(prompt.Messages) == 0 {
		return mcp.Prompt{}, errors.New("prompt must have at least one message")
	}

	if id == "" {
		id = GeneratePromptID(prompt.Name)
	}
	prompt.ID = id

	now := time.Now().UTC().Format(time.RFC3339)
	if existing, ok := p.Get(id); ok {
		prompt.Created = existing.Created
	} else {
		prompt.Created = now
	}
	prompt.Updated = now

	return p.Upsert(id, prompt), nil
}

// GetByName returns the first prompt whose name matches, in insertion order.
// Names are not unique in the catalog; ids are.
func (p *Prompts) GetByName(name string) (mcp.Prompt, bool) {
	for _, prompt := range p.Snapshot() {
		if prompt.Name == name {
			return prompt, true
		}
	}
	return mcp.Prompt{}, false
}
