package registry

import "github.com/scrivener-app/scrivener/mcp"

// Resources is the resource catalog.
type Resources struct {
	*Registry[mcp.Resource]
}

// NewResources constructs the resource catalog, announcing mutations as
// notifications/resources/list_changed.
func NewResources(b Broadcaster) *Resources {
	return &Resources{Registry: New[mcp.Resource](string(mcp.ResourcesListChangedNotificationMethod), b)}
}

// GetByURI returns the resource whose URI matches.
func (r *Resources) GetByURI(uri string) (mcp.Resource, bool) {
	return r.Get(uri)
}
