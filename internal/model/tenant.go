// Package model defines data structures for the chat gateway.
package model

// TenantConfig is a tenant's bot-facing settings. The gateway never mutates a
// TenantConfig; a refresh replaces the cached copy wholesale.
type TenantConfig struct {
	TenantID         string `json:"tenantId"`
	WelcomeMessage   string `json:"welcomeMessage"`
	AutoReplyEnabled bool   `json:"autoReplyEnabled"`
	AutoReplyMessage string `json:"autoReplyMessage"`
}

// LinkState is derived from whether a tenant could be resolved for a conversation.
type LinkState string

const (
	LinkStateUnlinked LinkState = "unlinked"
	LinkStateLinked   LinkState = "linked"
)

// State returns the link state implied by a resolution result.
func (c *TenantConfig) State() LinkState {
	if c == nil || c.TenantID == "" {
		return LinkStateUnlinked
	}
	return LinkStateLinked
}
