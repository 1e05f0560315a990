// Package tenant exposes the per-tenant settings the orchestrator
// consults when biasing provider selection and decorating replies.
// Storage and validation of tenant configuration live outside this
// service; the registry here is a read-only view of what was loaded at
// startup.
package tenant

import (
	"sync"

	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/config"
)

// Tenant is one isolated customer organization.
type Tenant struct {
	ID                string
	Name              string
	PreferredProvider string
	SelectionPolicy   string
	BrandingTone      string
	ContactPhone      string
	ContactEmail      string
}

// Registry holds tenants by ID.
type Registry struct {
	mu      sync.RWMutex
	tenants map[string]*Tenant
}

// NewRegistry builds a registry from configuration.
func NewRegistry(configs []config.TenantConfig) *Registry {
	r := &Registry{tenants: make(map[string]*Tenant, len(configs))}
	r.Reload(configs)
	return r
}

// Reload replaces the tenant set, used on config hot reload.
func (r *Registry) Reload(configs []config.TenantConfig) {
	tenants := make(map[string]*Tenant, len(configs))
	for _, cfg := range configs {
		if cfg.ID == "" {
			continue
		}
		tenants[cfg.ID] = &Tenant{
			ID:                cfg.ID,
			Name:              cfg.Name,
			PreferredProvider: cfg.PreferredProvider,
			SelectionPolicy:   cfg.SelectionPolicy,
			BrandingTone:      cfg.BrandingTone,
			ContactPhone:      cfg.ContactPhone,
			ContactEmail:      cfg.ContactEmail,
		}
	}

	r.mu.Lock()
	r.tenants = tenants
	r.mu.Unlock()
}

// Get returns the tenant, or a zero-configured tenant carrying just the
// ID so unknown tenants still get service defaults.
func (r *Registry) Get(id string) *Tenant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t, ok := r.tenants[id]; ok {
		return t
	}
	return &Tenant{ID: id}
}

// Known reports whether id was explicitly configured.
func (r *Registry) Known(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tenants[id]
	return ok
}
