package logout

import (
	"go.uber.org/zap"

	"github.com/DmitriiSeitsman/ImageFeed/internal/tokenstore"
)

// SiteDataClearer clears cookies and other site data held by the transport.
type SiteDataClearer interface {
	ClearSiteData()
}

// DataClearer resets a service's in-memory session state.
type DataClearer interface {
	ClearData()
}

// Coordinator tears a session down: cookies, persisted token, and every
// service's in-memory state. Calling it while already logged out is a no-op
// beyond re-clearing.
type Coordinator struct {
	store    tokenstore.Store
	siteData SiteDataClearer
	services []DataClearer
	logger   *zap.Logger
}

// NewCoordinator wires the logout coordinator over the given services.
func NewCoordinator(store tokenstore.Store, siteData SiteDataClearer, logger *zap.Logger, services ...DataClearer) *Coordinator {
	return &Coordinator{store: store, siteData: siteData, services: services, logger: logger}
}

// Logout clears all session state. Idempotent.
func (c *Coordinator) Logout() {
	if c.siteData != nil {
		c.siteData.ClearSiteData()
	}
	c.store.Clear()
	for _, svc := range c.services {
		svc.ClearData()
	}
	c.log().Info("session cleared")
}

func (c *Coordinator) log() *zap.Logger {
	if c != nil && c.logger != nil {
		return c.logger
	}
	return zap.L()
}
