package model

// ServiceType identifies a connected provider kind. The set of known types
// mirrors the integrations the platform supports; adapters are registered
// under these keys at startup.
type ServiceType string

const (
	ServiceStripe     ServiceType = "stripe"
	ServicePlaid      ServiceType = "plaid"
	ServiceMercury    ServiceType = "mercury"
	ServiceQuickBooks ServiceType = "quickbooks"
	ServiceXero       ServiceType = "xero"
	ServiceBrex       ServiceType = "brex"
	ServiceGusto      ServiceType = "gusto"
)

// Source is one connected external financial provider for a user. The core
// only reads sources; linking and disconnecting are owned by the user record.
type Source struct {
	ServiceType   ServiceType       `json:"service_type"`
	IntegrationID string            `json:"integration_id"`
	Connected     bool              `json:"connected"`
	Credentials   map[string]string `json:"credentials,omitempty"`
}

// Key returns the cache key for this source: "<service_type>:<integration_id>".
// Invalidation by service type relies on the service type being the prefix.
func (s Source) Key() string {
	return string(s.ServiceType) + ":" + s.IntegrationID
}

// Label returns a human-readable source label used in contradiction records.
func (s Source) Label() string {
	return string(s.ServiceType)
}
