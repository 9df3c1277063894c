package source

import (
	"github.com/rotisserie/eris"

	"github.com/NeverShitty/chittyfinance-sub000/internal/model"
	"github.com/NeverShitty/chittyfinance-sub000/internal/resilience"
)

// requiredCredentials lists the credential fields each provider needs before
// a fetch is worth attempting. A call known to fail auth is never made.
var requiredCredentials = map[model.ServiceType][]string{
	model.ServiceStripe:     {"api_key"},
	model.ServicePlaid:      {"access_token"},
	model.ServiceMercury:    {"api_token"},
	model.ServiceQuickBooks: {"access_token", "realm_id"},
	model.ServiceXero:       {"access_token", "tenant_id"},
	model.ServiceBrex:       {"api_token"},
	model.ServiceGusto:      {"access_token", "company_id"},
}

// RequiredCredentials returns the credential fields for a service type.
// Unknown service types require nothing (the adapter owns validation).
func RequiredCredentials(st model.ServiceType) []string {
	return requiredCredentials[st]
}

// ValidateCredentials checks that the source carries every required
// credential field with a non-empty value. Returns an AuthError naming the
// first missing field.
func ValidateCredentials(src model.Source) error {
	for _, field := range requiredCredentials[src.ServiceType] {
		if src.Credentials[field] == "" {
			return resilience.NewAuthError(string(src.ServiceType),
				eris.Errorf("missing credential %q", field))
		}
	}
	return nil
}
