// Package crm defines the contract between the gateway and the CRM that owns
// lead records. The gateway only ever writes contacts, it never reads them back.
package crm

import (
	"context"
	"errors"
)

// Attribute names shared by every provider.
const (
	AttrFirstName         = "FIRSTNAME"
	AttrLastName          = "LASTNAME"
	AttrCompany           = "COMPANY"
	AttrConsentContact    = "CONSENT_CONTACT"
	AttrConsentNewsletter = "CONSENT_NEWSLETTER"
	AttrLeadStatus        = "LEAD_STATUS"
)

const (
	LeadStatusPartial  = "partial"
	LeadStatusComplete = "complete"
)

// ErrNotConfigured is wrapped by providers that have no credentials. The
// gateway answers with its generic failure message either way.
var ErrNotConfigured = errors.New("not configured")

// Contact is one upsert request keyed by email. Attributes are merged into
// whatever the CRM already holds for that address.
type Contact struct {
	Email         string                 `json:"email"`
	Attributes    map[string]interface{} `json:"attributes"`
	ListIDs       []int64                `json:"listIds,omitempty"`
	UpdateEnabled bool                   `json:"updateEnabled"`
}

// Upserter creates the contact or, when it already exists, updates it.
type Upserter interface {
	UpsertContact(ctx context.Context, contact Contact) error
}
