// Package zoho is the alternative CRM provider, selected with
// lead.crm_provider: zoho.
package zoho

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"ipa-leadgate/internal/common/crm"
	httpclient "ipa-leadgate/internal/common/http"
	"ipa-leadgate/internal/common/metrics"
	"ipa-leadgate/internal/common/observability"
)

const DefaultBaseURL = "https://www.zohoapis.com/crm/v3"

// LeadSource is written on every contact the gateway creates.
const LeadSource = "IPA Website"

type CRMClient struct {
	oauthToken string
	baseURL    string
	http       *httpclient.Client
	obs        *observability.Observability
}

// Record is a Zoho contact: the standard fields plus custom fields keyed by
// their API name.
type Record map[string]interface{}

type recordResponse struct {
	Data []struct {
		Code    string `json:"code"`
		Details struct {
			ID string `json:"id"`
		} `json:"details"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"data"`
}

func NewCRMClient(oauthToken, baseURL string, obs *observability.Observability) *CRMClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &CRMClient{
		oauthToken: oauthToken,
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       httpclient.NewClient(30 * time.Second),
		obs:        obs,
	}
}

// UpsertContact looks the contact up by email and updates it, or creates it
// when the search finds nothing.
func (c *CRMClient) UpsertContact(ctx context.Context, contact crm.Contact) (err error) {
	ctx, span := c.obs.StartSpan(ctx, "zoho.upsert_contact", attribute.String("crm", "zoho"))
	defer func() {
		if err != nil {
			metrics.CollaboratorFailures.WithLabelValues("zoho", "upsert_contact").Inc()
		}
		observability.EndSpan(span, err)
	}()

	if c.oauthToken == "" {
		return fmt.Errorf("zoho CRM client %w", crm.ErrNotConfigured)
	}

	existing, err := c.SearchContacts(ctx, contact.Email)
	if err != nil {
		return err
	}

	record := toRecord(contact)
	if len(existing) > 0 {
		id, _ := existing[0]["id"].(string)
		return c.UpdateContact(ctx, id, record)
	}

	if _, ok := record["Last_Name"]; !ok {
		record["Last_Name"] = contact.Email
	}
	record["Lead_Source"] = LeadSource
	_, err = c.CreateContact(ctx, record)
	return err
}

func toRecord(contact crm.Contact) Record {
	record := Record{"Email": contact.Email}
	for k, v := range contact.Attributes {
		switch k {
		case crm.AttrFirstName:
			record["First_Name"] = v
		case crm.AttrLastName:
			record["Last_Name"] = v
		case crm.AttrCompany:
			record["Account_Name"] = v
		default:
			record[k] = v
		}
	}
	return record
}

func (c *CRMClient) CreateContact(ctx context.Context, record Record) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, "/Contacts", map[string]interface{}{"data": []Record{record}})
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to create contact (status %d): %s", resp.StatusCode, string(resp.Body))
	}

	var createResp recordResponse
	if err := resp.Decode(&createResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(createResp.Data) == 0 {
		return "", fmt.Errorf("no data in response")
	}
	if createResp.Data[0].Status != "success" {
		return "", fmt.Errorf("contact creation failed: %s", createResp.Data[0].Message)
	}
	return createResp.Data[0].Details.ID, nil
}

func (c *CRMClient) UpdateContact(ctx context.Context, contactID string, record Record) error {
	resp, err := c.do(ctx, http.MethodPut, "/Contacts/"+url.PathEscape(contactID), map[string]interface{}{"data": []Record{record}})
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to update contact (status %d): %s", resp.StatusCode, string(resp.Body))
	}
	return nil
}

// SearchContacts returns the contacts with the given email. Zoho answers
// 204 when nothing matches.
func (c *CRMClient) SearchContacts(ctx context.Context, email string) ([]Record, error) {
	resp, err := c.do(ctx, http.MethodGet, "/Contacts/search?email="+url.QueryEscape(email), nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to search contacts (status %d): %s", resp.StatusCode, string(resp.Body))
	}

	var result struct {
		Data []Record `json:"data"`
	}
	if err := resp.Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return result.Data, nil
}

func (c *CRMClient) do(ctx context.Context, method, path string, payload interface{}) (*httpclient.Response, error) {
	resp, err := c.http.DoJSON(ctx, method, c.baseURL+path, map[string]string{
		"Authorization": "Zoho-oauthtoken " + c.oauthToken,
	}, payload)
	if err != nil {
		return nil, fmt.Errorf("zoho: %w", err)
	}
	return resp, nil
}
