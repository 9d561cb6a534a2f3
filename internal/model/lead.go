// Package model defines the lead, session, and source types shared across
// the scraping pipeline.
package model

import "time"

// ValidationStatus tracks external verification of a lead's contact data.
type ValidationStatus string

const (
	ValidationPending ValidationStatus = "pending"
	ValidationValid   ValidationStatus = "valid"
	ValidationInvalid ValidationStatus = "invalid"
)

// LeadStatus is the lifecycle state of a persisted lead.
type LeadStatus string

const (
	LeadStatusNew      LeadStatus = "new"
	LeadStatusEnriched LeadStatus = "enriched"
	LeadStatusExported LeadStatus = "exported"
)

// CandidateLead is an extracted-but-not-yet-deduplicated business record.
type CandidateLead struct {
	CompanyName string `json:"company_name"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
	Website     string `json:"website,omitempty"`
	Address     string `json:"address,omitempty"`
	Category    string `json:"category,omitempty"`
	SourceURL   string `json:"source_url,omitempty"`
}

// IsSavable reports whether the candidate satisfies the persistence gate:
// a non-empty company name plus at least one of phone, email, or address.
func (c CandidateLead) IsSavable() bool {
	if c.CompanyName == "" {
		return false
	}
	return c.Phone != "" || c.Email != "" || c.Address != ""
}

// Lead is a persisted business record. Identity for dedup purposes is the
// (CompanyName, Phone) pair; ID and UUID are assigned on insert.
type Lead struct {
	ID               int64            `json:"id"`
	UUID             string           `json:"uuid"`
	CompanyName      string           `json:"company_name"`
	Phone            string           `json:"phone,omitempty"`
	Email            string           `json:"email,omitempty"`
	Website          string           `json:"website,omitempty"`
	Address          string           `json:"address,omitempty"`
	Category         string           `json:"category,omitempty"`
	Source           Source           `json:"source"`
	SourceURL        string           `json:"source_url,omitempty"`
	ConfidenceScore  float64          `json:"confidence_score"`
	ValidationStatus ValidationStatus `json:"validation_status"`
	Status           LeadStatus       `json:"status"`
	SessionID        string           `json:"session_id,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	Source    Source `json:"source,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}
