package domain

import (
	"time"
)

// CallSummary captures what a prospective client told the sales assistant during a call
type CallSummary struct {
	SummaryID    string     `json:"summaryId" gorm:"column:summary_id;type:varchar(64);primaryKey"`
	ClientName   string     `json:"clientName" gorm:"column:client_name;type:varchar(255)"`
	BusinessName string     `json:"businessName" gorm:"column:business_name;type:varchar(255)"`
	BusinessType string     `json:"businessType" gorm:"column:business_type;type:varchar(255)"`
	Services     StringList `json:"services" gorm:"column:services;type:jsonb"`
	Budget       string     `json:"budget" gorm:"column:budget;type:varchar(255)"`
	Timeline     string     `json:"timeline" gorm:"column:timeline;type:varchar(255)"`
	Notes        string     `json:"notes" gorm:"column:notes;type:text"`
	SummarizedAt time.Time  `json:"summarizedAt" gorm:"column:summarized_at"`
}

// TableName sets the table name for CallSummary
func (CallSummary) TableName() string {
	return "call_summaries"
}

// SummarizeCallParams are the tool-call parameters of summarizeClientCall
type SummarizeCallParams struct {
	ClientName   string     `json:"clientName"`
	BusinessName string     `json:"businessName"`
	BusinessType string     `json:"businessType"`
	Services     StringList `json:"services"`
	Budget       string     `json:"budget"`
	Timeline     string     `json:"timeline"`
	Notes        string     `json:"notes"`
}

// NewCallSummary applies the documented defaults to the supplied parameters
func NewCallSummary(id string, p SummarizeCallParams, now time.Time) *CallSummary {
	summary := &CallSummary{
		SummaryID:    id,
		ClientName:   p.ClientName,
		BusinessName: p.BusinessName,
		BusinessType: p.BusinessType,
		Services:     p.Services,
		Budget:       p.Budget,
		Timeline:     p.Timeline,
		Notes:        p.Notes,
		SummarizedAt: now,
	}
	if summary.ClientName == "" {
		summary.ClientName = "Unknown"
	}
	summary.BusinessName = DefaultBusinessName(summary.BusinessName, summary.ClientName)
	if summary.BusinessType == "" {
		summary.BusinessType = "general"
	}
	if summary.Services == nil {
		summary.Services = StringList{}
	}
	if summary.Budget == "" {
		summary.Budget = "not specified"
	}
	if summary.Timeline == "" {
		summary.Timeline = "flexible"
	}
	return summary
}
