package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Defaults applied to JobParams at the creation boundary.
const (
	DefaultModel        = "base"
	DefaultSummaryStyle = "bullet"
	DefaultOutputFormat = OutputFormatText
)

// JobParams is the explicit configuration of a job.
type JobParams struct {
	Model          string `json:"model"`
	Language       string `json:"language,omitempty"`
	TargetLanguage string `json:"targetLanguage,omitempty"`
	SummaryStyle   string `json:"summaryStyle,omitempty"`
	OutputFormat   string `json:"outputFormat,omitempty"`
	Timestamps     bool   `json:"timestamps,omitempty"`
}

// WithDefaults returns a copy with documented defaults filled in.
func (p JobParams) WithDefaults() JobParams {
	if strings.TrimSpace(p.Model) == "" {
		p.Model = DefaultModel
	}
	if strings.TrimSpace(p.SummaryStyle) == "" {
		p.SummaryStyle = DefaultSummaryStyle
	}
	if p.OutputFormat == "" {
		p.OutputFormat = DefaultOutputFormat
	}
	p.OutputFormat = strings.ToLower(p.OutputFormat)
	return p
}

// Validate checks params against the supported values.
func (p JobParams) Validate() error {
	switch p.OutputFormat {
	case "", OutputFormatText, OutputFormatJSON, OutputFormatSRT, OutputFormatVTT:
	default:
		return fmt.Errorf("%w: unsupported output format %q", ErrValidation, p.OutputFormat)
	}
	if len(p.Model) > 128 {
		return fmt.Errorf("%w: model name too long", ErrValidation)
	}
	return nil
}

// JobTasks selects the optional post-processing steps.
type JobTasks struct {
	Translate bool `json:"translate"`
	Summarize bool `json:"summarize"`
}

// File is one media input of a job. Immutable once created.
type File struct {
	ID           int64  `db:"id" json:"-"`
	JobID        string `db:"job_id" json:"-"`
	Position     int    `db:"position" json:"position"`
	OriginalName string `db:"original_name" json:"originalName"`
	MIMEType     string `db:"mime_type" json:"mimeType"`
	Bucket       string `db:"bucket" json:"bucket"`
	Key          string `db:"storage_key" json:"key"`
}

// Job mirrors the jobs table together with its ordered files.
type Job struct {
	ID        string          `db:"id" json:"id"`
	OrgID     *string         `db:"org_id" json:"orgId,omitempty"`
	UserID    *string         `db:"user_id" json:"userId,omitempty"`
	Status    string          `db:"status" json:"status"`
	Progress  int             `db:"progress" json:"progress"`
	Params    JobParams       `db:"params" json:"params"`
	Tasks     JobTasks        `db:"tasks" json:"tasks"`
	Result    json.RawMessage `db:"result" json:"result,omitempty"`
	Error     *string         `db:"error" json:"error,omitempty"`
	Files     []File          `db:"-" json:"files"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time       `db:"updated_at" json:"updatedAt"`
}

// Org returns the owning org ID or "" when the job has none.
func (j *Job) Org() string {
	if j.OrgID == nil {
		return ""
	}
	return *j.OrgID
}

// Segment is a timestamped span of transcript text, offsets in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// JobResult is the payload persisted on completion.
type JobResult struct {
	Transcript  string           `json:"transcript"`
	Translation *string          `json:"translation,omitempty"`
	Summary     *string          `json:"summary,omitempty"`
	JSON        json.RawMessage  `json:"json,omitempty"`
	SRT         string           `json:"srt,omitempty"`
	VTT         string           `json:"vtt,omitempty"`
	Usage       *UsageAllocation `json:"usage,omitempty"`
}

// Org is the billing unit. The core only ever sets OverLimit.
type Org struct {
	ID        string    `db:"id"`
	OverLimit bool      `db:"over_limit"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Subscription is written by billing sync and read by the ledger.
type Subscription struct {
	OrgID            string     `db:"org_id"`
	Status           string     `db:"status"`
	PlanID           string     `db:"plan_id"`
	CurrentPeriodEnd *time.Time `db:"current_period_end"`
}

// Active reports whether the subscription grants included minutes.
func (s *Subscription) Active() bool {
	if s == nil {
		return false
	}
	return s.Status == SubscriptionStatusActive || s.Status == SubscriptionStatusTrialing
}

// UsageRecord is an append-only billing fact, at most one per job.
type UsageRecord struct {
	ID                 uuid.UUID `db:"id"`
	OrgID              string    `db:"org_id"`
	JobID              string    `db:"job_id"`
	Minutes            float64   `db:"minutes"`
	AmountCents        int64     `db:"amount_cents"`
	CoveredIncluded    float64   `db:"covered_included"`
	CreditsUsed        float64   `db:"credits_used"`
	RemainingOverLimit float64   `db:"remaining_over_limit"`
	CreatedAt          time.Time `db:"created_at"`
}

// Allocation returns the allocation the record was written from.
func (r *UsageRecord) Allocation() UsageAllocation {
	return UsageAllocation{
		Minutes:            r.Minutes,
		AmountCents:        r.AmountCents,
		CoveredIncluded:    r.CoveredIncluded,
		CreditsUsed:        r.CreditsUsed,
		RemainingOverLimit: r.RemainingOverLimit,
	}
}

// BillingFacts is what the ledger reads before deciding.
type BillingFacts struct {
	Subscription   *Subscription
	UsageThisMonth float64
	Credits        float64
	OverLimit      bool
}

// Entitlement is the answer to "may this org start a job".
type Entitlement struct {
	Allowed            bool    `json:"allowed"`
	SubscriptionActive bool    `json:"subscriptionActive"`
	UsageThisMonth     float64 `json:"usageThisMonth"`
	Credits            float64 `json:"credits"`
}

// UsageAllocation is how consumed minutes were billed.
type UsageAllocation struct {
	Minutes            float64 `json:"minutes"`
	AmountCents        int64   `json:"amountCents"`
	CoveredIncluded    float64 `json:"coveredIncluded"`
	CreditsUsed        float64 `json:"creditsUsed"`
	RemainingOverLimit float64 `json:"remainingOverLimit"`
}
