package models

import (
	"time"

	"github.com/nexuscrm/salescrm/internal/domain/pipeline"
)

// Deal is a row of deals with its contact and company summaries.
type Deal struct {
	ID                string          `json:"id"`
	UserID            string          `json:"user_id"`
	ContactID         *string         `json:"contact_id"`
	CompanyID         *string         `json:"company_id"`
	Title             string          `json:"title"`
	Value             float64         `json:"value"`
	Currency          string          `json:"currency"`
	Stage             pipeline.Stage  `json:"stage"`
	Probability       int             `json:"probability"`
	ExpectedCloseDate *time.Time      `json:"expected_close_date"`
	ClosedAt          *time.Time      `json:"closed_at"`
	Description       *string         `json:"description"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Contact           *ContactSummary `json:"contact,omitempty"`
	Company           *CompanySummary `json:"company,omitempty"`
}

func (d Deal) PipelineStage() pipeline.Stage { return d.Stage }
func (d Deal) Amount() float64               { return d.Value }
func (d Deal) WinProbability() int           { return d.Probability }

// PipelineState extracts the fields a stage transition rewrites.
func (d *Deal) PipelineState() pipeline.State {
	return pipeline.State{Stage: d.Stage, Probability: d.Probability, ClosedAt: d.ClosedAt}
}

// DealSummary is the nested deal shape on activities.
type DealSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// DealInput is used for both create and partial update. Stage changes made
// through update go through the same transition rules as MoveStage.
type DealInput struct {
	ContactID         *string  `json:"contact_id" yaml:"contact_id"`
	CompanyID         *string  `json:"company_id" yaml:"company_id"`
	Title             *string  `json:"title" yaml:"title" binding:"omitempty,max=200"`
	Value             *float64 `json:"value" yaml:"value"`
	Currency          *string  `json:"currency" yaml:"currency"`
	Stage             *string  `json:"stage" yaml:"stage"`
	Probability       *int     `json:"probability" yaml:"probability"`
	ExpectedCloseDate *string  `json:"expected_close_date" yaml:"expected_close_date"`
	Description       *string  `json:"description" yaml:"description"`
}

// MoveStageInput is the POST /deals/:id/stage body.
type MoveStageInput struct {
	Stage string `json:"stage" binding:"required"`
	Note  string `json:"note"`
}

// StageChange is returned by MoveStage.
type StageChange struct {
	Deal     *Deal          `json:"deal"`
	From     pipeline.Stage `json:"from"`
	To       pipeline.Stage `json:"to"`
	Changed  bool           `json:"changed"`
	Activity *Activity      `json:"activity,omitempty"`
}

// PipelineBoard is the GET /pipeline response.
type PipelineBoard struct {
	Columns       []pipeline.Column[*Deal] `json:"columns"`
	TotalValue    float64                  `json:"total_value"`
	WeightedValue float64                  `json:"weighted_value"`
	WinRate       float64                  `json:"win_rate"`
}
