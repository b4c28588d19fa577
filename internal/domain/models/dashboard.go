package models

import (
	"time"

	"github.com/nexuscrm/salescrm/internal/domain/pipeline"
)

// MonthlyRevenue is the won value closed in one calendar month.
type MonthlyRevenue struct {
	Month string  `json:"month"` // YYYY-MM
	Value float64 `json:"value"`
}

// DashboardSummary is the GET /dashboard/summary response.
type DashboardSummary struct {
	OpenPipelineValue float64                `json:"open_pipeline_value"`
	WeightedValue     float64                `json:"weighted_value"`
	WonValue          float64                `json:"won_value"`
	WinRate           float64                `json:"win_rate"`
	AverageDealSize   float64                `json:"average_deal_size"`
	OpenDeals         int                    `json:"open_deals"`
	DealsByStage      map[pipeline.Stage]int `json:"deals_by_stage"`
	ActivityByType    map[ActivityType]int   `json:"activity_by_type"`
	OverdueTasks      int                    `json:"overdue_tasks"`
	DueTodayTasks     int                    `json:"due_today_tasks"`
	MonthlyRevenue    []MonthlyRevenue       `json:"monthly_revenue"`
	RecentActivities  []*Activity            `json:"recent_activities"`
	GeneratedAt       time.Time              `json:"generated_at"`
}
