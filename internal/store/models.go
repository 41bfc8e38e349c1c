package store

import "time"

// Watchlist and task status values. A watch item leaves the open/extended
// pair exactly once; the terminal statuses are never revisited.
const (
	StatusOpen              = "open"
	StatusExtended          = "extended"
	StatusCompleted         = "completed"
	StatusNeedsReview       = "needs_review"
	StatusNeedsIntervention = "needs_intervention"
)

// Run log statuses.
const (
	RunInProgress = "in_progress"
	RunCompleted  = "completed"
	RunFailed     = "failed"
)

// DowntimeEvent is one resolved machine-down incident, attributed to the
// mechanic who handled it.
type DowntimeEvent struct {
	ID              int64
	MechanicName    string
	EmployeeNumber  string
	MachineID       string
	MachineType     string
	Reason          string
	RepairTimeMin   float64
	ResponseTimeMin float64
	ResolvedAt      time.Time
}

// Finding is one statistically flagged performance observation.
type Finding struct {
	ID           int64
	AnalysisType string
	EntityID     string
	Dimension1   string
	Dimension2   string
	Metric       string
	Value        float64
	MeanValue    float64
	ZScore       float64
	PctDiff      float64
	Threshold    float64
	SampleCount  int64
	Summary      string
	CreatedAt    time.Time
}

// WatchItem is one monitored entity/issue pair on the watch list.
type WatchItem struct {
	ID               int64
	EntityType       string
	EntityID         string
	EntityName       string
	IssueType        string
	MachineType      string
	Reason           string
	MonitorFrequency string
	MonitorStart     time.Time
	MonitorEnd       time.Time
	Status           string
	ExtensionCount   int64
	FindingID        *int64
	Notes            string
	CreatedAt        time.Time
	UpdatedAt        *time.Time
}

// Measurement is one dated observation for a watch item.
type Measurement struct {
	ID      int64
	WatchID int64
	Date    time.Time
	Value   float64
}

// TaskSummary is the persisted outcome of one watchlist evaluation.
type TaskSummary struct {
	ID                     int64
	WatchID                int64
	SummaryDate            time.Time
	IsFinal                bool
	BaselineValue          float64
	LatestValue            float64
	RawChangePct           float64
	ImprovementPct         float64
	MovingAverage          float64
	MovingAverageChangePct float64
	TrendSlope             float64
	TrendRSquared          float64
	TrendPValue            float64
	TrendIsSignificant     bool
	SplitPValue            float64
	SplitIsSignificant     bool
	Decision               string
	Confidence             string
	Explanation            string
	InsufficientData       bool
	MeasurementCount       int64
	CreatedAt              time.Time
}

// ToolRunLog is one bracketed batch-tool execution.
type ToolRunLog struct {
	ID             string
	ToolName       string
	RunDate        time.Time
	PeriodStart    *time.Time
	PeriodEnd      *time.Time
	Status         string
	ItemsProcessed int64
	ItemsCreated   int64
	Summary        string
	Metadata       string
	CreatedAt      time.Time
	UpdatedAt      *time.Time
}

// Machine is the persisted output of the external risk-clustering step.
type Machine struct {
	MachineID        string
	MachineType      string
	PurchaseDate     *time.Time
	FailureCount     int64
	TotalDowntimeMin float64
	Cluster          int64
	RiskScore        float64
	ClusteredAt      *time.Time
}

// MaintenanceTask is one scheduled preventive-maintenance job.
type MaintenanceTask struct {
	ID           int64
	MachineID    string
	MachineType  string
	IssueType    string
	Description  string
	Assignee     string
	MechanicName string
	Priority     string
	Status       string
	DueBy        time.Time
	CreatedAt    time.Time
	CompletedAt  *time.Time
	UpdatedAt    *time.Time
}

// Mechanic is one member of the maintenance crew.
type Mechanic struct {
	EmployeeNumber string
	Name           string
	Surname        string
}

// NotificationLog is one recorded outbound notification.
type NotificationLog struct {
	ID        int64
	Recipient string
	Subject   string
	Message   string
	Status    string
	SentAt    time.Time
}
