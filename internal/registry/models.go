package registry

import "time"

// Number range issued by the registry
const (
	MinNumber = 3000
	MaxNumber = 9999
	Capacity  = MaxNumber - MinNumber + 1
)

// MaxTextLength is the longest name or description a spreadsheet cell can hold, in characters
const MaxTextLength = 32767

// TimestampLayout is how registration times are written to tabular files
const TimestampLayout = "2006-01-02 15:04:05"

// Header is the column layout shared by the records file and exports
var Header = []string{"Application_Name", "Description", "SFT_Number", "Registration_Date"}

// Registration represents an issued SFT number
type Registration struct {
	ApplicationName string    `json:"application_name"`
	Description     string    `json:"description"`
	Number          int       `json:"number"`
	RegisteredAt    time.Time `json:"registered_at"`
}

// Application is a registration request
type Application struct {
	Name        string `json:"application_name"`
	Description string `json:"description"`
}

// BulkResult is the outcome of one entry of a bulk registration
type BulkResult struct {
	ApplicationName string `json:"application_name"`
	Number          int    `json:"number,omitempty"`
	Success         bool   `json:"success"`
	Error           string `json:"error,omitempty"`
}

// Statistics is a read-only view of pool usage
type Statistics struct {
	TotalCapacity   int     `json:"total_capacity"`
	UsedCount       int     `json:"used_count"`
	RemainingCount  int     `json:"remaining_count"`
	UsagePercentage float64 `json:"usage_percentage"`

	// Zero when nothing has been issued yet
	LowestUsed  int     `json:"lowest_used,omitempty"`
	HighestUsed int     `json:"highest_used,omitempty"`
	AverageUsed float64 `json:"average_used,omitempty"`
}

// TimelineEntry counts registrations made on one UTC day
type TimelineEntry struct {
	Date          string `json:"date"`
	Registrations int    `json:"registrations"`
}

// InRange reports whether n can ever be issued
func InRange(n int) bool {
	return n >= MinNumber && n <= MaxNumber
}
