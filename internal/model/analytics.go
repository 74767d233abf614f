package model

// DateLayout is the calendar date format used by rollup rows.
const DateLayout = "2006-01-02"

// ContactAnalytics is the daily rollup of contact messages.
type ContactAnalytics struct {
	ID                   uint    `gorm:"primaryKey" json:"-"`
	Date                 string  `gorm:"type:varchar(10);uniqueIndex;not null" json:"date"`
	TotalMessages        int64   `json:"total_messages"`
	NewMessages          int64   `json:"new_messages"`
	ResolvedMessages     int64   `json:"resolved_messages"`
	AvgResponseTimeHours float64 `json:"avg_response_time_hours"`
}

// PartnerAnalytics is the daily rollup of partner applications.
type PartnerAnalytics struct {
	ID                     uint   `gorm:"primaryKey" json:"-"`
	Date                   string `gorm:"type:varchar(10);uniqueIndex;not null" json:"date"`
	TotalApplications      int64  `json:"total_applications"`
	PendingApplications    int64  `json:"pending_applications"`
	ApprovedApplications   int64  `json:"approved_applications"`
	RejectedApplications   int64  `json:"rejected_applications"`
	RestaurantApplications int64  `json:"restaurant_applications"`
	DeliveryApplications   int64  `json:"delivery_applications"`
	InvestorApplications   int64  `json:"investor_applications"`
}
