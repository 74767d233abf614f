package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApplicationStatus is the lifecycle state of a partner application.
type ApplicationStatus string

const (
	ApplicationStatusPending                ApplicationStatus = "pending"
	ApplicationStatusUnderReview            ApplicationStatus = "under_review"
	ApplicationStatusApproved               ApplicationStatus = "approved"
	ApplicationStatusRejected               ApplicationStatus = "rejected"
	ApplicationStatusOnHold                 ApplicationStatus = "on_hold"
	ApplicationStatusAdditionalInfoRequired ApplicationStatus = "additional_info_required"
)

// Terminal reports whether no transition may leave s.
func (s ApplicationStatus) Terminal() bool {
	return s == ApplicationStatusApproved || s == ApplicationStatusRejected
}

// PartnerType is the kind of partner applying.
type PartnerType string

const (
	PartnerTypeRestaurant    PartnerType = "restaurant"
	PartnerTypeDeliveryAgent PartnerType = "delivery-agent"
	PartnerTypeInvestor      PartnerType = "investor"
	PartnerTypeOther         PartnerType = "other"
)

// PartnerTypes lists the accepted partner types in display order.
var PartnerTypes = []PartnerType{
	PartnerTypeRestaurant,
	PartnerTypeDeliveryAgent,
	PartnerTypeInvestor,
	PartnerTypeOther,
}

// Choice lists for the optional business fields.
var (
	LegalStatuses   = []string{"individual", "sarl", "sa", "sas", "association", "cooperative"}
	VehicleTypes    = []string{"motorcycle", "bicycle", "car", "scooter", "on_foot"}
	InvestmentTypes = []string{"equity", "loan", "franchise", "joint_venture", "sponsorship"}
	ServiceTypes    = []string{"marketing", "technology", "logistics", "payment", "consulting", "other"}
	DocumentTypes   = []string{"id_document", "health_certificate", "menu", "driving_license", "vehicle_registration", "business_plan", "financial_statements", "photo", "other"}
)

// PartnerApplication is a restaurant, delivery agent, investor or service
// provider application. Status only changes through the lifecycle package.
type PartnerApplication struct {
	ID          string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	PartnerType PartnerType       `gorm:"type:varchar(20);not null;index:idx_app_type_status" json:"partner_type"`
	Status      ApplicationStatus `gorm:"type:varchar(30);not null;default:'pending';index:idx_app_type_status;index:idx_app_status_created" json:"status"`

	ContactName string `gorm:"type:varchar(100);not null" json:"contact_name"`
	Email       string `gorm:"type:varchar(254);not null;index" json:"email"`
	Phone       string `gorm:"type:varchar(20);not null" json:"phone"`

	BusinessName string `gorm:"type:varchar(200)" json:"business_name,omitempty"`
	CuisineType  string `gorm:"type:varchar(100)" json:"cuisine_type,omitempty"`
	Capacity     *int   `json:"capacity,omitempty"`
	OpeningHours string `gorm:"type:varchar(200)" json:"opening_hours,omitempty"`

	Address   string   `json:"address,omitempty"`
	City      string   `gorm:"type:varchar(100)" json:"city,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	LegalStatus string `gorm:"type:varchar(20)" json:"legal_status,omitempty"`
	TaxID       string `gorm:"type:varchar(50)" json:"tax_id,omitempty"`

	VehicleType    string `gorm:"type:varchar(20)" json:"vehicle_type,omitempty"`
	DrivingLicense string `gorm:"type:varchar(50)" json:"driving_license,omitempty"`

	InvestmentAmount   *float64 `json:"investment_amount,omitempty"`
	InvestmentType     string   `gorm:"type:varchar(20)" json:"investment_type,omitempty"`
	BusinessExperience *int     `json:"business_experience,omitempty"`

	ServiceType string `gorm:"type:varchar(20)" json:"service_type,omitempty"`

	ReviewerID      *uint     `json:"reviewer_id,omitempty"`
	Reviewer        *Reviewer `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	ReviewNotes     string    `json:"review_notes,omitempty"`
	RejectionReason string    `json:"rejection_reason,omitempty"`

	CreatedAt  time.Time  `gorm:"index:idx_app_status_created" json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	RejectedAt *time.Time `json:"rejected_at,omitempty"`

	Documents []PartnerDocument `gorm:"foreignKey:ApplicationID;constraint:OnDelete:CASCADE" json:"documents,omitempty"`
}

// BeforeCreate assigns the opaque identifier.
func (a *PartnerApplication) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = ApplicationStatusPending
	}
	return nil
}

// PartnerDocument is metadata for a file uploaded with an application.
// Storage of the file itself is handled elsewhere.
type PartnerDocument struct {
	ID               string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ApplicationID    string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_doc_app_type" json:"application_id"`
	DocumentType     string    `gorm:"type:varchar(30);not null;uniqueIndex:idx_doc_app_type" json:"document_type"`
	StoragePath      string    `gorm:"type:varchar(255);not null" json:"-"`
	OriginalFilename string    `gorm:"type:varchar(255);not null" json:"original_filename"`
	FileSize         int64     `json:"file_size"`
	MimeType         string    `gorm:"type:varchar(100)" json:"mime_type"`
	UploadedAt       time.Time `gorm:"autoCreateTime" json:"uploaded_at"`
}

// BeforeCreate assigns the document identifier.
func (d *PartnerDocument) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}
