package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ContactStatus tracks a contact message through support handling.
type ContactStatus string

const (
	ContactStatusNew        ContactStatus = "new"
	ContactStatusInProgress ContactStatus = "in_progress"
	ContactStatusResolved   ContactStatus = "resolved"
	ContactStatusClosed     ContactStatus = "closed"
)

// ContactSubjects lists accepted subjects.
var ContactSubjects = []string{
	"general", "support", "partnership", "complaint", "suggestion",
	"billing", "delivery", "restaurant", "other",
}

// ContactMethods lists accepted preferred contact methods.
var ContactMethods = []string{"email", "phone", "whatsapp"}

// Priorities lists accepted contact priorities, lowest first.
var Priorities = []string{"low", "medium", "high", "urgent"}

// ContactMessage is a contact form submission.
type ContactMessage struct {
	ID                     string        `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name                   string        `gorm:"type:varchar(100);not null" json:"name"`
	Email                  string        `gorm:"type:varchar(254);not null;index" json:"email"`
	Phone                  string        `gorm:"type:varchar(20)" json:"phone,omitempty"`
	Company                string        `gorm:"type:varchar(200)" json:"company,omitempty"`
	Website                string        `gorm:"type:varchar(200)" json:"website,omitempty"`
	Subject                string        `gorm:"type:varchar(20);not null;default:'general';index:idx_contact_subject_priority" json:"subject"`
	Message                string        `gorm:"type:text;not null" json:"message"`
	PreferredContactMethod string        `gorm:"type:varchar(20);not null;default:'email'" json:"preferred_contact_method"`
	Status                 ContactStatus `gorm:"type:varchar(20);not null;default:'new';index:idx_contact_status_created" json:"status"`
	Priority               string        `gorm:"type:varchar(10);not null;default:'medium';index:idx_contact_subject_priority" json:"priority"`
	AssignedToID           *uint         `json:"assigned_to_id,omitempty"`

	UTMSource   string `gorm:"type:varchar(100)" json:"utm_source,omitempty"`
	UTMMedium   string `gorm:"type:varchar(100)" json:"utm_medium,omitempty"`
	UTMCampaign string `gorm:"type:varchar(100)" json:"utm_campaign,omitempty"`
	UserAgent   string `json:"-"`
	IPAddress   string `gorm:"type:varchar(45)" json:"-"`

	CreatedAt  time.Time  `gorm:"index:idx_contact_status_created" json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`

	Responses []ContactResponse `gorm:"foreignKey:ContactMessageID;constraint:OnDelete:CASCADE" json:"responses,omitempty"`
}

// BeforeCreate assigns the identifier and defaults.
func (m *ContactMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Status == "" {
		m.Status = ContactStatusNew
	}
	return nil
}

// ContactResponse is a reviewer reply attached to a contact message.
type ContactResponse struct {
	ID               string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ContactMessageID string    `gorm:"type:varchar(36);not null;index" json:"contact_message_id"`
	ResponderID      uint      `gorm:"not null" json:"responder_id"`
	ResponseText     string    `gorm:"type:text;not null" json:"response_text"`
	IsPublic         bool      `gorm:"default:false" json:"is_public"`
	CreatedAt        time.Time `json:"created_at"`
}

// BeforeCreate assigns the identifier.
func (r *ContactResponse) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
