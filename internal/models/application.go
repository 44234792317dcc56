package models

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/gigmarket-backend/internal/domain/valueobject"
)

// Attachment описывает загруженный файл отклика.
type Attachment struct {
	FileName string `json:"fileName"`
	FilePath string `json:"filePath"`
	FileType string `json:"fileType"`
	FileSize int64  `json:"fileSize"`
}

// Attachments хранится в JSONB колонке.
type Attachments []Attachment

func (a *Attachments) Scan(src any) error {
	*a = Attachments{}
	return scanJSON(src, a)
}

func (a Attachments) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return valueJSON(a)
}

// InterviewDetails заполняется при переводе отклика в Interview Scheduled.
type InterviewDetails struct {
	ScheduledDate string `json:"scheduledDate"`
	ScheduledTime string `json:"scheduledTime"`
	Location      string `json:"location"`
	IsOnline      bool   `json:"isOnline"`
	MeetingLink   string `json:"meetingLink,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

func (d *InterviewDetails) Scan(src any) error { return scanJSON(src, d) }

func (d InterviewDetails) Value() (driver.Value, error) { return valueJSON(d) }

// JobApplication описывает отклик кандидата на вакансию.
type JobApplication struct {
	ID                uuid.UUID                     `db:"id" json:"id"`
	PostID            uuid.UUID                     `db:"post_id" json:"postId"`
	ApplicantID       uuid.UUID                     `db:"applicant_id" json:"applicantId"`
	ClientID          uuid.UUID                     `db:"client_id" json:"clientId"`
	FullName          string                        `db:"full_name" json:"fullName"`
	Email             string                        `db:"email" json:"email"`
	PhoneNumber       *string                       `db:"phone_number" json:"phoneNumber,omitempty"`
	ProfessionalTitle string                        `db:"professional_title" json:"professionalTitle"`
	CoverLetter       string                        `db:"cover_letter" json:"coverLetter"`
	PortfolioLink     *string                       `db:"portfolio_link" json:"portfolioLink,omitempty"`
	Attachments       Attachments                   `db:"attachments" json:"attachments"`
	Status            valueobject.ApplicationStatus `db:"status" json:"status"`
	InterviewDetails  *InterviewDetails             `db:"interview_details" json:"interviewDetails,omitempty"`
	ClientFeedback    *string                       `db:"client_feedback" json:"clientFeedback,omitempty"`
	WithdrawnAt       *time.Time                    `db:"withdrawn_at" json:"withdrawnAt,omitempty"`
	CreatedAt         time.Time                     `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time                     `db:"updated_at" json:"updatedAt"`
	StatusHistory     []StatusHistoryEntry          `db:"-" json:"statusHistory,omitempty"`
}

// CanView сообщает, может ли пользователь видеть отклик.
func (a *JobApplication) CanView(userID uuid.UUID) bool {
	return a.ApplicantID == userID || a.ClientID == userID
}

// StatusHistoryEntry - запись в журнале смены статусов отклика.
type StatusHistoryEntry struct {
	ID            uuid.UUID                     `db:"id" json:"id"`
	ApplicationID uuid.UUID                     `db:"application_id" json:"applicationId"`
	Status        valueobject.ApplicationStatus `db:"status" json:"status"`
	ChangedAt     time.Time                     `db:"changed_at" json:"changedAt"`
	ChangedBy     *uuid.UUID                    `db:"changed_by" json:"changedBy,omitempty"`
	Reason        *string                       `db:"reason" json:"reason,omitempty"`
	Feedback      *string                       `db:"feedback" json:"feedback,omitempty"`
}

// StatusChange - данные для атомарной смены статуса отклика.
type StatusChange struct {
	From             valueobject.ApplicationStatus
	Entry            StatusHistoryEntry
	InterviewDetails *InterviewDetails
	Feedback         *string
}
