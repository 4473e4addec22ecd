package models

import (
	"time"
)

// Project groups tag data and revision containers; it is also the unit of
// role scoping for users.
type Project struct {
	ID          int64     `json:"id" db:"id"`
	ExternalKey string    `json:"external_key" db:"external_key"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// TagData is an engineering record for a single instrument/equipment tag.
// Rows originate in FAM and are ingested here; apart from container linkage
// and the version counter bumped on re-ingestion they are not edited.
type TagData struct {
	ID                  int64      `json:"id" db:"id"`
	ProjectID           int64      `json:"project_id" db:"project_id"`
	TagNumber           string     `json:"tag_number" db:"tag_number"`
	Description         *string    `json:"description,omitempty" db:"description"`
	Category            *string    `json:"category,omitempty" db:"category"`
	Area                *string    `json:"area,omitempty" db:"area"`
	Discipline          *string    `json:"discipline,omitempty" db:"discipline"`
	Version             int        `json:"version" db:"version"`
	RevisionContainerID *int64     `json:"revision_container_id,omitempty" db:"revision_container_id"`
	FamGUID             *string    `json:"fam_guid,omitempty" db:"fam_guid"`
	LastSyncedAt        *time.Time `json:"last_synced_at,omitempty" db:"last_synced_at"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at" db:"updated_at"`
}

// RevisionContainer groups tag data snapshots under a single revision.
type RevisionContainer struct {
	ID           int64     `json:"id" db:"id"`
	ProjectID    int64     `json:"project_id" db:"project_id"`
	Name         string    `json:"name" db:"name"`
	RevisionCode string    `json:"revision_code" db:"revision_code"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// RevisionContainerReview is an approval record attached to a revision
// container. Duplicate reviews per container are allowed; creation only
// checks that the container exists.
type RevisionContainerReview struct {
	ID                  int64     `json:"id" db:"id"`
	RevisionContainerID int64     `json:"revision_container_id" db:"revision_container_id"`
	ApproverID          int64     `json:"approver_id" db:"approver_id"`
	Status              string    `json:"status" db:"status"`
	Comment             *string   `json:"comment,omitempty" db:"comment"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}

// Review status values
const (
	ReviewStatusPending  = "pending"
	ReviewStatusApproved = "approved"
	ReviewStatusRejected = "rejected"
)

// Conversation is a discussion thread attached to a review, optionally
// scoped to a named property of one of the recognized tag schemas.
type Conversation struct {
	ID        int64     `json:"id" db:"id"`
	ReviewID  int64     `json:"review_id" db:"review_id"`
	Property  *string   `json:"property,omitempty" db:"property"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Participant attaches a user to a conversation. Participants have no life
// of their own; they are created and removed with the conversation.
type Participant struct {
	ConversationID int64     `json:"conversation_id" db:"conversation_id"`
	UserID         int64     `json:"user_id" db:"user_id"`
	AddedAt        time.Time `json:"added_at" db:"added_at"`
}

// Message is a single entry in a conversation. Deletion is a soft-delete:
// the row stays, IsDeleted flips, and latest-message selection skips it
// unless every message in the conversation is deleted.
type Message struct {
	ID             int64     `json:"id" db:"id"`
	ConversationID int64     `json:"conversation_id" db:"conversation_id"`
	AuthorID       int64     `json:"author_id" db:"author_id"`
	Content        string    `json:"content" db:"content"`
	IsDeleted      bool      `json:"is_deleted" db:"is_deleted"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// ImportRun records one execution of FAM ingestion, whether from an
// uploaded sheet or a background API pull.
type ImportRun struct {
	ID         string     `json:"id" db:"id"`
	ProjectID  int64      `json:"project_id" db:"project_id"`
	Source     string     `json:"source" db:"source"`
	Status     string     `json:"status" db:"status"`
	RowsTotal  int        `json:"rows_total" db:"rows_total"`
	RowsFailed int        `json:"rows_failed" db:"rows_failed"`
	Detail     *string    `json:"detail,omitempty" db:"detail"`
	StartedAt  time.Time  `json:"started_at" db:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" db:"finished_at"`
}

// Import run status values
const (
	ImportRunStatusRunning   = "running"
	ImportRunStatusSucceeded = "succeeded"
	ImportRunStatusFailed    = "failed"
)

// User represents a user who can hold roles on multiple projects.
type User struct {
	ID              int64      `json:"id" db:"id"`
	Email           string     `json:"email" db:"email"`
	PasswordHash    string     `json:"-" db:"password_hash"` // Never expose password hash in JSON
	FirstName       *string    `json:"first_name,omitempty" db:"first_name"`
	LastName        *string    `json:"last_name,omitempty" db:"last_name"`
	IsActive        bool       `json:"is_active" db:"is_active"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
	CreatedByUserID *int64     `json:"created_by_user_id,omitempty" db:"created_by_user_id"`
}

// DisplayName is the name shown next to messages and participants: first
// and last name when present, otherwise the email.
func (u *User) DisplayName() string {
	first, last := "", ""
	if u.FirstName != nil {
		first = *u.FirstName
	}
	if u.LastName != nil {
		last = *u.LastName
	}
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	case last != "":
		return last
	default:
		return u.Email
	}
}

// Role represents a role definition (admin, lead, engineer)
type Role struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UserRole represents the junction table: users ↔ roles within projects
type UserRole struct {
	UserID    int64     `json:"user_id" db:"user_id"`
	RoleID    int64     `json:"role_id" db:"role_id"`
	ProjectID int64     `json:"project_id" db:"project_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Role constants
const (
	RoleAdmin    = "admin"
	RoleLead     = "lead"
	RoleEngineer = "engineer"
)
