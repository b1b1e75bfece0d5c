package models

import "time"

// Severity levels as stored on reports and produced by the classifier.
const (
	SeverityLow    = "Low"
	SeverityMedium = "Medium"
	SeverityHigh   = "High"
)

// Report statuses.
const (
	StatusPending   = "pending"
	StatusSolved    = "solved"
	StatusRejected  = "rejected"
	StatusForwarded = "forwarded"
)

// History actions.
const (
	ActionCreated     = "created"
	ActionApproved    = "approved"
	ActionRejected    = "rejected"
	ActionForwarded   = "forwarded"
	ActionTransferred = "transferred"
	ActionPending     = "pending"
)

// Actor roles carried in the JWT role claim.
const (
	RoleUser      = "user"
	RoleAdmin     = "admin"
	RoleAdminHead = "adminHead"
)

// Authority levels for administrative actors.
const (
	LevelLow    = "Low"
	LevelMedium = "Medium"
	LevelHigh   = "High"
)

// Report is the central entity: a geo-tagged civic issue submitted by a citizen.
type Report struct {
	Seq          int64  `json:"seq"`
	Title        string `json:"title"`
	Category     string `json:"category"`
	Description  string `json:"description"`
	Severity     string `json:"severity"`
	AIVerified   bool   `json:"ai_verified"`
	ReporterID   string `json:"reporter_id"`
	ReporterName string `json:"reporter_name"`

	Longitude    float64 `json:"longitude"`
	Latitude     float64 `json:"latitude"`
	WardNumber   int     `json:"ward_number"`
	Municipality string  `json:"municipality"`
	Building     string  `json:"building,omitempty"`
	Street       string  `json:"street,omitempty"`
	Locality     string  `json:"locality,omitempty"`
	PropertyType string  `json:"property_type,omitempty"`

	MediaURL  string `json:"media_url"`
	MediaType string `json:"media_type"`

	Status          string  `json:"status"`
	AssignedTo      string  `json:"assigned_to"`
	AssignedRole    string  `json:"assigned_role"`
	Escalated       bool    `json:"escalated"`
	RejectionReason *string `json:"rejection_reason,omitempty"`

	History []HistoryEntry `json:"history,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HistoryEntry is one append-only audit record on a report.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	ReportSeq int64     `json:"report_seq"`
	Action    string    `json:"action"`
	ActorID   string    `json:"actor_id"`
	ActorName string    `json:"actor_name"`
	ActorRole string    `json:"actor_role"`
	Notes     string    `json:"notes,omitempty"`
	Recipient string    `json:"recipient,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Ward is static geographic reference data: a polygon with an owning municipality.
type Ward struct {
	Number       int     `json:"number"`
	Municipality string  `json:"municipality"`
	CentroidLat  float64 `json:"centroid_lat"`
	CentroidLng  float64 `json:"centroid_lng"`
}

// Municipality holds the per-municipality staff id counter.
type Municipality struct {
	Name           string `json:"name"`
	WardFileID     string `json:"ward_file_id"`
	MunicipalID    int    `json:"municipal_id"`
	LastAssignedID int    `json:"last_assigned_id"`
}

// Authority is an administrative actor (admin or administrative head).
type Authority struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	Level        string    `json:"level"`
	Municipality string    `json:"municipality"`
	CreatedAt    time.Time `json:"created_at"`
}

// Citizen is a registered reporter.
type Citizen struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Actor is the authenticated party acting on a report, resolved from the token
// by the profile resolver for its kind.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// CreateReportRequest is the citizen submission payload.
type CreateReportRequest struct {
	Title        string    `json:"title" binding:"required"`
	Category     string    `json:"category"`
	Description  string    `json:"description" binding:"required"`
	Severity     string    `json:"severity" binding:"required"`
	Coordinates  []float64 `json:"coordinates" binding:"required"` // [lng, lat]
	MediaURL     string    `json:"media_url"`
	MediaType    string    `json:"media_type"`
	Building     string    `json:"building"`
	Street       string    `json:"street"`
	Locality     string    `json:"locality"`
	PropertyType string    `json:"property_type"`
}

// UpdateStatusRequest updates a report's workflow status.
type UpdateStatusRequest struct {
	Status          string `json:"status" binding:"required"`
	RejectionReason string `json:"rejection_reason"`
	Notes           string `json:"notes"`
}

// ForwardRequest reassigns a report or records an external transfer target.
// The assignee's stored level determines the new assigned role.
type ForwardRequest struct {
	AssignTo     string `json:"assign_to"`
	Municipality string `json:"municipality"`
	Notes        string `json:"notes"`
}

// ResubmitRequest carries the edited content of a rejected report.
type ResubmitRequest struct {
	Title       string `json:"title" binding:"required"`
	Category    string `json:"category"`
	Description string `json:"description" binding:"required"`
	Severity    string `json:"severity" binding:"required"`
	MediaURL    string `json:"media_url"`
	MediaType   string `json:"media_type"`
}

// RegisterRequest registers a citizen account.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterAuthorityRequest provisions an administrative actor.
type RegisterAuthorityRequest struct {
	Name         string `json:"name" binding:"required"`
	Email        string `json:"email" binding:"required"`
	Password     string `json:"password" binding:"required"`
	Role         string `json:"role" binding:"required"`
	Level        string `json:"level" binding:"required"`
	Municipality string `json:"municipality" binding:"required"`
}

// LoginRequest authenticates a citizen or authority.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

// VerifyOTPRequest confirms a registration verification code.
type VerifyOTPRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// RefreshTokenRequest exchanges a refresh token for a new pair.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// TokenResponse is returned on successful login or refresh.
type TokenResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is the uniform success payload for void operations.
type MessageResponse struct {
	Message string `json:"message"`
}

// SeverityCheck is the classifier verdict attached to creation responses.
type SeverityCheck struct {
	Severity        string   `json:"severity"`
	Confidence      float64  `json:"confidence"`
	MatchedKeywords []string `json:"matched_keywords,omitempty"`
	AIVerified      bool     `json:"ai_verified"`
	Warning         string   `json:"warning,omitempty"`
}

// BroadcastMessage wraps a live-feed payload sent over the websocket hub.
type BroadcastMessage struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}
