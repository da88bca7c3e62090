package models

import "time"

type User struct {
	ID           string
	TGID         int64
	Balance      float64
	ReferralCode *string
	ReferredBy   *int64
	Banned       bool
	Email        *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Admin struct {
	ID        string
	TGID      int64
	CreatedAt time.Time
}

// TemplateExample is one entry of the structured examples attached to a template.
type TemplateExample struct {
	Title    string `json:"title,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// Template is immutable reference data shown in the generation catalog.
type Template struct {
	ID              string
	Title           string
	Description     string
	Badge           *string
	IsNew           bool
	IsPopular       bool
	DefaultPrompt   *string
	PreviewImageURL *string
	Examples        []TemplateExample
	CreatedAt       time.Time
}

type Generation struct {
	ID           string
	TGID         int64
	TemplateID   *string
	Mode         string
	Model        string
	AspectRatio  *string
	Resolution   *string
	OutputFormat *string
	Prompt       string
	Status       GenerationStatus
	KieTaskID    *string
	ResultURL    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Payment struct {
	ID                string
	TGID              int64
	YooKassaPaymentID *string
	Amount            float64
	Tokens            float64
	Status            PaymentStatus
	PlanCode          *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
