package model

import (
	"encoding/json"
	"time"
)

type Platform string

const (
	PlatformChatGPT Platform = "CHATGPT"
	PlatformClaude  Platform = "CLAUDE"
)

// TailorSession snapshots one completed tailor request. Append-only:
// rows are never updated after creation.
type TailorSession struct {
	ID               string          `json:"id"`
	UserID           string          `json:"userId"`
	ProjectID        string          `json:"projectId"`
	TaskInput        string          `json:"taskInput"`
	AssembledContext string          `json:"assembledContext"`
	TargetPlatform   Platform        `json:"targetPlatform"`
	TokenCount       int             `json:"tokenCount"`
	QualityScore     float64         `json:"qualityScore"`
	Sections         []string        `json:"sections"`
	Metadata         json.RawMessage `json:"metadata,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
}
