package models

import (
	"time"

	"github.com/google/uuid"
)

// SceneStatus represents the lifecycle state of a scene
type SceneStatus string

const (
	SceneStatusActive   SceneStatus = "active"
	SceneStatusArchived SceneStatus = "archived"
)

// Scene is a user-owned audio scene record. The table is keyed by
// (userId, sceneId), so every read and write is scoped to an owner.
type Scene struct {
	UserID    string      `json:"userId" dynamodbav:"userId"`
	SceneID   string      `json:"sceneId" dynamodbav:"sceneId"`
	SceneName string      `json:"sceneName" dynamodbav:"sceneName"`
	Content   string      `json:"content" dynamodbav:"content"`
	AudioURL  string      `json:"audioUrl,omitempty" dynamodbav:"audioUrl,omitempty"`
	Status    SceneStatus `json:"status" dynamodbav:"status"`
	CreatedAt time.Time   `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt" dynamodbav:"updatedAt"`
}

// NewScene creates a Scene with a server-generated identifier.
// Client-supplied IDs are never trusted.
func NewScene(userID, sceneName, content, audioURL string) *Scene {
	now := time.Now().UTC()
	return &Scene{
		UserID:    userID,
		SceneID:   uuid.New().String(),
		SceneName: sceneName,
		Content:   content,
		AudioURL:  audioURL,
		Status:    SceneStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// PaginatedScenes is one page of a scene listing
type PaginatedScenes struct {
	Items      []Scene `json:"items"`
	Total      int64   `json:"total"`
	Page       int     `json:"page"`
	PageSize   int     `json:"pageSize"`
	TotalPages int     `json:"totalPages"`
	// TotalIsApproximate is set when the count comes from a secondary
	// index whose ownership filter runs after the count.
	TotalIsApproximate bool `json:"totalIsApproximate,omitempty"`
}

// NewPaginatedScenes computes page arithmetic for a result set
func NewPaginatedScenes(items []Scene, total int64, page, pageSize int) *PaginatedScenes {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	if items == nil {
		items = []Scene{}
	}
	return &PaginatedScenes{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
