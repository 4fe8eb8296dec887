// Package models defines the catalog entities synced from Notion.
//
// Entities are value snapshots rebuilt on every sync. Relation fields hold
// resolved nested copies rather than IDs, except Tags and PrivateTags which
// hold tag IDs until the aggregator swaps them for names.
package models

import "time"

// Entity kinds.
const (
	KindResource   = "resource"
	KindField      = "field"
	KindCapability = "capability"
	KindBottleneck = "bottleneck"
	KindTag        = "tag"
)

// UncategorizedFieldID identifies the sentinel field.
const UncategorizedFieldID = "uncategorized"

// UnknownTag replaces tag IDs that do not resolve.
const UnknownTag = "Unknown Tag"

// DefaultResourceType is used when the resource type options are unavailable.
const DefaultResourceType = "Publication"

// Resource is a publication, dataset or other reference material.
type Resource struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	URL            string    `json:"url"`
	Content        string    `json:"content"`
	ResourceTypes  []string  `json:"resourceTypes"`
	LastEditedTime time.Time `json:"lastEditedTime"`
}

// Field is a scientific discipline grouping bottlenecks.
type Field struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	LastEditedTime time.Time `json:"lastEditedTime"`
}

// Capability is a foundational capability that would unblock bottlenecks.
type Capability struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	Slug           string     `json:"slug"`
	Rank           int        `json:"rank"`
	Resources      []Resource `json:"resources"`
	Tags           []string   `json:"tags"`
	PrivateTags    []string   `json:"privateTags"`
	LastEditedTime time.Time  `json:"lastEditedTime"`
}

// Bottleneck is an R&D gap.
type Bottleneck struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Description    string       `json:"description"`
	Slug           string       `json:"slug"`
	Rank           int          `json:"rank"`
	Number         int          `json:"number"`
	Field          Field        `json:"field"`
	Capabilities   []Capability `json:"capabilities"`
	Tags           []string     `json:"tags"`
	PrivateTags    []string     `json:"privateTags"`
	LastEditedTime time.Time    `json:"lastEditedTime"`
}

// Tag is only used to translate tag IDs into display names.
type Tag struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	LastEditedTime time.Time `json:"lastEditedTime,omitempty"`
}

// Catalog is the complete, relation-resolved data graph handed to consumers.
type Catalog struct {
	Resources           []Resource   `json:"resources"`
	Fields              []Field      `json:"fields"`
	Capabilities        []Capability `json:"capabilities"`
	Bottlenecks         []Bottleneck `json:"bottlenecks"`
	ResourceTypeOptions []string     `json:"resourceTypeOptions"`
	GeneratedAt         time.Time    `json:"generatedAt"`
}

// UncategorizedField is the sentinel assigned to bottlenecks whose field
// relation is missing or unresolved.
func UncategorizedField() Field {
	return Field{ID: UncategorizedFieldID, Name: "Uncategorized"}
}

// EntityID and EditedAt let the sync layer cache and merge any entity kind.

func (r Resource) EntityID() string      { return r.ID }
func (r Resource) EditedAt() time.Time   { return r.LastEditedTime }
func (f Field) EntityID() string         { return f.ID }
func (f Field) EditedAt() time.Time      { return f.LastEditedTime }
func (c Capability) EntityID() string    { return c.ID }
func (c Capability) EditedAt() time.Time { return c.LastEditedTime }
func (b Bottleneck) EntityID() string    { return b.ID }
func (b Bottleneck) EditedAt() time.Time { return b.LastEditedTime }
func (t Tag) EntityID() string           { return t.ID }
func (t Tag) EditedAt() time.Time        { return t.LastEditedTime }
