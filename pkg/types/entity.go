package types

import "time"

// EntitySummary aggregates one entity directory. It is computed on every
// enumeration and never persisted.
type EntitySummary struct {
	Kind           Kind   `json:"kind" yaml:"kind"`
	Category       string `json:"category" yaml:"category"`
	Type           string `json:"type" yaml:"type"`
	Subtype        string `json:"subtype,omitempty" yaml:"subtype,omitempty"`
	Name           string `json:"name" yaml:"name"`
	Path           string `json:"path" yaml:"path"`
	VariantCount   int    `json:"variant_count" yaml:"variant_count"`
	TotalPoseCount int    `json:"total_pose_count" yaml:"total_pose_count"`
}

// Classification returns the taxonomy of the summarized entity.
func (s EntitySummary) Classification() Classification {
	return Classification{Kind: s.Kind, Category: s.Category, Type: s.Type, Subtype: s.Subtype}
}

// EntityInfo is the full breakdown of one entity.
type EntityInfo struct {
	Kind     Kind          `json:"kind" yaml:"kind"`
	Category string        `json:"category" yaml:"category"`
	Type     string        `json:"type" yaml:"type"`
	Subtype  string        `json:"subtype,omitempty" yaml:"subtype,omitempty"`
	Name     string        `json:"name" yaml:"name"`
	Path     string        `json:"path" yaml:"path"`
	Variants []VariantInfo `json:"variants" yaml:"variants"`
}

// Classification returns the taxonomy of the entity.
func (e EntityInfo) Classification() Classification {
	return Classification{Kind: e.Kind, Category: e.Category, Type: e.Type, Subtype: e.Subtype}
}

// PoseCount returns the number of poses across all variants.
func (e EntityInfo) PoseCount() int {
	n := 0
	for _, v := range e.Variants {
		n += len(v.Poses)
	}
	return n
}

// VariantInfo lists the poses found in one variant directory.
type VariantInfo struct {
	ID          string `json:"id" yaml:"id"`
	Path        string `json:"path" yaml:"path"`
	HasMetadata bool   `json:"has_metadata" yaml:"has_metadata"`
	Poses       []Pose `json:"poses" yaml:"poses"`
}

// Pose is one recognized image file. Number is 1-based and dense: files the
// parser does not recognize take no number.
type Pose struct {
	Number    int       `json:"number" yaml:"number"`
	ImageType ImageType `json:"image_type" yaml:"image_type"`
	Path      string    `json:"path" yaml:"path"`
	Size      int64     `json:"size" yaml:"size"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}
