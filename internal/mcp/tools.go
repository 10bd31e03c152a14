package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mesh-intelligence/hoard/pkg/types"
)

type ListAssetsInput struct {
	Kind     string `json:"kind,omitempty" jsonschema:"character, creature, object or effect"`
	Category string `json:"category,omitempty" jsonschema:"category filter"`
	Type     string `json:"type,omitempty" jsonschema:"type filter"`
	Subtype  string `json:"subtype,omitempty" jsonschema:"subtype filter; entities without subtype never match"`
}

type FindAssetInput struct {
	Name string `json:"name" jsonschema:"entity name, matched case-insensitively"`
}

type GetEntityInput struct {
	Kind     string `json:"kind" jsonschema:"character, creature, object or effect"`
	Category string `json:"category" jsonschema:"entity category"`
	Type     string `json:"type" jsonschema:"entity type"`
	Subtype  string `json:"subtype,omitempty" jsonschema:"optional subtype"`
	Name     string `json:"name" jsonschema:"entity name"`
}

type VariantInput struct {
	Kind     string `json:"kind" jsonschema:"character, creature, object or effect"`
	Category string `json:"category" jsonschema:"entity category"`
	Type     string `json:"type" jsonschema:"entity type"`
	Subtype  string `json:"subtype,omitempty" jsonschema:"optional subtype"`
	Name     string `json:"name" jsonschema:"entity name"`
	Variant  string `json:"variant" jsonschema:"variant id, e.g. 0"`
}

type EntitySummaryOutput struct {
	Kind           string `json:"kind"`
	Category       string `json:"category"`
	Type           string `json:"type"`
	Subtype        string `json:"subtype,omitempty"`
	Name           string `json:"name"`
	Path           string `json:"path"`
	VariantCount   int    `json:"variant_count"`
	TotalPoseCount int    `json:"total_pose_count"`
}

type ListAssetsOutput struct {
	Assets []EntitySummaryOutput `json:"assets"`
}

type PoseOutput struct {
	Number    int    `json:"number"`
	ImageType string `json:"image_type"`
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	CreatedAt string `json:"created_at"`
}

type VariantOutput struct {
	ID          string       `json:"id"`
	Path        string       `json:"path"`
	HasMetadata bool         `json:"has_metadata"`
	Poses       []PoseOutput `json:"poses"`
}

type EntityOutput struct {
	Found    bool            `json:"found"`
	Kind     string          `json:"kind,omitempty"`
	Category string          `json:"category,omitempty"`
	Type     string          `json:"type,omitempty"`
	Subtype  string          `json:"subtype,omitempty"`
	Name     string          `json:"name,omitempty"`
	Path     string          `json:"path,omitempty"`
	Variants []VariantOutput `json:"variants"`
}

type ExistingImagesOutput struct {
	Existing []string `json:"existing"`
	Missing  []string `json:"missing"`
}

type MetadataOutput struct {
	Found    bool   `json:"found"`
	Metadata string `json:"metadata,omitempty"`
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_assets",
		Description: "List stored entities with variant and pose counts, optionally filtered by classification",
	}, s.handleListAssets)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "find_asset",
		Description: "Find an entity anywhere in the store by name",
	}, s.handleFindAsset)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_entity",
		Description: "Retrieve an entity's variants and poses by full classification",
	}, s.handleGetEntity)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "existing_images",
		Description: "Report which image types exist for a variant and which the kind still expects",
	}, s.handleExistingImages)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "load_metadata",
		Description: "Return the metadata.json text stored for a variant",
	}, s.handleLoadMetadata)
}

func (s *Server) handleListAssets(ctx context.Context, req *sdk.CallToolRequest, input ListAssetsInput) (*sdk.CallToolResult, ListAssetsOutput, error) {
	var kind types.Kind
	if input.Kind != "" {
		k, err := types.ParseKind(input.Kind)
		if err != nil {
			return nil, ListAssetsOutput{}, err
		}
		kind = k
	}
	items, err := s.store.Summaries(ctx, types.Filter{
		Kind:     kind,
		Category: input.Category,
		Type:     input.Type,
		Subtype:  input.Subtype,
	})
	if err != nil {
		return nil, ListAssetsOutput{}, err
	}

	output := make([]EntitySummaryOutput, 0, len(items))
	for _, item := range items {
		output = append(output, summaryOutput(item))
	}
	s.log.Debug("list_assets", "count", len(output))
	return nil, ListAssetsOutput{Assets: output}, nil
}

func (s *Server) handleFindAsset(ctx context.Context, req *sdk.CallToolRequest, input FindAssetInput) (*sdk.CallToolResult, EntityOutput, error) {
	if input.Name == "" {
		return nil, EntityOutput{}, fmt.Errorf("name is required")
	}
	info, err := s.store.Find(ctx, input.Name)
	if err != nil {
		return nil, EntityOutput{}, err
	}
	return nil, entityOutput(info), nil
}

func (s *Server) handleGetEntity(ctx context.Context, req *sdk.CallToolRequest, input GetEntityInput) (*sdk.CallToolResult, EntityOutput, error) {
	c, err := classification(input.Kind, input.Category, input.Type, input.Subtype)
	if err != nil {
		return nil, EntityOutput{}, err
	}
	info, err := s.store.EntityInfo(ctx, c, input.Name)
	if err != nil {
		return nil, EntityOutput{}, err
	}
	return nil, entityOutput(info), nil
}

func (s *Server) handleExistingImages(ctx context.Context, req *sdk.CallToolRequest, input VariantInput) (*sdk.CallToolResult, ExistingImagesOutput, error) {
	ref, err := variantRef(input)
	if err != nil {
		return nil, ExistingImagesOutput{}, err
	}
	existing, err := s.store.ExistingImageTypes(ctx, ref)
	if err != nil {
		return nil, ExistingImagesOutput{}, err
	}
	out := ExistingImagesOutput{Existing: []string{}, Missing: []string{}}
	for _, it := range existing.Types() {
		out.Existing = append(out.Existing, it.String())
	}
	for _, it := range ref.Kind.ImageTypes() {
		if !existing.Has(it) {
			out.Missing = append(out.Missing, it.String())
		}
	}
	return nil, out, nil
}

func (s *Server) handleLoadMetadata(ctx context.Context, req *sdk.CallToolRequest, input VariantInput) (*sdk.CallToolResult, MetadataOutput, error) {
	ref, err := variantRef(input)
	if err != nil {
		return nil, MetadataOutput{}, err
	}
	text, ok, err := s.store.LoadMetadata(ctx, ref)
	if err != nil {
		return nil, MetadataOutput{}, err
	}
	return nil, MetadataOutput{Found: ok, Metadata: text}, nil
}

func classification(kind, category, typ, subtype string) (types.Classification, error) {
	if kind == "" {
		return types.Classification{}, errors.New("kind is required")
	}
	k, err := types.ParseKind(kind)
	if err != nil {
		return types.Classification{}, err
	}
	return types.Classification{Kind: k, Category: category, Type: typ, Subtype: subtype}, nil
}

func variantRef(input VariantInput) (types.VariantRef, error) {
	c, err := classification(input.Kind, input.Category, input.Type, input.Subtype)
	if err != nil {
		return types.VariantRef{}, err
	}
	if input.Variant == "" {
		return types.VariantRef{}, errors.New("variant is required")
	}
	return types.VariantRef{Classification: c, Name: input.Name, Variant: input.Variant}, nil
}

func summaryOutput(e types.EntitySummary) EntitySummaryOutput {
	return EntitySummaryOutput{
		Kind:           e.Kind.String(),
		Category:       e.Category,
		Type:           e.Type,
		Subtype:        e.Subtype,
		Name:           e.Name,
		Path:           e.Path,
		VariantCount:   e.VariantCount,
		TotalPoseCount: e.TotalPoseCount,
	}
}

func entityOutput(info *types.EntityInfo) EntityOutput {
	if info == nil {
		return EntityOutput{Variants: []VariantOutput{}}
	}
	out := EntityOutput{
		Found:    true,
		Kind:     info.Kind.String(),
		Category: info.Category,
		Type:     info.Type,
		Subtype:  info.Subtype,
		Name:     info.Name,
		Path:     info.Path,
		Variants: make([]VariantOutput, 0, len(info.Variants)),
	}
	for _, v := range info.Variants {
		vo := VariantOutput{
			ID:          v.ID,
			Path:        v.Path,
			HasMetadata: v.HasMetadata,
			Poses:       make([]PoseOutput, 0, len(v.Poses)),
		}
		for _, p := range v.Poses {
			vo.Poses = append(vo.Poses, PoseOutput{
				Number:    p.Number,
				ImageType: p.ImageType.String(),
				Path:      p.Path,
				Size:      p.Size,
				CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		out.Variants = append(out.Variants, vo)
	}
	return out
}
