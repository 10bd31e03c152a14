package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mesh-intelligence/hoard/pkg/types"
)

func TestParseImageFile(t *testing.T) {
	tests := []struct {
		name        string
		wantOK      bool
		wantType    types.ImageType
		wantOrdinal int
	}{
		{name: "top-down.png", wantOK: true, wantType: types.ImageToken},
		{name: "portrait.png", wantOK: true, wantType: types.ImagePortrait},
		{name: "close-up.PNG", wantOK: true, wantType: types.ImageCloseUp},
		{name: "token.png", wantOK: true, wantType: types.ImageToken},
		{name: "token_2.png", wantOK: true, wantType: types.ImageToken, wantOrdinal: 2},
		{name: "miniature_10.png", wantOK: true, wantType: types.ImageMiniature, wantOrdinal: 10},
		{name: "token_abc.png"},
		{name: "token_0.png"},
		{name: "token_-1.png"},
		{name: "token_+1.png"},
		{name: "not_a_token.png"},
		{name: "_1.png"},
		{name: "portrait.jpg"},
		{name: "portrait.md"},
		{name: "metadata.json"},
		{name: "portrait"},
		{name: ".png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseImageFile(tt.name)
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			assert.Equal(t, tt.name, got.Name)
			assert.Equal(t, tt.wantType, got.ImageType)
			assert.Equal(t, tt.wantOrdinal, got.Ordinal)
		})
	}
}

func TestNumberPosesSkipsAndRenumbersDensely(t *testing.T) {
	poses := NumberPoses([]string{"top-down.png", "not_a_token.png", "token_abc.png", "portrait.png"})

	if assert.Len(t, poses, 2) {
		assert.Equal(t, 1, poses[0].Number)
		assert.Equal(t, types.ImageToken, poses[0].ImageType)
		assert.Equal(t, 2, poses[1].Number)
		assert.Equal(t, types.ImagePortrait, poses[1].ImageType)
	}
}

func TestNumberPosesEmpty(t *testing.T) {
	assert.Empty(t, NumberPoses(nil))
	assert.Empty(t, NumberPoses([]string{"readme.txt", "metadata.json"}))
}

func TestVariantContent(t *testing.T) {
	assert.True(t, IsMetadataFile("metadata.json"))
	assert.False(t, IsMetadataFile("Metadata.json"))
	assert.True(t, IsPromptFile("top-down.md"))
	assert.False(t, IsPromptFile("notes.md"))
	assert.True(t, IsVariantContent("photo.png"))
	assert.True(t, IsVariantContent("metadata.json"))
	assert.True(t, IsVariantContent("close-up.md"))
	assert.False(t, IsVariantContent(".DS_Store"))
}
