package layout

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/hoard/pkg/types"
)

// ImageFile is a file name the parser recognized as an image.
type ImageFile struct {
	Name      string
	ImageType types.ImageType
	// Ordinal is the n of a "<stem>_<n>.png" name, or 0 when absent.
	Ordinal int
}

// ParseImageFile reports whether name is a recognized image file. It accepts
// "<stem>.png" and "<stem>_<n>.png" where stem is in the vocabulary and n is
// a positive integer. The extension is matched case-insensitively. It never
// fails; unrecognized names return false.
func ParseImageFile(name string) (ImageFile, bool) {
	ext := filepath.Ext(name)
	if !strings.EqualFold(ext, types.ImageExt) {
		return ImageFile{}, false
	}
	stem := strings.TrimSuffix(name, ext)
	if it, ok := types.ImageTypeFromStem(stem); ok {
		return ImageFile{Name: name, ImageType: it}, true
	}

	i := strings.LastIndexByte(stem, '_')
	if i <= 0 {
		return ImageFile{}, false
	}
	n, err := strconv.Atoi(stem[i+1:])
	if err != nil || n <= 0 || strings.HasPrefix(stem[i+1:], "+") {
		return ImageFile{}, false
	}
	it, ok := types.ImageTypeFromStem(stem[:i])
	if !ok {
		return ImageFile{}, false
	}
	return ImageFile{Name: name, ImageType: it, Ordinal: n}, true
}

// PoseFile is a recognized image file with its 1-based pose number.
type PoseFile struct {
	ImageFile
	Number int
}

// NumberPoses keeps the recognized image files of names, in order, and
// numbers them 1, 2, 3, …. Unrecognized names are skipped and take no number.
func NumberPoses(names []string) []PoseFile {
	var poses []PoseFile
	for _, name := range names {
		f, ok := ParseImageFile(name)
		if !ok {
			continue
		}
		poses = append(poses, PoseFile{ImageFile: f, Number: len(poses) + 1})
	}
	return poses
}

// IsMetadataFile reports whether name is the metadata sidecar.
func IsMetadataFile(name string) bool {
	return name == MetadataFileName
}

// IsPromptFile reports whether name is a prompt file, "<stem>.md" with stem
// in the image vocabulary.
func IsPromptFile(name string) bool {
	if filepath.Ext(name) != PromptExt {
		return false
	}
	_, ok := types.ImageTypeFromStem(strings.TrimSuffix(name, PromptExt))
	return ok
}

// IsVariantContent reports whether name is a file the store writes into a
// variant directory.
func IsVariantContent(name string) bool {
	if IsMetadataFile(name) || IsPromptFile(name) {
		return true
	}
	_, ok := ParseImageFile(name)
	return ok
}
