package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/hoard/pkg/types"
)

const entityArgs = "<kind> <category> <type> <name>"

// refFlags holds the flags that complete a VariantRef beyond its positional
// arguments.
type refFlags struct {
	subtype string
	variant string
}

func (f *refFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.subtype, "subtype", "", "optional subtype segment")
	cmd.Flags().StringVar(&f.variant, "variant", types.VariantIndex(0), "variant id")
}

// ref builds a VariantRef from "kind category type name" arguments. The name
// may span several arguments.
func (f *refFlags) ref(args []string) (types.VariantRef, error) {
	c, name, err := entityFromArgs(args, f.subtype)
	if err != nil {
		return types.VariantRef{}, err
	}
	return types.VariantRef{Classification: c, Name: name, Variant: f.variant}, nil
}

func entityFromArgs(args []string, subtype string) (types.Classification, string, error) {
	if len(args) < 4 {
		return types.Classification{}, "", usageErrorf("expected %s", entityArgs)
	}
	kind, err := types.ParseKind(args[0])
	if err != nil {
		return types.Classification{}, "", err
	}
	c := types.Classification{Kind: kind, Category: args[1], Type: args[2], Subtype: subtype}
	return c, strings.Join(args[3:], " "), nil
}

// readInput reads the named file, or standard input for "" and "-".
func readInput(cmd *cobra.Command, file string) ([]byte, error) {
	if file == "" || file == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, userError{err}
	}
	return data, nil
}

func newSaveCmd(a *app) *cobra.Command {
	var (
		rf        refFlags
		imageType string
		file      string
	)
	cmd := &cobra.Command{
		Use:   "save " + entityArgs,
		Short: "Save an image for an entity variant",
		Long: "Store a PNG image under the directory derived from the entity's classification.\n" +
			"An existing image of the same type is replaced.",
		Example: "  hoard save creature monsters humanoids goblin --subtype goblinoids --image-type portrait --file goblin.png",
		Args:    minArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := rf.ref(args)
			if err != nil {
				return err
			}
			if err := requireFlag("image-type", imageType); err != nil {
				return err
			}
			it, err := types.ParseImageType(imageType)
			if err != nil {
				return err
			}
			data, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			s, err := a.openStore()
			if err != nil {
				return err
			}
			path, err := s.SaveImage(cmd.Context(), ref, it, data)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	rf.register(cmd)
	cmd.Flags().StringVarP(&imageType, "image-type", "t", "", "image type: token, portrait, miniature, close-up or photo (required)")
	cmd.Flags().StringVarP(&file, "file", "f", "-", "image file, - for stdin")
	return cmd
}

func newMetaCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meta",
		Short: "Save or load a variant's metadata sidecar",
	}

	var setFlags refFlags
	var file string
	set := &cobra.Command{
		Use:   "set " + entityArgs,
		Short: "Save metadata.json for a variant",
		Args:  minArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := setFlags.ref(args)
			if err != nil {
				return err
			}
			data, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			s, err := a.openStore()
			if err != nil {
				return err
			}
			path, err := s.SaveMetadata(cmd.Context(), ref, string(data))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	setFlags.register(set)
	set.Flags().StringVarP(&file, "file", "f", "-", "metadata file, - for stdin")

	var getFlags refFlags
	get := &cobra.Command{
		Use:   "get " + entityArgs,
		Short: "Print metadata.json for a variant",
		Args:  minArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := getFlags.ref(args)
			if err != nil {
				return err
			}
			s, err := a.openStore()
			if err != nil {
				return err
			}
			text, ok, err := s.LoadMetadata(cmd.Context(), ref)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("metadata for %s variant %s: %w", ref.Name, ref.Variant, errNotFound)
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		},
	}
	getFlags.register(get)

	cmd.AddCommand(set, get)
	return cmd
}

func newPromptCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Save or load the generation prompt of an image",
	}

	var setFlags refFlags
	var setType, file string
	set := &cobra.Command{
		Use:   "set " + entityArgs,
		Short: "Save the prompt used for one image type",
		Args:  minArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := setFlags.ref(args)
			if err != nil {
				return err
			}
			if err := requireFlag("image-type", setType); err != nil {
				return err
			}
			it, err := types.ParseImageType(setType)
			if err != nil {
				return err
			}
			data, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			s, err := a.openStore()
			if err != nil {
				return err
			}
			path, err := s.SavePrompt(cmd.Context(), ref, it, string(data))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	setFlags.register(set)
	set.Flags().StringVarP(&setType, "image-type", "t", "", "image type (required)")
	set.Flags().StringVarP(&file, "file", "f", "-", "prompt file, - for stdin")

	var getFlags refFlags
	var getType string
	get := &cobra.Command{
		Use:   "get " + entityArgs,
		Short: "Print the prompt saved for one image type",
		Args:  minArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := getFlags.ref(args)
			if err != nil {
				return err
			}
			if err := requireFlag("image-type", getType); err != nil {
				return err
			}
			it, err := types.ParseImageType(getType)
			if err != nil {
				return err
			}
			s, err := a.openStore()
			if err != nil {
				return err
			}
			text, ok, err := s.LoadPrompt(cmd.Context(), ref, it)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s prompt for %s variant %s: %w", it, ref.Name, ref.Variant, errNotFound)
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		},
	}
	getFlags.register(get)
	get.Flags().StringVarP(&getType, "image-type", "t", "", "image type (required)")

	cmd.AddCommand(set, get)
	return cmd
}

// existsResult is the structured output of "hoard exists".
type existsResult struct {
	Name     string            `json:"name" yaml:"name"`
	Variant  string            `json:"variant" yaml:"variant"`
	Dir      string            `json:"dir" yaml:"dir"`
	Existing []types.ImageType `json:"existing" yaml:"existing"`
	Missing  []types.ImageType `json:"missing" yaml:"missing"`
}

func newExistsCmd(a *app) *cobra.Command {
	var rf refFlags
	cmd := &cobra.Command{
		Use:   "exists " + entityArgs,
		Short: "Report which image types exist for a variant",
		Long: "List the image types already saved for a variant and the ones its kind\n" +
			"still needs. Exits 0 whether or not any images exist.",
		Args: minArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := rf.ref(args)
			if err != nil {
				return err
			}
			format, err := a.format()
			if err != nil {
				return err
			}
			s, err := a.openStore()
			if err != nil {
				return err
			}
			set, err := s.ExistingImageTypes(cmd.Context(), ref)
			if err != nil {
				return err
			}
			missing, err := s.MissingImageTypes(cmd.Context(), ref)
			if err != nil {
				return err
			}
			dir, err := s.VariantDir(ref)
			if err != nil {
				return err
			}
			res := existsResult{
				Name:     ref.Name,
				Variant:  ref.Variant,
				Dir:      dir,
				Existing: nonNil(set.Types()),
				Missing:  nonNil(missing),
			}
			return render(cmd.OutOrStdout(), format, res, func(w io.Writer) error {
				field(w, "dir", res.Dir)
				field(w, "existing", joinTypes(res.Existing))
				field(w, "missing", joinTypes(res.Missing))
				return nil
			})
		},
	}
	rf.register(cmd)
	return cmd
}

func joinTypes(list []types.ImageType) string {
	if len(list) == 0 {
		return "-"
	}
	names := make([]string, len(list))
	for i, it := range list {
		names[i] = it.String()
	}
	return strings.Join(names, ", ")
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
