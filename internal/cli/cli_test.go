package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/hoard/internal/catalog"
	"github.com/mesh-intelligence/hoard/internal/storage"
	"github.com/mesh-intelligence/hoard/pkg/hoard"
	"github.com/mesh-intelligence/hoard/pkg/types"
)

// testEnv isolates one CLI run: its own config dir, image root and catalog.
type testEnv struct {
	t         *testing.T
	ConfigDir string
	Root      string
	Catalog   string
}

// result holds the outcome of one in-process command.
type result struct {
	Stdout string
	Stderr string
	Err    error
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		t:         t,
		ConfigDir: filepath.Join(dir, "config"),
		Root:      filepath.Join(dir, "images"),
		Catalog:   filepath.Join(dir, "data", "catalog.db"),
	}
	t.Setenv("HOARD_CATALOG", env.Catalog)
	t.Setenv("HOARD_DATA_DIR", "")
	t.Setenv("HOARD_ROOT", "")
	return env
}

func (e *testEnv) runWithInput(ctx context.Context, stdin []byte, args ...string) result {
	e.t.Helper()
	root := NewRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(bytes.NewReader(stdin))
	full := append([]string{"--config-dir", e.ConfigDir, "--root", e.Root}, args...)
	root.SetArgs(full)
	err := root.ExecuteContext(ctx)
	return result{Stdout: stdout.String(), Stderr: stderr.String(), Err: err}
}

func (e *testEnv) run(args ...string) result {
	e.t.Helper()
	return e.runWithInput(context.Background(), nil, args...)
}

func (e *testEnv) mustRun(args ...string) result {
	e.t.Helper()
	r := e.run(args...)
	require.NoError(e.t, r.Err, "hoard %s\nstderr: %s", strings.Join(args, " "), r.Stderr)
	return r
}

// save stores a fake PNG for the goblin-style positional arguments.
func (e *testEnv) save(imageType string, args ...string) string {
	e.t.Helper()
	full := append([]string{"save", "--image-type", imageType}, args...)
	r := e.runWithInput(context.Background(), []byte("\x89PNG fake"), full...)
	require.NoError(e.t, r.Err, r.Stderr)
	return strings.TrimSpace(r.Stdout)
}

func parseJSON[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(s), &v), "output: %s", s)
	return v
}

func seed(e *testEnv) {
	e.save("portrait", "creature", "monsters", "humanoids", "goblin", "--subtype", "goblinoids")
	e.save("token", "creature", "monsters", "humanoids", "goblin", "--subtype", "goblinoids")
	e.save("token", "creature", "monsters", "humanoids", "goblin", "--subtype", "goblinoids", "--variant", "1")
	e.save("token", "object", "weapons", "melee", "longsword")
}

func TestVersion(t *testing.T) {
	env := newTestEnv(t)
	r := env.mustRun("version")
	assert.Equal(t, "hoard v"+hoard.Version+"\nmodule: "+modulePath+"\n", r.Stdout)
	_, err := os.Stat(env.ConfigDir)
	assert.ErrorIs(t, err, os.ErrNotExist, "version must not load config")
}

func TestInit(t *testing.T) {
	env := newTestEnv(t)
	r := env.mustRun("init", "--scheme", "genre")

	assert.Contains(t, r.Stdout, "hoard initialized")
	assert.DirExists(t, env.Root)
	assert.DirExists(t, filepath.Dir(env.Catalog))

	data, err := os.ReadFile(filepath.Join(env.ConfigDir, "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "scheme: genre")
	assert.Contains(t, string(data), env.Root)
}

func TestInitKeepsExistingConfig(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.MkdirAll(env.ConfigDir, 0o755))
	custom := "scheme: genre\nlog_level: error\n"
	path := filepath.Join(env.ConfigDir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(custom), 0o644))

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--config-dir", env.ConfigDir, "init"})
	t.Chdir(t.TempDir())
	require.NoError(t, root.Execute())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, custom, string(data))
}

func TestSaveUsesConfiguredScheme(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.MkdirAll(env.ConfigDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(env.ConfigDir, "config.yaml"), []byte("scheme: genre\n"), 0o644))

	path := env.save("close-up", "character", "npcs", "villagers", "Old Tom")
	want := filepath.Join(env.Root, "character", "npcs", "villagers", "o", "old_tom", "0", "close-up.png")
	assert.Equal(t, want, path)
	assert.FileExists(t, path)
}

func TestSave(t *testing.T) {
	env := newTestEnv(t)
	path := env.save("token", "creature", "monsters", "humanoids", "goblin", "--subtype", "goblinoids")

	want := filepath.Join(env.Root, "creature", "monsters", "humanoids", "goblinoids", "goblin", "0", "top-down.png")
	assert.Equal(t, want, path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG fake", string(data))
}

func TestSaveFromFile(t *testing.T) {
	env := newTestEnv(t)
	src := filepath.Join(t.TempDir(), "in.png")
	require.NoError(t, os.WriteFile(src, []byte("png bytes"), 0o644))

	r := env.mustRun("save", "-t", "miniature", "-f", src, "object", "weapons", "melee", "long", "sword")
	path := strings.TrimSpace(r.Stdout)
	assert.Equal(t, filepath.Join(env.Root, "object", "weapons", "melee", "long_sword", "0", "miniature.png"), path)
}

func TestSaveRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"traversal", []string{"save", "-t", "token", "creature", "..", "humanoids", "goblin"}},
		{"unknown kind", []string{"save", "-t", "token", "vehicle", "land", "carts", "wagon"}},
		{"unknown image type", []string{"save", "-t", "sketch", "creature", "monsters", "humanoids", "goblin"}},
		{"missing image type", []string{"save", "creature", "monsters", "humanoids", "goblin"}},
		{"too few args", []string{"save", "-t", "token", "creature", "monsters"}},
		{"blank variant", []string{"save", "-t", "token", "--variant", " ", "creature", "monsters", "humanoids", "goblin"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			r := env.runWithInput(context.Background(), []byte("png"), tt.args...)
			require.Error(t, r.Err)
			assert.Equal(t, exitUserError, exitCode(r.Err))
			assert.NoDirExists(t, env.Root)
		})
	}
}

func TestSaveEmptyInput(t *testing.T) {
	env := newTestEnv(t)
	r := env.runWithInput(context.Background(), nil, "save", "-t", "token", "object", "weapons", "melee", "dagger")
	require.NoError(t, r.Err, r.Stderr)
	path := filepath.Join(env.Root, "object", "weapons", "melee", "dagger", "0", "top-down.png")
	assert.Equal(t, path, strings.TrimSpace(r.Stdout))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestMetaRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	meta := `{"prompt": "a goblin",  "seed": 7}`
	r := env.runWithInput(context.Background(), []byte(meta),
		"meta", "set", "creature", "monsters", "humanoids", "goblin", "--variant", "2")
	require.NoError(t, r.Err, r.Stderr)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(r.Stdout), filepath.Join("goblin", "2", "metadata.json")))

	got := env.mustRun("meta", "get", "creature", "monsters", "humanoids", "goblin", "--variant", "2")
	assert.Equal(t, meta, got.Stdout)
}

func TestMetaGetMissing(t *testing.T) {
	env := newTestEnv(t)
	r := env.run("meta", "get", "creature", "monsters", "humanoids", "goblin")
	assert.ErrorIs(t, r.Err, errNotFound)
	assert.Equal(t, exitUserError, exitCode(r.Err))
}

func TestPromptRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	r := env.runWithInput(context.Background(), []byte("hooded goblin, torchlight"),
		"prompt", "set", "-t", "portrait", "creature", "monsters", "humanoids", "goblin")
	require.NoError(t, r.Err, r.Stderr)

	got := env.mustRun("prompt", "get", "-t", "portrait", "creature", "monsters", "humanoids", "goblin")
	assert.Equal(t, "hooded goblin, torchlight", got.Stdout)

	missing := env.run("prompt", "get", "-t", "token", "creature", "monsters", "humanoids", "goblin")
	assert.ErrorIs(t, missing.Err, errNotFound)

	// Prompt files are not poses.
	list := parseJSON[[]types.EntitySummary](t, env.mustRun("list", "--json").Stdout)
	require.Len(t, list, 1)
	assert.Zero(t, list[0].TotalPoseCount)
}

func TestExists(t *testing.T) {
	env := newTestEnv(t)
	env.save("token", "creature", "monsters", "humanoids", "goblin")

	r := env.mustRun("exists", "creature", "monsters", "humanoids", "goblin", "-o", "json")
	got := parseJSON[existsResult](t, r.Stdout)
	assert.Equal(t, []types.ImageType{types.ImageToken}, got.Existing)
	assert.Equal(t, []types.ImageType{types.ImagePortrait, types.ImageCloseUp}, got.Missing)
	assert.Equal(t, filepath.Join(env.Root, "creature", "monsters", "humanoids", "goblin", "0"), got.Dir)

	text := env.mustRun("exists", "object", "weapons", "melee", "axe")
	assert.Contains(t, text.Stdout, "existing: -")
	assert.Contains(t, text.Stdout, "missing: token")
}

func TestList(t *testing.T) {
	env := newTestEnv(t)
	seed(env)

	list := parseJSON[[]types.EntitySummary](t, env.mustRun("list", "--json").Stdout)
	require.Len(t, list, 2)
	assert.Equal(t, "goblin", list[0].Name)
	assert.Equal(t, types.KindCreature, list[0].Kind)
	assert.Equal(t, "goblinoids", list[0].Subtype)
	assert.Equal(t, 2, list[0].VariantCount)
	assert.Equal(t, 3, list[0].TotalPoseCount)
	assert.Equal(t, "longsword", list[1].Name)

	text := env.mustRun("list").Stdout
	assert.Contains(t, text, "KIND")
	assert.Contains(t, text, "goblinoids")
	assert.Contains(t, text, "2 entities, 4 poses")

	yml := env.mustRun("list", "-o", "yaml", "--kind", "object").Stdout
	assert.Contains(t, yml, "name: longsword")
	assert.NotContains(t, yml, "goblin")
}

func TestListEmpty(t *testing.T) {
	env := newTestEnv(t)
	r := env.mustRun("list")
	assert.Contains(t, r.Stdout, "No entities found.")

	js := env.mustRun("list", "--json")
	assert.JSONEq(t, "[]", js.Stdout)
}

func TestListRejectsBadFilter(t *testing.T) {
	env := newTestEnv(t)
	r := env.run("list", "--category", "../etc")
	assert.ErrorIs(t, r.Err, types.ErrInvalidInput)

	r = env.run("list", "--kind", "vehicle")
	assert.ErrorIs(t, r.Err, types.ErrUnknownKind)
}

func TestShow(t *testing.T) {
	env := newTestEnv(t)
	seed(env)

	info := parseJSON[types.EntityInfo](t, env.mustRun("show", "GOBLIN", "--json").Stdout)
	assert.Equal(t, "goblin", info.Name)
	require.Len(t, info.Variants, 2)
	assert.Equal(t, "0", info.Variants[0].ID)
	require.Len(t, info.Variants[0].Poses, 2)
	assert.Equal(t, 1, info.Variants[0].Poses[0].Number)
	assert.Equal(t, 2, info.Variants[0].Poses[1].Number)

	text := env.mustRun("show", "goblin").Stdout
	assert.Contains(t, text, "creature / monsters / humanoids / goblinoids")
	assert.Contains(t, text, "variant 0")
	assert.Contains(t, text, "portrait")
	assert.Contains(t, text, "9 B")

	direct := env.mustRun("show", "longsword", "--kind", "object", "--category", "weapons", "--type", "melee", "--json")
	assert.Equal(t, "longsword", parseJSON[types.EntityInfo](t, direct.Stdout).Name)
}

func TestShowMissing(t *testing.T) {
	env := newTestEnv(t)
	seed(env)
	r := env.run("show", "dragon")
	assert.ErrorIs(t, r.Err, errNotFound)

	r = env.run("show", "goblin", "--kind", "object", "--category", "weapons", "--type", "melee")
	assert.ErrorIs(t, r.Err, errNotFound)
}

func TestFind(t *testing.T) {
	env := newTestEnv(t)
	seed(env)

	r := env.mustRun("find", "LongSword")
	assert.Equal(t, filepath.Join(env.Root, "object", "weapons", "melee", "longsword")+"\n", r.Stdout)

	summary := parseJSON[types.EntitySummary](t, env.mustRun("find", "goblin", "--json").Stdout)
	assert.Equal(t, 3, summary.TotalPoseCount)

	missing := env.run("find", "dragon")
	assert.Equal(t, exitUserError, exitCode(missing.Err))
}

func TestIndex(t *testing.T) {
	env := newTestEnv(t)
	seed(env)

	stats := parseJSON[catalog.Stats](t, env.mustRun("index", "rebuild", "--json").Stdout)
	assert.Equal(t, 2, stats.Entities)
	assert.Equal(t, 3, stats.Variants)
	assert.Equal(t, 4, stats.Poses)
	assert.Equal(t, env.Root, stats.Root)
	assert.FileExists(t, env.Catalog)

	found := parseJSON[[]types.EntitySummary](t, env.mustRun("index", "search", "GOB", "--json").Stdout)
	require.Len(t, found, 1)
	assert.Equal(t, "goblin", found[0].Name)

	none := parseJSON[[]types.EntitySummary](t, env.mustRun("index", "search", "dragon", "--json").Stdout)
	assert.Empty(t, none)

	st := parseJSON[indexStats](t, env.mustRun("index", "stats", "--json").Stdout)
	assert.Equal(t, 4, st.Poses)
	assert.Equal(t, map[string]int{"token": 3, "portrait": 1}, st.ByImageType)

	text := env.mustRun("index", "stats").Stdout
	assert.Contains(t, text, "entities: 2")
}

func TestIndexStatsBeforeRebuild(t *testing.T) {
	env := newTestEnv(t)
	r := env.mustRun("index", "stats")
	assert.Contains(t, r.Stdout, "indexed: never")
}

func TestExportToDirectory(t *testing.T) {
	env := newTestEnv(t)
	seed(env)
	env.runWithInput(context.Background(), []byte(`{"a":1}`),
		"meta", "set", "object", "weapons", "melee", "longsword")
	dst := filepath.Join(t.TempDir(), "backup")

	dry := parseJSON[exportResult](t, env.mustRun("export", "--to", dst, "--dry-run", "--json").Stdout)
	assert.Equal(t, 5, dry.Files)
	assert.True(t, dry.DryRun)
	assert.NoFileExists(t, filepath.Join(dst, "object", "weapons", "melee", "longsword", "0", "metadata.json"))

	res := parseJSON[exportResult](t, env.mustRun("export", "--to", dst, "--json").Stdout)
	assert.Equal(t, 2, res.Entities)
	assert.Equal(t, 5, res.Files)
	assert.Equal(t, dst, res.Target)
	assert.FileExists(t, filepath.Join(dst, "creature", "monsters", "humanoids", "goblinoids", "goblin", "1", "top-down.png"))
	assert.FileExists(t, filepath.Join(dst, "object", "weapons", "melee", "longsword", "0", "metadata.json"))

	again := parseJSON[exportResult](t, env.mustRun("export", "--to", dst, "--skip-existing", "--json").Stdout)
	assert.Zero(t, again.Files)
	assert.Equal(t, 5, again.Skipped)

	text := env.mustRun("export", "--to", dst, "--kind", "object").Stdout
	assert.Contains(t, text, "Exported 2 files")
}

func TestExportTargetFlags(t *testing.T) {
	env := newTestEnv(t)
	r := env.run("export")
	assert.Equal(t, exitUserError, exitCode(r.Err))

	r = env.run("export", "--to", t.TempDir(), "--s3")
	assert.Equal(t, exitUserError, exitCode(r.Err))

	r = env.run("export", "--s3")
	require.Error(t, r.Err)
	assert.Contains(t, r.Err.Error(), "bucket")
	assert.Equal(t, exitUserError, exitCode(r.Err))
}

func TestS3ConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	yml := "export:\n  s3:\n    bucket: art\n    prefix: hoard/\n    endpoint: http://localhost:9000\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yml), 0o644))
	t.Setenv("HOARD_EXPORT_S3_REGION", "eu-west-1")

	v, err := loadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, storage.S3Config{
		Bucket:   "art",
		Prefix:   "hoard/",
		Region:   "eu-west-1",
		Endpoint: "http://localhost:9000",
	}, s3Config(v))
}

func TestLoadConfigWritesDefault(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "config")
	v, err := loadConfig(dir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "config.yaml"))
	assert.Equal(t, "kind", v.GetString(cfgKeyScheme))
	assert.Equal(t, "warn", v.GetString(cfgKeyLogLevel))
}

func TestLoadConfigRejectsBrokenYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("scheme: [kind\n"), 0o644))
	_, err := loadConfig(dir)
	assert.Error(t, err)
}

func TestBadSchemeIsUserError(t *testing.T) {
	env := newTestEnv(t)
	r := env.run("list", "--scheme", "alphabet")
	assert.ErrorIs(t, r.Err, types.ErrUnknownScheme)
	assert.Equal(t, exitUserError, exitCode(r.Err))
}

func TestOutputFormat(t *testing.T) {
	env := newTestEnv(t)
	r := env.run("list", "-o", "xml")
	assert.Equal(t, exitUserError, exitCode(r.Err))

	for _, in := range []string{"", "TEXT", "table"} {
		f, err := parseOutputFormat(in)
		require.NoError(t, err)
		assert.Equal(t, formatText, f)
	}
	f, err := parseOutputFormat("yml")
	require.NoError(t, err)
	assert.Equal(t, formatYAML, f)
}

func TestLogLevel(t *testing.T) {
	env := newTestEnv(t)
	r := env.run("list", "--log-level", "loud")
	assert.Equal(t, exitUserError, exitCode(r.Err))

	r = env.mustRun("list", "--log-level", "debug")
	assert.Contains(t, r.Stderr, "store opened")
	assert.NotContains(t, r.Stdout, "store opened")
}

func TestUnknownCommand(t *testing.T) {
	env := newTestEnv(t)
	r := env.run("frobnicate")
	require.Error(t, r.Err)
	assert.Equal(t, exitUserError, exitCode(r.Err))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitSuccess},
		{"invalid input", types.ErrBlankSegment, exitUserError},
		{"not found", errNotFound, exitUserError},
		{"usage", usageErrorf("bad"), exitUserError},
		{"explicit", codeError{code: 3, msg: "x"}, 3},
		{"io", os.ErrPermission, exitSysError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
