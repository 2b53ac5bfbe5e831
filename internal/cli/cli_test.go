package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfowler1994/project-archivist/pkg/types"
)

// cliEnv is one isolated configuration and data directory pair.
type cliEnv struct {
	configDir string
	dataDir   string
}

func newCLIEnv(t *testing.T) cliEnv {
	t.Helper()
	root := t.TempDir()
	return cliEnv{
		configDir: filepath.Join(root, "config"),
		dataDir:   filepath.Join(root, "data"),
	}
}

type result struct {
	stdout string
	stderr string
	code   int
}

// run executes archivist with the environment's directories.
func (e cliEnv) run(t *testing.T, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"--config-dir", e.configDir, "--data-dir", e.dataDir}, args...)
	code := run(context.Background(), full, &stdout, &stderr)
	return result{stdout: stdout.String(), stderr: stderr.String(), code: code}
}

// mustRun fails the test unless the command succeeds.
func (e cliEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	res := e.run(t, args...)
	require.Equal(t, exitSuccess, res.code, "archivist %s\nstderr: %s", strings.Join(args, " "), res.stderr)
	return res.stdout
}

// entityJSON runs a command in JSON mode and decodes the
// result.
func (e cliEnv) entityJSON(t *testing.T, args ...string) map[string]any {
	t.Helper()
	out := e.mustRun(t, append([]string{"--json"}, args...)...)
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got), out)
	return got
}

// defineTaskSchema sets up a task type with a required priority select.
func defineTaskSchema(t *testing.T, e cliEnv) {
	t.Helper()
	e.mustRun(t, "type", "define", "task", "--description", "Work to be done")
	e.mustRun(t, "field", "define", "task", "priority",
		"--type", "single_select", "--option", "low", "--option", "medium", "--option", "high",
		"--required", "--order", "1")
	e.mustRun(t, "field", "define", "task", "estimate", "--type", "number", "--order", "2")
}

// --- S1: version and init ---

func TestVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"version"}, &stdout, &stderr)

	assert.Equal(t, exitSuccess, code)
	assert.Contains(t, stdout.String(), "archivist v"+Version)
	assert.Contains(t, stdout.String(), "module: "+modulePath)
}

func TestInit(t *testing.T) {
	e := newCLIEnv(t)

	out := e.mustRun(t, "init")
	assert.Contains(t, out, "Archivist initialized")

	cfg, err := os.ReadFile(filepath.Join(e.configDir, "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(cfg), "backend: sqlite")
	assert.Contains(t, string(cfg), "sync_strategy: immediate")

	for _, name := range []string{"entity_types.jsonl", "field_definitions.jsonl", "typed_entities.jsonl"} {
		assert.FileExists(t, filepath.Join(e.dataDir, name))
	}

	// Idempotent.
	e.mustRun(t, "init")
}

func TestInit_KeepsExistingConfig(t *testing.T) {
	e := newCLIEnv(t)
	require.NoError(t, os.MkdirAll(e.configDir, 0o755))
	custom := "backend: sqlite\nsqlite_config:\n  sync_strategy: on_close\n"
	require.NoError(t, os.WriteFile(filepath.Join(e.configDir, "config.yaml"), []byte(custom), 0o644))

	e.mustRun(t, "init")

	got, err := os.ReadFile(filepath.Join(e.configDir, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, custom, string(got))
}

func TestConfig_DataDirFromFile(t *testing.T) {
	root := t.TempDir()
	configDir := filepath.Join(root, "config")
	dataDir := filepath.Join(root, "from-config")
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"),
		[]byte("backend: sqlite\ndata_dir: "+dataDir+"\n"), 0o644))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--config-dir", configDir, "init"}, &stdout, &stderr)

	require.Equal(t, exitSuccess, code, stderr.String())
	assert.FileExists(t, filepath.Join(dataDir, "entity_types.jsonl"))
}

func TestConfig_InvalidSyncStrategy(t *testing.T) {
	e := newCLIEnv(t)
	require.NoError(t, os.MkdirAll(e.configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(e.configDir, "config.yaml"),
		[]byte("backend: sqlite\nsqlite_config:\n  sync_strategy: hourly\n"), 0o644))

	res := e.run(t, "type", "list")

	assert.Equal(t, exitUserError, res.code)
	assert.Contains(t, res.stderr, types.ErrSyncStrategyUnknown.Error())
}

// --- S2: entity types and fields ---

func TestTypeCommands(t *testing.T) {
	e := newCLIEnv(t)

	def := e.entityJSON(t, "type", "define", "  task ", "--description", "Work")
	assert.Equal(t, "task", def["name"])
	assert.NotEmpty(t, def["type_id"])

	res := e.run(t, "type", "define", "task")
	assert.Equal(t, exitUserError, res.code)
	assert.Contains(t, res.stderr, types.ErrDuplicateName.Error())

	e.mustRun(t, "type", "define", "meeting")
	out := e.mustRun(t, "type", "list")
	assert.Contains(t, out, "meeting")
	assert.Less(t, strings.Index(out, "meeting"), strings.Index(out, "task"), "types are listed by name")

	res = e.run(t, "type", "show", "nope")
	assert.Equal(t, exitUserError, res.code)
	assert.Contains(t, res.stderr, types.ErrUnknownEntityType.Error())

	e.mustRun(t, "type", "delete", "meeting")
	out = e.mustRun(t, "--json", "type", "list")
	var defs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &defs))
	require.Len(t, defs, 1)
	assert.Equal(t, "task", defs[0]["name"])
}

func TestTypeDelete_InUse(t *testing.T) {
	e := newCLIEnv(t)
	defineTaskSchema(t, e)

	res := e.run(t, "type", "delete", "task")

	assert.Equal(t, exitUserError, res.code)
	assert.Contains(t, res.stderr, types.ErrTypeInUse.Error())
}

func TestFieldCommands(t *testing.T) {
	e := newCLIEnv(t)
	defineTaskSchema(t, e)

	out := e.mustRun(t, "type", "show", "task")
	assert.Contains(t, out, "priority")
	assert.Contains(t, out, "options=low,medium,high")

	res := e.run(t, "field", "define", "task", "PRIORITY", "--type", "text")
	assert.Equal(t, exitUserError, res.code)
	assert.Contains(t, res.stderr, types.ErrDuplicateField.Error())

	res = e.run(t, "field", "define", "task", "color", "--type", "colour")
	assert.Equal(t, exitUserError, res.code)
	assert.Contains(t, res.stderr, types.ErrInvalidFieldType.Error())

	res = e.run(t, "field", "define", "task", "color", "--type", "single_select")
	assert.Equal(t, exitUserError, res.code)
	assert.Contains(t, res.stderr, types.ErrInvalidConfiguration.Error())

	res = e.run(t, "field", "define", "task", "color")
	assert.Equal(t, exitUserError, res.code)
	assert.Contains(t, res.stderr, "--type is required")

	e.mustRun(t, "field", "delete", "task", "estimate")
	out = e.mustRun(t, "--json", "field", "list", "task")
	var fields []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &fields))
	require.Len(t, fields, 1)
	assert.Equal(t, "priority", fields[0]["field_name"])
	assert.Equal(t, map[string]any{"options": []any{"low", "medium", "high"}}, fields[0]["configuration"])
}

func TestFieldDefine_ConfigFile(t *testing.T) {
	e := newCLIEnv(t)
	e.mustRun(t, "type", "define", "task")

	path := filepath.Join(t.TempDir(), "status.yaml")
	require.NoError(t, os.WriteFile(path, []byte("options:\n  - todo\n  - doing\n  - done\n"), 0o644))

	fd := e.entityJSON(t, "field", "define", "task", "status", "--type", "SingleSelect", "--config-file", path)

	assert.Equal(t, "single_select", fd["field_type"])
	assert.Equal(t, map[string]any{"options": []any{"todo", "doing", "done"}}, fd["configuration"])
}

func TestFieldUpdate(t *testing.T) {
	e := newCLIEnv(t)
	defineTaskSchema(t, e)

	fd := e.entityJSON(t, "field", "update", "task", "Priority", "--option", "low", "--option", "high")
	assert.Equal(t, "priority", fd["field_name"])
	assert.Equal(t, true, fd["is_required"], "flags not given are kept")
	assert.Equal(t, float64(1), fd["display_order"])

	res := e.run(t, "entity", "create", "task", "--title", "x", "--field", "priority=medium")
	assert.Equal(t, exitUserError, res.code)
	assert.Contains(t, res.stderr, "priority: invalid_option:")

	fd = e.entityJSON(t, "field", "update", "task", "priority", "--required=false")
	assert.Equal(t, false, fd["is_required"])
	assert.Equal(t, map[string]any{"options": []any{"low", "high"}}, fd["configuration"])

	fd = e.entityJSON(t, "field", "update", "task", "priority", "--type", "text")
	assert.Equal(t, "text", fd["field_type"])
	assert.Equal(t, map[string]any{}, fd["configuration"], "a new type starts from an empty configuration")

	res = e.run(t, "field", "update", "task", "missing", "--required")
	assert.Equal(t, exitUserError, res.code)
	assert.Contains(t, res.stderr, types.ErrNotFound.Error())
}

// --- S3: entities ---

func TestEntity_RequiredPriority(t *testing.T) {
	e := newCLIEnv(t)
	defineTaskSchema(t, e)

	res := e.run(t, "entity", "create", "task", "--title", "Ship it")
	assert.Equal(t, exitUserError, res.code)
	assert.Contains(t, res.stderr, "priority: required_field_missing:")

	res = e.run(t, "entity", "create", "task", "--title", "Ship it", "--field", "priority=urgent", "--field", "estimate=soon")
	assert.Equal(t, exitUserError, res.code)
	assert.Contains(t, res.stderr, "priority: invalid_option:")
	assert.Contains(t, res.stderr, "estimate: type_mismatch:")

	got := e.entityJSON(t, "entity", "create", "task", "--title", "Ship it", "--field", "priority=high", "--field", "estimate=2.50")
	assert.Equal(t, "task", got["entity_type_name"])
	assert.Equal(t, float64(1), got["version"])
	assert.Equal(t, map[string]any{"priority": "high", "estimate": 2.5}, got["custom_fields"])

	out := e.mustRun(t, "entity", "get", got["entity_id"].(string))
	assert.Contains(t, out, "Title:   Ship it")
	assert.Contains(t, out, "priority: high")
}

func TestEntity_UpdateAndConflict(t *testing.T) {
	e := newCLIEnv(t)
	defineTaskSchema(t, e)
	created := e.entityJSON(t, "entity", "create", "task", "--title", "a", "--fields-json", `{"priority":"low","estimate":3}`)
	id := created["entity_id"].(string)

	updated := e.entityJSON(t, "entity", "update", id, "--field", "PRIORITY=high", "--unset", "estimate", "--title", "b")
	assert.Equal(t, float64(2), updated["version"])
	assert.Equal(t, "b", updated["title"])
	assert.Equal(t, map[string]any{"priority": "high"}, updated["custom_fields"], "keys take the field's own spelling")

	res := e.run(t, "entity", "update", id, "--title", "c", "--version", "1")
	assert.Equal(t, exitUserError, res.code)
	assert.Contains(t, res.stderr, types.ErrConflictingUpdate.Error())

	res = e.run(t, "entity", "update", id, "--unset", "priority")
	assert.Equal(t, exitUserError, res.code)
	assert.Contains(t, res.stderr, "priority: required_field_missing:")
}

func TestEntity_PromoteAndSources(t *testing.T) {
	e := newCLIEnv(t)
	defineTaskSchema(t, e)

	res := e.run(t, "entity", "promote", "task", "--title", "x", "--field", "priority=low")
	assert.Equal(t, exitUserError, res.code)
	assert.Contains(t, res.stderr, "--source-id is required")

	promoted := e.entityJSON(t, "entity", "promote", "task",
		"--source-id", "note-42", "--source-type", "note",
		"--title", "Follow up", "--body", "from the note", "--field", "priority=low")
	assert.Equal(t, map[string]any{"source_entity_id": "note-42", "source_entity_type": "note"}, promoted["provenance"])

	e.mustRun(t, "entity", "create", "task", "--title", "unrelated", "--field", "priority=low")

	out := e.mustRun(t, "--json", "entity", "sources", "note-42")
	var entities []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &entities))
	require.Len(t, entities, 1)
	assert.Equal(t, promoted["entity_id"], entities[0]["entity_id"])
}

func TestEntity_ListRenameDelete(t *testing.T) {
	e := newCLIEnv(t)
	defineTaskSchema(t, e)
	e.mustRun(t, "field", "define", "task", "blocks", "--type", "entity_reference_list", "--target-type", "task")

	first := e.entityJSON(t, "entity", "create", "task", "--title", "first", "--field", "priority=low")
	id := first["entity_id"].(string)
	e.mustRun(t, "entity", "create", "task", "--title", "second", "--field", "priority=high",
		"--field", fmt.Sprintf(`blocks=[%q]`, id))

	res := e.run(t, "entity", "create", "task", "--title", "third", "--field", "priority=high", "--field", `blocks=["nope"]`)
	assert.Equal(t, exitUserError, res.code)
	assert.Contains(t, res.stderr, "blocks: dangling_reference:")

	e.mustRun(t, "type", "rename", "task", "todo")
	out := e.mustRun(t, "entity", "list", "todo")
	assert.Contains(t, out, "first")
	assert.Contains(t, out, "second")

	out = e.mustRun(t, "field", "list", "todo")
	assert.Contains(t, out, "targetType=todo")

	e.mustRun(t, "entity", "delete", id)
	res = e.run(t, "entity", "get", id)
	assert.Equal(t, exitUserError, res.code)
	assert.Contains(t, res.stderr, types.ErrNotFound.Error())
}

// --- S4: exit codes ---

func TestSystemErrorExitCode(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(),
		[]string{"--config-dir", filepath.Join(root, "config"), "--data-dir", filepath.Join(blocker, "data"), "type", "list"},
		&stdout, &stderr)

	assert.Equal(t, exitSysError, code)
	assert.Contains(t, stderr.String(), "attach archive")
}

func TestUnknownCommandExitCode(t *testing.T) {
	e := newCLIEnv(t)
	res := e.run(t, "frobnicate")
	assert.Equal(t, exitUserError, res.code)

	res = e.run(t, "entity", "get")
	assert.Equal(t, exitUserError, res.code, "wrong argument count")
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &types.ValidationError{Errors: []types.FieldError{{Field: "f", Rule: types.RuleTypeMismatch}}}, exitUserError},
		{"wrapped sentinel", fmt.Errorf("get: %w", types.ErrNotFound), exitUserError},
		{"usage", usageErrorf("bad flag"), exitUserError},
		{"system", systemError(errors.New("disk full")), exitSysError},
		{"classified storage error", classify(errors.New("inserting entity: disk I/O error")), exitSysError},
		{"classify keeps sentinels", classify(types.ErrConflictingUpdate), exitUserError},
		{"detached", types.ErrArchiveDetached, exitSysError},
		{"cancelled", context.Canceled, exitSysError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestPrintError_Validation(t *testing.T) {
	var buf bytes.Buffer
	printError(&buf, fmt.Errorf("create: %w", &types.ValidationError{Errors: []types.FieldError{
		{Field: "priority", Rule: types.RuleRequiredFieldMissing, Message: "a value is required"},
		{Field: "estimate", Rule: types.RuleTypeMismatch, Message: "expected number, got string"},
	}}))

	assert.Equal(t, "Error: validation failed\n"+
		"priority: required_field_missing: a value is required\n"+
		"estimate: type_mismatch: expected number, got string\n", buf.String())
}
