// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package patch

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/smalikit/pkg/config"
	"github.com/walteh/smalikit/pkg/log"
	"github.com/walteh/smalikit/pkg/status"
)

func strPtr(s string) *string { return &s }

// newTestPatcher wires a patcher with a buffered console so tests can
// inspect output.
func newTestPatcher(t *testing.T, spec *config.RewriteSpec) (*Patcher, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	console := log.New(&buf, zerolog.Disabled)
	logger := zerolog.Nop()
	p, err := New(spec, status.New(&logger), console)
	require.NoError(t, err, "New should succeed")
	return p, &buf
}

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755), "creating fixture dirs should succeed")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644), "writing fixture should succeed")
	return path
}

const downgradeBlock = `.method public checkDowngrade(Landroid/content/pm/PackageInfo;)Z
    .locals 1

    const/4 v0, 0x0

    return v0
.end method`

const keepBlock = `.method public keep()V
    .locals 0

    return-void
.end method`

func TestNewRejectsEmptySelector(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.Nop()
	_, err := New(&config.RewriteSpec{}, status.New(&logger), log.New(&buf, zerolog.Disabled))
	require.Error(t, err, "a spec without selector must be rejected before touching any file")
	assert.Contains(t, err.Error(), "method selector or a keyword", "error should name the missing fields")
}

func TestRunPathNotFound(t *testing.T) {
	p, _ := newTestPatcher(t, &config.RewriteSpec{Method: "checkDowngrade"})
	_, err := p.Run(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err, "a missing root is fatal for the invocation")
	assert.Contains(t, err.Error(), "path not found", "error should name the failure")
}

func TestFileLevelIdempotence(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "PackageManagerService.smali",
		".class Lcom/android/server/pm/PackageManagerService;\n\n"+downgradeBlock+"\n")

	spec := &config.RewriteSpec{
		Method:      "checkDowngrade",
		RewriteBody: strPtr(`.locals 1\n    const/4 v0, 0x0\n    return v0`),
	}

	// First run rewrites the file.
	p, _ := newTestPatcher(t, spec)
	outcomes, err := p.Run(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Written, "first run should write the file")
	assert.Equal(t, status.StatusRewritten, outcomes[0].Status)

	firstContent, err := os.ReadFile(path)
	require.NoError(t, err)

	// Second identical run matches again but must not write: the
	// block-level flag reports modified, the file-level comparison
	// does not.
	p2, _ := newTestPatcher(t, spec)
	outcomes, err = p2.Run(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Written, "second run must not write")
	assert.Equal(t, status.StatusUnchanged, outcomes[0].Status)
	assert.NotEmpty(t, outcomes[0].MatchedSignatures, "the block still matches on the second run")

	secondContent, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, firstContent, secondContent, "content must be stable across runs")
}

func TestDeleteMethodRemovesAllDuplicateBlocks(t *testing.T) {
	dir := t.TempDir()
	content := ".class Lfoo;\n\n" +
		downgradeBlock + "\n\n" +
		keepBlock + "\n\n" +
		downgradeBlock + "\n"
	path := writeFixture(t, dir, "Service.smali", content)

	p, _ := newTestPatcher(t, &config.RewriteSpec{Method: "checkDowngrade", DeleteMethod: true})
	outcomes, err := p.Run(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Written)
	assert.Len(t, outcomes[0].MatchedSignatures, 2, "both duplicate blocks should match")

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	result := string(got)

	assert.NotContains(t, result, "checkDowngrade", "both blocks should be gone, header to footer")
	assert.Contains(t, result, keepBlock, "the surrounding method must be untouched")
	assert.Contains(t, result, ".class Lfoo;", "the class header must be untouched")
	assert.NotContains(t, result, "\n\n\n\n", "deletion must not pile up blank delimiters")
}

func TestDuplicateBlocksEachReceiveTheirOwnRewrite(t *testing.T) {
	dir := t.TempDir()
	content := ".class Lfoo;\n\n" +
		downgradeBlock + "\n\n" +
		downgradeBlock + "\n"
	path := writeFixture(t, dir, "Dup.smali", content)

	p, _ := newTestPatcher(t, &config.RewriteSpec{
		Method:  "checkDowngrade",
		Replace: &config.Replacement{Old: "const/4 v0, 0x0", New: "const/4 v0, 0x1"},
	})
	outcomes, err := p.Run(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.Len(t, outcomes[0].MatchedSignatures, 2)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(got), "const/4 v0, 0x1"), "each duplicate block gets its own rewrite")
	assert.NotContains(t, string(got), "const/4 v0, 0x0", "no occurrence may be double-patched or skipped")
}

func TestFastRejectLeavesFileUntouched(t *testing.T) {
	dir := t.TempDir()
	content := ".class Lbar;\n\n" + keepBlock + "\n"
	path := writeFixture(t, dir, "Other.smali", content)

	p, _ := newTestPatcher(t, &config.RewriteSpec{
		Method:  "checkDowngrade",
		Replace: &config.Replacement{Old: "a", New: "b"},
	})
	outcomes, err := p.Run(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, status.StatusNoMatch, outcomes[0].Status, "absence of a match is not an error")
	assert.False(t, outcomes[0].Written)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, string(got), "file must be byte-identical")
}

func TestWalkFilters(t *testing.T) {
	dir := t.TempDir()
	content := ".class Lx;\n\n" + downgradeBlock + "\n"

	writeFixture(t, dir, "AppService.smali", content)
	writeFixture(t, dir, "nested/AppWidget.smali", content)
	writeFixture(t, dir, "nested/Other.smali", content)
	writeFixture(t, dir, "notes.txt", content)
	writeFixture(t, dir, "skip/AppSkipped.smali", content)

	p, _ := newTestPatcher(t, &config.RewriteSpec{
		Method:         "checkDowngrade",
		NameFilter:     "App",
		IgnorePatterns: []string{"skip/**"},
		Replace:        &config.Replacement{Old: "0x0", New: "0x1"},
	})

	outcomes, err := p.Run(context.Background(), dir)
	require.NoError(t, err)

	var patched []string
	for _, out := range outcomes {
		rel, relErr := filepath.Rel(dir, out.Path)
		require.NoError(t, relErr)
		patched = append(patched, filepath.ToSlash(rel))
	}

	assert.ElementsMatch(t, []string{"AppService.smali", "nested/AppWidget.smali"}, patched,
		"walk should honor extension, name filter and ignore patterns")
}

func TestSingleFileModeIgnoresNameFilter(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "NoFilterMatch.smali", ".class Lx;\n\n"+downgradeBlock+"\n")

	p, _ := newTestPatcher(t, &config.RewriteSpec{
		Method:     "checkDowngrade",
		NameFilter: "App",
		Replace:    &config.Replacement{Old: "0x0", New: "0x1"},
	})

	outcomes, err := p.Run(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Written, "an explicit file is patched regardless of the filename filter")
}

func TestKeywordAndReturnTypeConjunction(t *testing.T) {
	dir := t.TempDir()
	content := `.class Lconj;

.method public a()Z
    .locals 0

    return v0
.end method

.method public b()V
    .locals 0

    const-string v0, "app_store_recommend"

    return-void
.end method

.method public c()Z
    .locals 0

    return v0
.end method
`
	path := writeFixture(t, dir, "Conj.smali", content)

	p, _ := newTestPatcher(t, &config.RewriteSpec{
		Keyword:    "app_store_recommend",
		ReturnType: "Z",
		Replace:    &config.Replacement{Old: "return", New: "RETURN"},
	})

	outcomes, err := p.Run(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, status.StatusNoMatch, outcomes[0].Status, "filters are AND, not OR")
	assert.Empty(t, outcomes[0].MatchedSignatures)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, string(got), "file must be untouched")
}

func TestSummaryCountsNoMatchFiles(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "Match.smali", ".class Lx;\n\n"+downgradeBlock+"\n")
	writeFixture(t, dir, "NoMatch.smali", ".class Ly;\n\n"+keepBlock+"\n")

	var buf bytes.Buffer
	logger := zerolog.Nop()
	statusMgr := status.New(&logger)
	p, err := New(&config.RewriteSpec{
		Method:  "checkDowngrade",
		Replace: &config.Replacement{Old: "0x0", New: "0x1"},
	}, statusMgr, log.New(&buf, zerolog.Disabled))
	require.NoError(t, err)

	outcomes, err := p.Run(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	summary := statusMgr.Summarize(context.Background())
	assert.Equal(t, 2, summary.Scanned, "scanned must count every file that went through the pipeline")
	assert.Equal(t, 1, summary.Matched, "matched counts only files with matched blocks")
	assert.Equal(t, 1, summary.Rewritten)
	assert.Equal(t, 0, summary.Failed)
}

func TestSplice(t *testing.T) {
	content := "aaa BLOCK bbb BLOCK ccc"
	edits := []edit{
		{start: 4, end: 9, text: "one"},
		{start: 14, end: 19, text: "two"},
	}
	assert.Equal(t, "aaa one bbb two ccc", splice(content, edits),
		"splice must replace by recorded span, not by re-finding text")
}

func TestMatchLogging(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "Logged.smali", ".class Lx;\n\n"+downgradeBlock+"\n")

	p, buf := newTestPatcher(t, &config.RewriteSpec{
		Method:  "checkDowngrade",
		Replace: &config.Replacement{Old: "0x0", New: "0x1"},
	})

	_, err := p.Run(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "checkDowngrade", "console should report the matched signature")
	assert.Contains(t, buf.String(), "saved", "console should report the write")
}
