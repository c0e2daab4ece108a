package gitsync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// newSubmoduleEngine builds a submodule-mode engine whose root lives
// directly under the parent working tree, the layout the repair ladder
// operates on.
func newSubmoduleEngine(t *testing.T) (*Engine, *fakeRunner) {
	t.Helper()

	parent := t.TempDir()
	return newTestEngine(t, Config{
		Enabled:   true,
		Root:      filepath.Join(parent, "catalog"),
		Mode:      ModeSubmodule,
		ParentDir: parent,
	})
}

func TestRepair_FirstRungSucceeds(t *testing.T) {
	eng, fake := newSubmoduleEngine(t)

	res := eng.Repair(context.Background())
	if !res.OK || res.Code != CodeRepaired || res.Rung != 1 {
		t.Fatalf("Repair() = %+v, want repaired at rung 1", res)
	}

	if !fake.called("submodule sync -- catalog") {
		t.Errorf("first rung did not sync, commands = %v", fake.commands())
	}
	if fake.called("submodule deinit") {
		t.Error("later rungs ran after the first succeeded")
	}
}

func TestRepair_EscalatesToSecondRung(t *testing.T) {
	eng, fake := newSubmoduleEngine(t)
	fake.stub("submodule sync", "", errors.New("no url found"))

	res := eng.Repair(context.Background())
	if !res.OK || res.Code != CodeRepaired || res.Rung != 2 {
		t.Fatalf("Repair() = %+v, want repaired at rung 2", res)
	}

	if !fake.called("submodule deinit --force -- catalog") {
		t.Errorf("second rung did not deinit, commands = %v", fake.commands())
	}
	if fake.called("submodule add") {
		t.Error("replacement rung ran after the second succeeded")
	}
}

func TestRepair_ThirdRungReplacesAndRestores(t *testing.T) {
	eng, fake := newSubmoduleEngine(t)
	fake.stub("submodule sync", "", errors.New("no url found"))
	fake.stub("submodule deinit", "", errors.New("deinit refused"))

	// Local edits the fresh checkout will not contain.
	local := filepath.Join(eng.root, "moog", "moog_sub37.json")
	if err := os.MkdirAll(filepath.Dir(local), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(local, []byte(`{"device_info":{"name":"Sub 37"}}`), 0o640); err != nil {
		t.Fatal(err)
	}

	res := eng.Repair(context.Background())
	if !res.OK || res.Code != CodeRepaired || res.Rung != 3 {
		t.Fatalf("Repair() = %+v, want repaired at rung 3", res)
	}

	if !fake.called("submodule add --force " + DefaultRemoteURL + " catalog") {
		t.Errorf("replacement rung did not re-register the submodule, commands = %v", fake.commands())
	}
	got, err := os.ReadFile(local)
	if err != nil {
		t.Fatalf("preserved file was not restored: %v", err)
	}
	if !strings.Contains(string(got), "Sub 37") {
		t.Errorf("restored content = %q, want the preserved document", got)
	}
}

func TestRepair_OverridesMismatchedSubmoduleURL(t *testing.T) {
	eng, fake := newSubmoduleEngine(t)
	fake.stub("submodule sync", "", errors.New("no url found"))
	fake.stub("submodule deinit", "", errors.New("deinit refused"))
	fake.stub("config --get", "https://evil.example/hijacked.git", nil)

	res := eng.Repair(context.Background())
	if !res.OK || res.Rung != 3 {
		t.Fatalf("Repair() = %+v, want repaired at rung 3", res)
	}

	if !fake.called("submodule add --force " + DefaultRemoteURL + " catalog") {
		t.Errorf("mismatched URL was not overridden, commands = %v", fake.commands())
	}
	for _, cmd := range fake.commands() {
		if strings.Contains(cmd, "submodule add") && strings.Contains(cmd, "evil.example") {
			t.Errorf("replacement used the tampered URL: %q", cmd)
		}
	}
}

func TestRepair_AllRungsExhausted(t *testing.T) {
	eng, fake := newSubmoduleEngine(t)
	fake.stub("submodule sync", "", errors.New("no url found"))
	fake.stub("submodule deinit", "", errors.New("deinit refused"))
	fake.stub("submodule add", "", errors.New("remote unreachable"))

	res := eng.Repair(context.Background())
	if res.OK || res.Code != CodeError {
		t.Fatalf("Repair() = %+v, want degraded error result", res)
	}
	if !strings.Contains(res.Message, "all repair rungs exhausted") {
		t.Errorf("message = %q, want exhaustion reported", res.Message)
	}
	if !strings.Contains(res.Message, "remote unreachable") {
		t.Errorf("message = %q, want the last error carried", res.Message)
	}
}

func TestRepair_CloneModePreservesLocalFiles(t *testing.T) {
	eng, _ := newTestEngine(t, Config{Enabled: true})

	// A broken clone: git bookkeeping plus local documents.
	if err := os.MkdirAll(filepath.Join(eng.root, ".git"), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(eng.root, ".git", "config"), []byte("[core]\n"), 0o640); err != nil {
		t.Fatal(err)
	}
	local := filepath.Join(eng.root, "korg", "korg_minilogue.json")
	if err := os.MkdirAll(filepath.Dir(local), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(local, []byte(`{"device_info":{"name":"Minilogue"}}`), 0o640); err != nil {
		t.Fatal(err)
	}

	res := eng.Repair(context.Background())
	if !res.OK || res.Code != CodeRepaired || res.Rung != 1 {
		t.Fatalf("Repair() = %+v, want repaired at rung 1", res)
	}

	if _, err := os.Stat(local); err != nil {
		t.Errorf("local document was not preserved across replacement: %v", err)
	}
	if _, err := os.Stat(filepath.Join(eng.root, ".git")); !os.IsNotExist(err) {
		t.Error("git bookkeeping should not survive via the preservation copy")
	}
}

func TestRestoreMissing_FreshCheckoutWins(t *testing.T) {
	preserved := t.TempDir()
	root := t.TempDir()

	if err := os.WriteFile(filepath.Join(preserved, "shared.json"), []byte("stale"), 0o640); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(preserved, "only_local.json"), []byte("local"), 0o640); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "shared.json"), []byte("fresh"), 0o640); err != nil {
		t.Fatal(err)
	}

	if err := restoreMissing(preserved, root); err != nil {
		t.Fatalf("restoreMissing() error = %v", err)
	}

	got, err := os.ReadFile(filepath.Join(root, "shared.json"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "fresh" {
		t.Errorf("shared.json = %q, want the checkout copy kept", got)
	}
	if _, err := os.Stat(filepath.Join(root, "only_local.json")); err != nil {
		t.Errorf("missing file was not restored: %v", err)
	}
}
