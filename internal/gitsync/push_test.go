package gitsync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestPush_CleanTreeShortCircuits(t *testing.T) {
	eng, fake := newTestEngine(t, Config{Enabled: true})

	res := eng.Push(context.Background())
	if !res.OK || res.Code != CodeClean {
		t.Fatalf("Push() = %+v, want OK with code %q", res, CodeClean)
	}

	if !fake.called("add -A") {
		t.Error("push did not stage the working tree")
	}
	if fake.called("commit") || fake.called("push") {
		t.Errorf("clean tree triggered commit or push, commands = %v", fake.commands())
	}
}

func TestPush_CommitsAndPushes(t *testing.T) {
	eng, fake := newTestEngine(t, Config{Enabled: true, CommitMessage: "nightly catalog sync"})
	fake.stub("status --porcelain", "A  moog/moog_sub37.json", nil)

	res := eng.Push(context.Background())
	if !res.OK || res.Code != CodePushed {
		t.Fatalf("Push() = %+v, want OK with code %q", res, CodePushed)
	}

	want := []string{
		"add -A",
		"status --porcelain",
		"commit -m nightly catalog sync",
		"push origin main",
	}
	if got := fake.commands(); !reflect.DeepEqual(got, want) {
		t.Errorf("commands = %v, want %v", got, want)
	}
}

func TestPush_UsesConfiguredAuthorIdentity(t *testing.T) {
	eng, fake := newTestEngine(t, Config{
		Enabled:     true,
		AuthorName:  "patchbay",
		AuthorEmail: "sync@patchbay.local",
	})
	fake.stub("status --porcelain", " M korg/korg_minilogue.json", nil)

	res := eng.Push(context.Background())
	if !res.OK {
		t.Fatalf("Push() = %+v, want success", res)
	}

	found := false
	for _, cmd := range fake.commands() {
		if strings.Contains(cmd, "commit") {
			found = true
			if !strings.Contains(cmd, "-c user.name=patchbay") || !strings.Contains(cmd, "-c user.email=sync@patchbay.local") {
				t.Errorf("commit command missing author identity: %q", cmd)
			}
		}
	}
	if !found {
		t.Errorf("no commit command recorded, commands = %v", fake.commands())
	}
}

func TestPush_SubmoduleStagesParentPointer(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "catalog")
	if err := os.MkdirAll(root, 0o750); err != nil {
		t.Fatal(err)
	}

	eng, fake := newTestEngine(t, Config{
		Enabled:   true,
		Root:      root,
		Mode:      ModeSubmodule,
		ParentDir: parent,
	})
	fake.stub("status --porcelain", " M moog/moog_sub37.json", nil)

	res := eng.Push(context.Background())
	if !res.OK || res.Code != CodePushed {
		t.Fatalf("Push() = %+v, want OK with code %q", res, CodePushed)
	}

	staged := false
	for _, c := range fake.calls {
		if c.args == "add catalog" && c.dir == parent {
			staged = true
		}
	}
	if !staged {
		t.Errorf("submodule pointer was not staged in the parent repository, calls = %+v", fake.calls)
	}
}

func TestPush_Failure(t *testing.T) {
	eng, fake := newTestEngine(t, Config{Enabled: true})
	fake.stub("status --porcelain", " M moog/moog_sub37.json", nil)
	fake.stub("push", "", errors.New("remote rejected"))

	res := eng.Push(context.Background())
	if res.OK || res.Code != CodeError {
		t.Fatalf("Push() = %+v, want degraded error result", res)
	}
	if !strings.Contains(res.Message, "pushing catalog changes") {
		t.Errorf("message = %q, want the failed stage named", res.Message)
	}
}
