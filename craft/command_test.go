package craft

import (
	"path/filepath"
	"testing"
)

func TestCommand(t *testing.T) {
	cmd := Command{"export", "config.toml", "format=octree", "terrain", "out.bin", "extra"}
	if cmd.Name() != "export" {
		t.Errorf("bad name %q", cmd.Name())
	}
	if v, found := cmd.Parameter(KeyFormat); !found || v != "octree" {
		t.Errorf("expected format=octree, got %q %t", v, found)
	}
	if _, found := cmd.Parameter("missing"); found {
		t.Error("unexpected parameter")
	}
	var config, volume, file string
	overflow := cmd.CommandArgs(&config, &volume, &file)
	if config != "config.toml" || volume != "terrain" || file != "out.bin" {
		t.Errorf("bad args %q %q %q", config, volume, file)
	}
	if len(overflow) != 1 || overflow[0] != "extra" {
		t.Errorf("bad overflow %v", overflow)
	}
	if cmd.String() != "export config.toml format=octree terrain out.bin extra" {
		t.Errorf("bad string %q", cmd.String())
	}

	var a string
	Command{"about"}.CommandArgs(&a)
	if a != "" {
		t.Errorf("expected empty target, got %q", a)
	}
}

func TestConvertToAbsolute(t *testing.T) {
	dir := t.TempDir()
	got, err := ConvertToAbsolute("data/store", dir)
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join(dir, "data", "store") {
		t.Errorf("unexpected path %q", got)
	}
	for _, p := range []string{"", "/abs/path", "gs://bucket/prefix", "mem://"} {
		if got, _ := ConvertToAbsolute(p, dir); got != p {
			t.Errorf("%q should be unchanged, got %q", p, got)
		}
	}
	if !FileExists(dir) || FileExists(filepath.Join(dir, "nope")) {
		t.Error("FileExists mismatch")
	}
}

func TestCompatibleSnapshot(t *testing.T) {
	if !CompatibleSnapshot(SnapshotVersion) {
		t.Error("current snapshot version should be compatible")
	}
	next := SnapshotVersion
	next.Major++
	if CompatibleSnapshot(next) {
		t.Error("next major version should not be compatible")
	}
}
