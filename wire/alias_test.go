package wire

import "testing"

func TestAliasTableInstallAndResolve(t *testing.T) {
	tbl := NewAliasTable()
	if tbl.Installed() {
		t.Fatal("new table reports installed")
	}
	if err := tbl.Install(map[string]int64{"ping": 1, "pong": 2}); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if !tbl.Installed() {
		t.Fatal("table not reporting installed after Install")
	}
	if alias, ok := tbl.Alias("ping"); !ok || alias != 1 {
		t.Errorf("Alias(ping): got (%d, %v), want (1, true)", alias, ok)
	}
	if name, ok := tbl.Name(2); !ok || name != "pong" {
		t.Errorf("Name(2): got (%q, %v), want (\"pong\", true)", name, ok)
	}
	if _, ok := tbl.Alias("unknown"); ok {
		t.Error("Alias(unknown) unexpectedly resolved")
	}
	if _, ok := tbl.Name(99); ok {
		t.Error("Name(99) unexpectedly resolved")
	}
}

func TestAliasTableInstallOnce(t *testing.T) {
	tbl := NewAliasTable()
	if err := tbl.Install(map[string]int64{"a": 1}); err != nil {
		t.Fatalf("first Install: %v", err)
	}
	if err := tbl.Install(map[string]int64{"b": 2}); err == nil {
		t.Fatal("second Install succeeded, want error")
	}
	if _, ok := tbl.Alias("a"); !ok {
		t.Error("original mapping was overwritten by the rejected second Install")
	}
}
