package main

import (
	"os"
	"testing"
)

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	want := map[string]bool{"serve": false, "snapshot": false, "mint": false, "list": false, "buy": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %s", name)
		}
	}
	if f := root.PersistentFlags().Lookup("config"); f == nil || f.DefValue != "configs/config.yaml" {
		t.Errorf("unexpected --config flag: %+v", f)
	}
}

func TestMintRejectsInvalidForm(t *testing.T) {
	tmp, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.WriteString("contract:\n  package_id: \"0xabc\"\n"); err != nil {
		t.Fatal(err)
	}
	if err := tmp.Close(); err != nil {
		t.Fatal(err)
	}

	root := newRootCmd()
	root.SetArgs([]string{"mint", "--config", tmp.Name(), "--model", "1", "--speed", "100"})
	if err := root.Execute(); err == nil {
		t.Error("expected mint without a name to fail")
	}
}

func TestMissingConfig(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"snapshot", "--config", "/nonexistent/config.yaml"})
	if err := root.Execute(); err == nil {
		t.Error("expected missing config to fail")
	}
}
