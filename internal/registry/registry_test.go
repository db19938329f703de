package registry

import "testing"

func TestRegisterAndLookupFormat(t *testing.T) {
	reset()
	err := RegisterFormat(SourceFormat{
		Name:     "stex",
		FileExts: []string{".tex", ".ftml"},
	})
	if err != nil {
		t.Fatalf("RegisterFormat: %v", err)
	}
	f, ok := FormatByName("stex")
	if !ok || f.Name != "stex" {
		t.Fatalf("FormatByName(stex) = %v, %v", f, ok)
	}
	f2, ok := FormatByExt(".ftml")
	if !ok || f2.Name != "stex" {
		t.Fatalf("FormatByExt(.ftml) = %v, %v", f2, ok)
	}
	if _, ok := FormatByExt(".unknown"); ok {
		t.Fatalf("expected no format for unknown extension")
	}
}

func TestRegisterDuplicateFormatFails(t *testing.T) {
	reset()
	if err := RegisterFormat(SourceFormat{Name: "stex", FileExts: []string{".tex"}}); err != nil {
		t.Fatalf("first RegisterFormat: %v", err)
	}
	if err := RegisterFormat(SourceFormat{Name: "stex", FileExts: []string{".tex"}}); err == nil {
		t.Fatalf("expected error on duplicate format registration")
	}
}

func TestFreezeRejectsFurtherRegistration(t *testing.T) {
	reset()
	Freeze()
	if err := RegisterFormat(SourceFormat{Name: "stex", FileExts: []string{".tex"}}); err == nil {
		t.Fatalf("expected error registering after Freeze")
	}
	if err := RegisterTarget(BuildTarget{Name: "check"}); err == nil {
		t.Fatalf("expected error registering target after Freeze")
	}
	if err := RegisterArtifactType(BuildArtifactType{Name: "html"}); err == nil {
		t.Fatalf("expected error registering artifact type after Freeze")
	}
	reset()
}

func TestRegisterAndLookupTarget(t *testing.T) {
	reset()
	if err := RegisterTarget(BuildTarget{Name: "check", Description: "type-checks a module"}); err != nil {
		t.Fatalf("RegisterTarget: %v", err)
	}
	tg, ok := TargetByName("check")
	if !ok || tg.Description != "type-checks a module" {
		t.Fatalf("TargetByName(check) = %v, %v", tg, ok)
	}
}
