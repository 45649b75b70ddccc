package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func assemble(t *testing.T, asmSource string) []string {
	t.Helper()

	dir := t.TempDir()
	input := filepath.Join(dir, "Prog.asm")
	output := filepath.Join(dir, "Prog.hack")

	if err := os.WriteFile(input, []byte(asmSource), 0644); err != nil {
		t.Fatalf("unable to write fixture: %s", err)
	}

	if status := Handler([]string{input, output}, nil); status != 0 {
		t.Fatalf("unexpected exit status code: expected 0 got %d", status)
	}

	content, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("unable to read compiled output: %s", err)
	}

	return strings.Split(strings.TrimRight(string(content), "\n"), "\n")
}

func TestHackAssemblerAdd(t *testing.T) {
	// 2 + 3 stored into R0, the classic 'Add.asm' fixture from project 06.
	source := strings.Join([]string{
		"@2",
		"D=A",
		"@3",
		"D=D+A",
		"@0",
		"M=D",
	}, "\n")

	lines := assemble(t, source)
	want := []string{
		"0000000000000010", "1110110000010000",
		"0000000000000011", "1110000010010000",
		"0000000000000000", "1110001100001000",
	}

	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d: %v", len(want), len(lines), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d: expected %q got %q", i, want[i], lines[i])
		}
	}
}

func TestHackAssemblerLabelsResolveToROMAddress(t *testing.T) {
	// '(LOOP)' precedes the very first real instruction, so it should resolve to address 0.
	source := strings.Join([]string{
		"(LOOP)",
		"@LOOP",
		"0;JMP",
	}, "\n")

	lines := assemble(t, source)
	want := []string{"0000000000000000", "1110101010000111"}

	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d: %v", len(want), len(lines), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d: expected %q got %q", i, want[i], lines[i])
		}
	}
}

func TestHackAssemblerUndefinedSymbolsBecomeVariables(t *testing.T) {
	source := strings.Join([]string{
		"@foo",
		"M=1",
		"@bar",
		"M=1",
		"@foo",
		"M=0",
	}, "\n")

	lines := assemble(t, source)

	// 'foo' is the first new symbol seen, so it gets address 16; referencing it again later
	// must resolve to that same address rather than allocating a second variable.
	if lines[0] != lines[4] {
		t.Fatalf("expected repeated reference to 'foo' to resolve to the same address, got %q vs %q", lines[0], lines[4])
	}
	if lines[0] == lines[2] {
		t.Fatalf("expected distinct variables 'foo' and 'bar' to resolve to different addresses")
	}
}

func TestHackAssemblerMissingArguments(t *testing.T) {
	if status := Handler([]string{}, nil); status == 0 {
		t.Fatalf("expected panic recovery or non-zero status for missing arguments")
	}
}
