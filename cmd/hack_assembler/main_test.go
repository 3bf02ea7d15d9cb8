package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHackAssembler(t *testing.T) {
	// Writes 'source' to a temp '<name>.asm' file, runs the Handler against it and
	// returns the generated '.hack' binary text, failing the test on any error.
	assemble := func(t *testing.T, name, source string) []string {
		t.Helper()
		dir := t.TempDir()
		input := filepath.Join(dir, name+".asm")
		output := filepath.Join(dir, name+".hack")

		if err := os.WriteFile(input, []byte(source), 0644); err != nil {
			t.Fatalf("unable to write fixture: %s", err)
		}

		status := Handler([]string{input, output}, nil)
		if status != 0 {
			t.Fatalf("unexpected exit status code: expected 0 got: %d", status)
		}

		compiled, err := os.ReadFile(output)
		if err != nil {
			t.Fatalf("unable to read generated output: %s", err)
		}
		return strings.Split(strings.TrimRight(string(compiled), "\n"), "\n")
	}

	t.Run("Add.asm", func(t *testing.T) {
		source := "@2\nD=A\n@3\nD=D+A\n@0\nM=D\n"
		lines := assemble(t, "Add", source)
		expected := []string{
			"0000000000000010",
			"1110110000010000",
			"0000000000000011",
			"1110000010010000",
			"0000000000000000",
			"1110001100001000",
		}
		if len(lines) != len(expected) {
			t.Fatalf("expected %d lines, got %d: %v", len(expected), len(lines), lines)
		}
		for i, want := range expected {
			if lines[i] != want {
				t.Fatalf("line %d: expected %q got %q", i, want, lines[i])
			}
		}
	})

	t.Run("Max.asm", func(t *testing.T) {
		source := "@0\nD=M\n@1\nD=D-M\n@OUTPUT_FIRST\nD;JGT\n@1\nD=M\n@OUTPUT_D\n0;JMP\n(OUTPUT_FIRST)\n@0\nD=M\n(OUTPUT_D)\n@2\nM=D\n"
		lines := assemble(t, "Max", source)
		if len(lines) != 14 {
			t.Fatalf("expected 14 instructions (labels resolved, not emitted), got %d", len(lines))
		}
		for _, line := range lines {
			if len(line) != 16 {
				t.Fatalf("expected every instruction to be 16 bits wide, got %q", line)
			}
		}
	})

	t.Run("variables are allocated starting at address 16", func(t *testing.T) {
		source := "@foo\nM=1\n@bar\nM=1\n"
		lines := assemble(t, "Vars", source)
		if lines[0] != "0000000000010000" {
			t.Fatalf("expected first user variable 'foo' at address 16, got %q", lines[0])
		}
		if lines[2] != "0000000000010001" {
			t.Fatalf("expected second user variable 'bar' at address 17, got %q", lines[2])
		}
	})
}
