package catalog

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"plain name", "Moog", "Moog", nil},
		{"spaces become underscores", "Sub 37", "Sub_37", nil},
		{"surrounding whitespace trimmed", "  Sub 37  ", "Sub_37", nil},
		{"separators stripped", "My Synth/1", "My_Synth1", nil},
		{"backslash separators stripped", `My\Synth`, "MySynth", nil},
		{"unsafe characters stripped", "Lead #1 (fat!)", "Lead_1_fat", nil},
		{"dots preserved inside", "v2.1", "v2.1", nil},
		{"leading dot trimmed", ".config", "config", nil},
		{"traversal rejected", "../../etc", "", ErrUnsafeName},
		{"windows traversal rejected", `..\..\etc`, "", ErrUnsafeName},
		{"current directory element rejected", "./setup", "", ErrUnsafeName},
		{"empty name", "", "", ErrInvalidName},
		{"whitespace only", "   ", "", ErrInvalidName},
		{"over length limit", strings.Repeat("x", maxNameLength+1), "", ErrInvalidName},
		{"nothing survives", "!!!", "", ErrInvalidName},
		{"bare dots", "...", "", ErrInvalidName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeName(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("SanitizeName(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("SanitizeName(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("SanitizeName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestJoinUnder(t *testing.T) {
	root := t.TempDir()

	t.Run("joins inside the root", func(t *testing.T) {
		got, err := joinUnder(root, "moog", "sub_37")
		if err != nil {
			t.Fatalf("joinUnder() error = %v", err)
		}
		if want := filepath.Join(root, "moog", "sub_37"); got != want {
			t.Errorf("joinUnder() = %q, want %q", got, want)
		}
	})

	t.Run("rejects escapes", func(t *testing.T) {
		if _, err := joinUnder(root, "..", "etc"); !errors.Is(err, ErrUnsafeName) {
			t.Errorf("joinUnder() error = %v, want ErrUnsafeName", err)
		}
		if _, err := joinUnder(root, ".."); !errors.Is(err, ErrUnsafeName) {
			t.Errorf("joinUnder() error = %v, want ErrUnsafeName", err)
		}
		if _, err := joinUnder(root, "moog", "..", "..", "etc"); !errors.Is(err, ErrUnsafeName) {
			t.Errorf("joinUnder() error = %v, want ErrUnsafeName", err)
		}
	})

	t.Run("cleans rooted parts into the root", func(t *testing.T) {
		got, err := joinUnder(root, "/moog")
		if err != nil {
			t.Fatalf("joinUnder() error = %v", err)
		}
		if want := filepath.Join(root, "moog"); got != want {
			t.Errorf("joinUnder() = %q, want %q", got, want)
		}
	})
}

func TestGeneratePresetID(t *testing.T) {
	tests := []struct {
		name    string
		ordinal int
		want    string
	}{
		{"Lead 1", 0, "lead_1_0"},
		{"  Warm Pad  ", 3, "warm_pad_3"},
		{"Solo!", 1, "solo_1"},
		{"###", 2, "preset_2"},
		{"Init Patch", 127, "init_patch_127"},
	}

	for _, tt := range tests {
		if got := GeneratePresetID(tt.name, tt.ordinal); got != tt.want {
			t.Errorf("GeneratePresetID(%q, %d) = %q, want %q", tt.name, tt.ordinal, got, tt.want)
		}
	}
}

func TestDocumentFileName(t *testing.T) {
	tests := []struct {
		manufacturer string
		device       string
		want         string
	}{
		{"Moog", "Sub_37", "moog_sub_37.json"},
		{"KORG", "Minilogue", "korg_minilogue.json"},
		{"roland", "jp8000", "roland_jp8000.json"},
	}

	for _, tt := range tests {
		if got := documentFileName(tt.manufacturer, tt.device); got != tt.want {
			t.Errorf("documentFileName(%q, %q) = %q, want %q", tt.manufacturer, tt.device, got, tt.want)
		}
	}
}
