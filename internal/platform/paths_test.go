package platform

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveRoot(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"empty", "", "", true},
		{"relative", "data/../src", filepath.Join(wd, "src"), false},
		{"absolute", filepath.Join(wd, "a", ".", "b"), filepath.Join(wd, "a", "b"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveRoot(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ResolveRoot(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ResolveRoot(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestOverlaps(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "data")

	tests := []struct {
		a, b string
		want bool
	}{
		{root, root, true},
		{root, filepath.Join(root, "backup"), true},
		{filepath.Join(root, "backup"), root, true},
		{filepath.Join(root, "src"), filepath.Join(root, "dst"), false},
		{root, root + "2", false},
		{filepath.Join(string(filepath.Separator), "..data"), root, false},
		{filepath.Join(root, "..data"), root, true},
	}

	for _, tt := range tests {
		if got := Overlaps(tt.a, tt.b); got != tt.want {
			t.Errorf("Overlaps(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestPathError(t *testing.T) {
	err := ValidatePath("")
	if err == nil {
		t.Fatal("expected error for empty path")
	}
	if _, ok := err.(*PathError); !ok {
		t.Errorf("expected *PathError, got %T", err)
	}
}
