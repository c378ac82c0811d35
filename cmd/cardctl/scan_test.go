package main

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
)

func TestScanCommandDecodesImage(t *testing.T) {
	matrix, err := oned.NewEAN13Writer().Encode("4006381333931", gozxing.BarcodeFormat_EAN_13, 300, 100, nil)
	if err != nil {
		t.Fatalf("encode barcode: %v", err)
	}
	path := filepath.Join(t.TempDir(), "frame.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create frame: %v", err)
	}
	if err := png.Encode(f, matrix); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	f.Close()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"scan", "--image", path, "--resolve=false"})
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "4006381333931" {
		t.Fatalf("expected decoded code, got %q", got)
	}
}
