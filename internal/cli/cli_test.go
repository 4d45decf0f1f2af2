package cli

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ChannelBoard/internal/gensim"
	"ChannelBoard/internal/net"
)

// A 4x1 sketch: white paper, a gray scribble on x=0 and black ink on x=2.
const sketchManifest = `
name: sketch
width: 4
height: 1
layers:
  - name: paper
    fill: "#ffffff"
  - name: rough
    label: scribble
    fill: "#808080"
    rect: [0, 0, 1, 1]
  - name: ink
    label: lineart
    fill: "#000000"
    rect: [2, 0, 3, 1]
`

func writeManifest(t *testing.T) (dir, path string) {
	t.Helper()
	dir = t.TempDir()
	path = filepath.Join(dir, "sketch.yaml")
	if err := os.WriteFile(path, []byte(sketchManifest), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir, path
}

func execute(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(append([]string{"--config", filepath.Join(dir, "absent.yaml"), "--workdir", dir}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func readPNG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func alphaAt(img image.Image, x int) uint8 {
	return color.NRGBAModel.Convert(img.At(x, 0)).(color.NRGBA).A
}

func TestRootCmdRegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, sub := range NewRootCmd().Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"inspect", "export", "generate", "transfer"} {
		if !names[want] {
			t.Errorf("subcommand %q not registered", want)
		}
	}
}

func TestInspect(t *testing.T) {
	dir, manifest := writeManifest(t)
	out, err := execute(t, dir, "inspect", manifest)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"sketch 4x1", "rough (paintlayer) [scribble]", "ink (paintlayer) [lineart]"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestExportKeepsOnlySelectedLabels(t *testing.T) {
	dir, manifest := writeManifest(t)
	dst := filepath.Join(dir, "lineart.png")
	if _, err := execute(t, dir, "export", manifest, "-l", "lineart", "--alpha", "-o", dst); err != nil {
		t.Fatal(err)
	}
	img := readPNG(t, dst)
	if alphaAt(img, 2) != 255 {
		t.Error("ink missing from export")
	}
	if alphaAt(img, 0) != 0 || alphaAt(img, 1) != 0 {
		t.Error("unlabelled or scribble pixels exported")
	}

	if _, err := execute(t, dir, "export", manifest, "-l", "purple", "-o", dst); err == nil {
		t.Error("expected an unknown label error")
	}
	if _, err := execute(t, dir, "export", manifest, "-o", dst); err == nil {
		t.Error("expected a missing --labels error")
	}
}

func TestGenerateLineartAgainstService(t *testing.T) {
	ts := httptest.NewServer(net.NewServer(gensim.New()))
	defer ts.Close()
	addr := strings.TrimPrefix(ts.URL, "http://")

	dir, manifest := writeManifest(t)
	overlays := filepath.Join(dir, "out")
	render := filepath.Join(dir, "render.png")
	sheet := filepath.Join(dir, "sheet.pdf")
	out, err := execute(t, dir, "generate", "lineart", manifest,
		"--service", addr, "--transfer", "--overlays", overlays, "-o", render, "--sheet", sheet)
	if err != nil {
		t.Fatalf("%v\n%s", err, out)
	}

	img := readPNG(t, filepath.Join(overlays, "lineart.png"))
	if alphaAt(img, 0) != 255 || alphaAt(img, 2) != 255 {
		t.Error("scribble or ink missing from generated lineart")
	}
	if alphaAt(img, 1) != 0 || alphaAt(img, 3) != 0 {
		t.Error("generated lineart inked blank pixels")
	}
	if !strings.Contains(out, "lineart: masked ink") {
		t.Errorf("transfer not reported:\n%s", out)
	}
	if _, err := os.Stat(render); err != nil {
		t.Error(err)
	}
	b, err := os.ReadFile(sheet)
	if err != nil || !bytes.HasPrefix(b, []byte("%PDF-")) {
		t.Errorf("sheet: %v", err)
	}
}

func TestGenerateErrors(t *testing.T) {
	dir, manifest := writeManifest(t)
	if _, err := execute(t, dir, "generate", "colors", manifest); err == nil {
		t.Error("expected unknown generator error")
	}
	if _, err := execute(t, dir, "generate", "lineart", manifest, "--service", "127.0.0.1:1"); err == nil {
		t.Error("expected an unreachable service error")
	}
}

func TestTransferWithOverlayFile(t *testing.T) {
	dir, manifest := writeManifest(t)
	ov := image.NewNRGBA(image.Rect(0, 0, 4, 1))
	ov.SetNRGBA(2, 0, color.NRGBA{A: 255})
	ovPath := filepath.Join(dir, "ov.png")
	f, err := os.Create(ovPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, ov); err != nil {
		t.Fatal(err)
	}
	f.Close()

	out, err := execute(t, dir, "transfer", manifest, "-c", "lineart", "--overlay", ovPath)
	if err != nil {
		t.Fatalf("%v\n%s", err, out)
	}
	if !strings.Contains(out, "lineart: masked ink") {
		t.Errorf("output:\n%s", out)
	}

	out, err = execute(t, dir, "transfer", manifest, "-c", "shadow", "--overlay", ovPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "no shadow layers") {
		t.Errorf("output:\n%s", out)
	}

	if _, err := execute(t, dir, "transfer", manifest, "-c", "basecolor", "--overlay", ovPath); err == nil {
		t.Error("expected unknown channel error")
	}
}
