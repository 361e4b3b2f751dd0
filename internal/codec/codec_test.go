package codec

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

// writeNoiseJPEG создаёт JPEG с шумом - такие файлы плохо сжимаются.
func writeNoiseJPEG(t *testing.T, path string, w, h int) {
	t.Helper()

	rng := rand.New(rand.NewSource(int64(w*7919 + h)))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
	}
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 100}); err != nil {
		t.Fatal(err)
	}
}

func fileSize(t *testing.T, path string) int64 {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	return info.Size()
}

func TestShrinkFactor(t *testing.T) {
	tests := []struct {
		ratio float64
		want  float64
	}{
		{20, 0.5},
		{10.5, 0.5},
		{10, 0.6},
		{6, 0.6},
		{5, 0.7},
		{3.5, 0.7},
		{3, 0.8},
		{2.5, 0.8},
		{2, 0.9},
		{1.2, 0.9},
		{1.1, 0.95},
		{1.01, 0.95},
	}

	for _, tt := range tests {
		if got := ShrinkFactor(tt.ratio); got != tt.want {
			t.Errorf("ShrinkFactor(%v) = %v, want %v", tt.ratio, got, tt.want)
		}
	}
}

func TestScaledSize(t *testing.T) {
	tests := []struct {
		w, h         int
		scale        float64
		wantW, wantH int
	}{
		{1000, 500, 1, 1000, 500},
		{1000, 500, 0.5, 500, 250},
		{101, 33, 0.5, 51, 17},
		{10, 10, 0.001, 1, 1},
	}

	for _, tt := range tests {
		w, h := ScaledSize(tt.w, tt.h, tt.scale)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("ScaledSize(%d, %d, %v) = %dx%d, want %dx%d", tt.w, tt.h, tt.scale, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestNew_FixesInvalidParams(t *testing.T) {
	c := New(Params{InitialQuality: 500, MinQuality: -1, MaxScaleIterations: 0, ToleranceKB: -5})
	p := c.params

	if p.InitialQuality != 95 {
		t.Errorf("InitialQuality = %d, want 95", p.InitialQuality)
	}
	if p.MinQuality != 10 {
		t.Errorf("MinQuality = %d, want 10", p.MinQuality)
	}
	if p.MaxScaleIterations != 20 {
		t.Errorf("MaxScaleIterations = %d, want 20", p.MaxScaleIterations)
	}
	if p.ToleranceKB != 0 {
		t.Errorf("ToleranceKB = %v, want 0", p.ToleranceKB)
	}
}

func TestLimitBytes(t *testing.T) {
	c := New(Params{ToleranceKB: 2})
	if got := c.LimitBytes(100); got != 102*1024 {
		t.Errorf("LimitBytes(100) = %d, want %d", got, 102*1024)
	}
}

func TestCompress_ShrinksLargeImage(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in", "big.jpg")
	dst := filepath.Join(dir, "out", "nested", "big.jpg")
	writeNoiseJPEG(t, src, 800, 600)

	c := New(DefaultParams())
	res := c.Compress(context.Background(), Task{InputPath: src, OutputPath: dst, TargetSizeKB: 100})

	if res.Err != nil {
		t.Fatalf("Compress() error = %v", res.Err)
	}
	if res.Status != StatusTargetMet {
		t.Fatalf("Status = %v, want %v", res.Status, StatusTargetMet)
	}

	size := fileSize(t, dst)
	if size > c.LimitBytes(100) {
		t.Errorf("output size = %d, want <= %d", size, c.LimitBytes(100))
	}
	if size != res.OutputSize {
		t.Errorf("OutputSize = %d, file size = %d", res.OutputSize, size)
	}
	if res.Width >= 800 || res.Height >= 600 {
		t.Errorf("expected downscale, got %dx%d", res.Width, res.Height)
	}
	if res.Passes < 2 {
		t.Errorf("Passes = %d, want >= 2", res.Passes)
	}
	if res.InputSize != fileSize(t, src) {
		t.Errorf("InputSize = %d, want %d", res.InputSize, fileSize(t, src))
	}
}

func TestCompress_SmallImageSinglePass(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "small.jpg")
	dst := filepath.Join(dir, "out", "small.jpg")
	writeNoiseJPEG(t, src, 32, 32)

	res := New(DefaultParams()).Compress(context.Background(), Task{InputPath: src, OutputPath: dst, TargetSizeKB: 500})

	if res.Status != StatusTargetMet {
		t.Fatalf("Status = %v, want ok (err: %v)", res.Status, res.Err)
	}
	if res.Passes != 1 {
		t.Errorf("Passes = %d, want 1", res.Passes)
	}
	if res.Width != 32 || res.Height != 32 {
		t.Errorf("size = %dx%d, want 32x32", res.Width, res.Height)
	}
	if res.Quality != 95 {
		t.Errorf("Quality = %d, want 95", res.Quality)
	}
}

func TestCompress_UnreachableTargetIsBestEffort(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "img.jpg")
	dst := filepath.Join(dir, "out", "img.jpg")
	writeNoiseJPEG(t, src, 64, 64)

	// Заголовок JPEG сам по себе больше 100 байт.
	res := New(DefaultParams()).Compress(context.Background(), Task{InputPath: src, OutputPath: dst, TargetSizeKB: 0.1})

	if res.Status != StatusBestEffort {
		t.Fatalf("Status = %v, want best_effort (err: %v)", res.Status, res.Err)
	}
	if res.Quality != 10 {
		t.Errorf("Quality = %d, want floor 10", res.Quality)
	}
	if res.Passes != 20+85 {
		t.Errorf("Passes = %d, want %d", res.Passes, 20+85)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Errorf("best effort output not written: %v", err)
	}
}

func TestCompress_Idempotent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "img.jpg")
	writeNoiseJPEG(t, src, 400, 300)

	c := New(DefaultParams())
	first := c.Compress(context.Background(), Task{InputPath: src, OutputPath: filepath.Join(dir, "a.jpg"), TargetSizeKB: 40})
	second := c.Compress(context.Background(), Task{InputPath: src, OutputPath: filepath.Join(dir, "b.jpg"), TargetSizeKB: 40})

	if first.Err != nil || second.Err != nil {
		t.Fatalf("errors: %v, %v", first.Err, second.Err)
	}
	if first.OutputSize != second.OutputSize {
		t.Errorf("sizes differ: %d vs %d", first.OutputSize, second.OutputSize)
	}
	if first.Quality != second.Quality || first.Width != second.Width {
		t.Errorf("search not deterministic: %+v vs %+v", first, second)
	}
}

func TestCompress_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "broken.jpg")
	dst := filepath.Join(dir, "out", "broken.jpg")
	if err := os.WriteFile(src, []byte("definitely not a jpeg"), 0644); err != nil {
		t.Fatal(err)
	}

	res := New(DefaultParams()).Compress(context.Background(), Task{InputPath: src, OutputPath: dst, TargetSizeKB: 10})

	if res.Status != StatusFailed {
		t.Fatalf("Status = %v, want failed", res.Status)
	}
	if !errors.Is(res.Err, ErrDecode) {
		t.Errorf("Err = %v, want ErrDecode", res.Err)
	}
	if !res.Processed() {
		t.Error("failed result must count as processed")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Errorf("no output expected, stat err = %v", err)
	}
}

func TestCompress_InvalidTarget(t *testing.T) {
	res := New(DefaultParams()).Compress(context.Background(), Task{InputPath: "x", OutputPath: "y", TargetSizeKB: 0})
	if !errors.Is(res.Err, ErrInvalidTarget) {
		t.Errorf("Err = %v, want ErrInvalidTarget", res.Err)
	}
}

func TestCompress_Cancelled(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "img.jpg")
	dst := filepath.Join(dir, "out", "img.jpg")
	writeNoiseJPEG(t, src, 64, 64)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := New(DefaultParams()).Compress(ctx, Task{InputPath: src, OutputPath: dst, TargetSizeKB: 10})
	if res.Status != StatusCancelled {
		t.Fatalf("Status = %v, want cancelled", res.Status)
	}
	if res.Processed() {
		t.Error("cancelled result must not count as processed")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Errorf("no output expected, stat err = %v", err)
	}
}

func TestCompress_DropsAlpha(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "alpha.png")
	dst := filepath.Join(dir, "alpha.jpg")

	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 200, G: 40, B: 40, A: 0})
		}
	}
	f, err := os.Create(src)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()

	res := New(DefaultParams()).Compress(context.Background(), Task{InputPath: src, OutputPath: dst, TargetSizeKB: 50})
	if res.Status != StatusTargetMet {
		t.Fatalf("Status = %v, err = %v", res.Status, res.Err)
	}

	out, err := os.Open(dst)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()
	decoded, err := jpeg.Decode(out)
	if err != nil {
		t.Fatalf("output is not a JPEG: %v", err)
	}

	// Полностью прозрачный красный должен остаться красным, а не чёрным.
	r, g, _, _ := decoded.At(8, 8).RGBA()
	if r>>8 < 150 || g>>8 > 100 {
		t.Errorf("unexpected colour r=%d g=%d", r>>8, g>>8)
	}
}

func TestStatus_String(t *testing.T) {
	tests := []struct {
		s    Status
		want string
	}{
		{StatusTargetMet, "ok"},
		{StatusBestEffort, "best_effort"},
		{StatusFailed, "failed"},
		{StatusCancelled, "cancelled"},
		{Status(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}
