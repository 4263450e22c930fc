package media

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
)

func writeTestImage(t *testing.T, path string, w, h int, fill color.NRGBA) {
	t.Helper()
	img := imaging.New(w, h, fill)
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("не удалось записать тестовое изображение: %v", err)
	}
}

func TestComposeProducesSquareJPEG(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	writeTestImage(t, src, 1600, 900, color.NRGBA{R: 200, G: 200, B: 200, A: 255})

	p := NewProcessor("")
	data, err := p.Compose(src)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	decoded, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("результат должен быть валидным JPEG: %v", err)
	}
	bounds := decoded.Bounds()
	if bounds.Dx() != 1080 || bounds.Dy() != 1080 {
		t.Fatalf("ожидали кадр 1080x1080, получили %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestComposeDarkensImage(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	writeTestImage(t, src, 1080, 1080, color.NRGBA{R: 200, G: 200, B: 200, A: 255})

	p := NewProcessor("")
	data, err := p.Compose(src)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	decoded, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("результат должен быть валидным JPEG: %v", err)
	}
	r, _, _, _ := decoded.At(540, 540).RGBA()
	if r>>8 >= 200 {
		t.Fatalf("центр кадра должен стать темнее исходника, яркость %d", r>>8)
	}
}

func TestComposeOverlaysLogo(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	logo := filepath.Join(dir, "logo.png")
	writeTestImage(t, src, 1080, 1080, color.NRGBA{R: 10, G: 10, B: 10, A: 255})
	writeTestImage(t, logo, 400, 400, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	p := NewProcessor(logo)
	data, err := p.Compose(src)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	decoded, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("результат должен быть валидным JPEG: %v", err)
	}

	// Логотип занимает 15% ширины и прижат к правому нижнему углу с отступом 25px.
	logoSide := int(1080 * 0.15)
	cx := 1080 - 25 - logoSide/2
	cy := 1080 - 25 - logoSide/2
	r, _, _, _ := decoded.At(cx, cy).RGBA()
	if r>>8 < 200 {
		t.Fatalf("в правом нижнем углу должен быть светлый логотип, яркость %d", r>>8)
	}
	tlR, _, _, _ := decoded.At(50, 50).RGBA()
	if tlR>>8 > 60 {
		t.Fatalf("левый верхний угол должен остаться тёмным, яркость %d", tlR>>8)
	}
}

func TestComposeMissingLogoIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	writeTestImage(t, src, 500, 500, color.NRGBA{R: 80, G: 80, B: 80, A: 255})

	p := NewProcessor(filepath.Join(dir, "нет-такого-файла.png"))
	if _, err := p.Compose(src); err != nil {
		t.Fatalf("отсутствие логотипа не должно блокировать сборку: %v", err)
	}
}

func TestComposeRejectsBrokenSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	if err := os.WriteFile(src, []byte("это не изображение"), 0o644); err != nil {
		t.Fatalf("не удалось записать файл: %v", err)
	}

	p := NewProcessor("")
	if _, err := p.Compose(src); err == nil {
		t.Fatalf("битый исходник должен давать ошибку")
	}
}

func TestFetchSavesImage(t *testing.T) {
	payload := makeJPEG(t, 100, 100)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "raw.jpg")
	d := NewDownloader(5 * time.Second)
	if err := d.Fetch(context.Background(), server.URL+"/photo.jpg", dest); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	saved, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("файл должен существовать: %v", err)
	}
	if !bytes.Equal(saved, payload) {
		t.Fatalf("файл должен совпадать с ответом сервера")
	}
}

func TestFetchRejectsBadURL(t *testing.T) {
	d := NewDownloader(time.Second)
	if err := d.Fetch(context.Background(), "картинка.jpg", filepath.Join(t.TempDir(), "raw.jpg")); err == nil {
		t.Fatalf("относительная ссылка должна отклоняться")
	}
}

func TestFetchRejectsNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	d := NewDownloader(time.Second)
	if err := d.Fetch(context.Background(), server.URL+"/gone.jpg", filepath.Join(t.TempDir(), "raw.jpg")); err == nil {
		t.Fatalf("статус 404 должен давать ошибку")
	}
}

func makeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("не удалось закодировать JPEG: %v", err)
	}
	return buf.Bytes()
}
