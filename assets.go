package funnelpages

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/image/draw"
)

const (
	maxAssetWidth = 1600
	jpegQuality   = 80
	maxUploadSize = 10 << 20 // 10MB
	uploadsSubdir = "uploads"
)

// processAsset decodes an image from src, resizes it to maxAssetWidth when
// wider, and encodes it as JPEG. Returns metadata and the encoded bytes.
func processAsset(src io.Reader, originalName string) (Asset, []byte, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return Asset{}, nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if w > maxAssetWidth {
		newH := h * maxAssetWidth / w
		dst := image.NewRGBA(image.Rect(0, 0, maxAssetWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
		w = maxAssetWidth
		h = newH
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return Asset{}, nil, fmt.Errorf("encode jpeg: %w", err)
	}

	filename := slugifyFilename(originalName) + ".jpg"

	return Asset{
		Filename:     filename,
		OriginalName: originalName,
		Width:        w,
		Height:       h,
		Size:         buf.Len(),
		UploadedAt:   time.Now().UTC().Format(time.RFC3339),
	}, buf.Bytes(), nil
}

// slugifyFilename converts a filename (without extension) to a URL-safe slug.
func slugifyFilename(name string) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return Slugify(base)
}

// ensureUniqueFilename appends a counter if the filename already exists in
// the uploads directory or the database.
func (a *App) ensureUniqueFilename(asset *Asset) {
	dir := filepath.Join(a.staticDir, uploadsSubdir)
	base := strings.TrimSuffix(asset.Filename, ".jpg")
	candidate := asset.Filename
	counter := 1
	for {
		if _, err := os.Stat(filepath.Join(dir, candidate)); err == nil {
			counter++
			candidate = fmt.Sprintf("%s-%d.jpg", base, counter)
			continue
		}
		existing, _ := a.Store.ListAssets()
		found := false
		for _, ex := range existing {
			if ex.Filename == candidate {
				found = true
				break
			}
		}
		if found {
			counter++
			candidate = fmt.Sprintf("%s-%d.jpg", base, counter)
			continue
		}
		break
	}
	asset.Filename = candidate
}

func (a *App) handleAssetUpload(c echo.Context) error {
	if !IsEditor(c) {
		return c.Redirect(http.StatusSeeOther, "/editor/")
	}

	file, err := c.FormFile("image")
	if err != nil {
		return c.String(http.StatusBadRequest, "No image file provided")
	}
	if file.Size > maxUploadSize {
		return c.String(http.StatusBadRequest, "File too large (max 10MB)")
	}

	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	asset, data, err := processAsset(src, file.Filename)
	if err != nil {
		return c.String(http.StatusBadRequest, "Invalid image: "+err.Error())
	}

	a.ensureUniqueFilename(&asset)

	dir := filepath.Join(a.staticDir, uploadsSubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create uploads dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, asset.Filename), data, 0o644); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	if err := a.Store.SaveAsset(asset); err != nil {
		return err
	}

	return a.renderAssetList(c)
}

func (a *App) handleAssetDelete(c echo.Context) error {
	if !IsEditor(c) {
		return c.Redirect(http.StatusSeeOther, "/editor/")
	}

	filename := c.Param("filename")
	if filename == "" {
		return c.String(http.StatusBadRequest, "Filename required")
	}

	path := filepath.Join(a.staticDir, uploadsSubdir, filename)
	_ = os.Remove(path) // ignore error if file already gone

	if err := a.Store.DeleteAsset(filename); err != nil {
		return err
	}

	return a.renderAssetList(c)
}

func (a *App) handleAssetList(c echo.Context) error {
	if !IsEditor(c) {
		return c.Redirect(http.StatusSeeOther, "/editor/")
	}
	return a.renderAssetList(c)
}

func (a *App) renderAssetList(c echo.Context) error {
	assets, err := a.Store.ListAssets()
	if err != nil {
		return err
	}
	return Render(c, a.Views.AssetList(assets, CsrfToken(c)))
}
