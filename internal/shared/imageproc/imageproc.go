// Package imageproc normalizes uploaded gallery images and renders thumbnails.
package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/disintegration/imaging"
)

// ErrNotImage 内容无法按图片解码（如 svg/pdf 设计稿），调用方应按原样存储
var ErrNotImage = errors.New("content is not a decodable image")

// Options 处理参数
type Options struct {
	MaxEdge       int // 超过该边长则等比缩小，0 表示不缩放
	ThumbnailEdge int // 缩略图最大边长，0 表示不生成
	JPEGQuality   int
}

// Result 处理结果
type Result struct {
	Data        []byte
	Thumbnail   []byte
	Extension   string
	ContentType string
	Width       int
	Height      int
}

// Process 解码、纠正方向、限制尺寸并重新编码；同时生成缩略图
func Process(r io.Reader, ext string, opts Options) (*Result, error) {
	format, err := formatFor(ext)
	if err != nil {
		return nil, err
	}

	src, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}

	img := src
	if opts.MaxEdge > 0 && exceeds(img.Bounds(), opts.MaxEdge) {
		img = imaging.Fit(img, opts.MaxEdge, opts.MaxEdge, imaging.Lanczos)
	}

	quality := opts.JPEGQuality
	if quality <= 0 {
		quality = 85
	}

	data, err := encode(img, format, quality)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Data:        data,
		Extension:   extensionFor(format),
		ContentType: contentTypeFor(format),
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
	}

	if opts.ThumbnailEdge > 0 {
		thumb := imaging.Fit(img, opts.ThumbnailEdge, opts.ThumbnailEdge, imaging.Box)
		res.Thumbnail, err = encode(thumb, format, quality)
		if err != nil {
			return nil, err
		}
	}

	return res, nil
}

// ContentTypeForExtension 根据扩展名推断 Content-Type，未知返回 application/octet-stream
func ContentTypeForExtension(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	case "svg":
		return "image/svg+xml"
	case "pdf":
		return "application/pdf"
	}
	return "application/octet-stream"
}

func formatFor(ext string) (imaging.Format, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		return imaging.JPEG, nil
	}
	f, err := imaging.FormatFromExtension(ext)
	if err != nil {
		return 0, fmt.Errorf("%w: unsupported extension %q", ErrNotImage, ext)
	}
	return f, nil
}

func exceeds(b image.Rectangle, edge int) bool {
	return b.Dx() > edge || b.Dy() > edge
}

func encode(img image.Image, format imaging.Format, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("编码图片失败: %w", err)
	}
	return buf.Bytes(), nil
}

func extensionFor(f imaging.Format) string {
	switch f {
	case imaging.PNG:
		return "png"
	case imaging.GIF:
		return "gif"
	case imaging.BMP:
		return "bmp"
	case imaging.TIFF:
		return "tiff"
	}
	return "jpg"
}

func contentTypeFor(f imaging.Format) string {
	switch f {
	case imaging.PNG:
		return "image/png"
	case imaging.GIF:
		return "image/gif"
	case imaging.BMP:
		return "image/bmp"
	case imaging.TIFF:
		return "image/tiff"
	}
	return "image/jpeg"
}
