package usecase

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/probe365/advocacia-ia-sub000/internal/core/domain"
)

var extensionMedia = map[string]domain.MediaType{
	".pdf":  domain.MediaPDF,
	".png":  domain.MediaImage,
	".jpg":  domain.MediaImage,
	".jpeg": domain.MediaImage,
	".gif":  domain.MediaImage,
	".bmp":  domain.MediaImage,
	".tif":  domain.MediaImage,
	".tiff": domain.MediaImage,
	".webp": domain.MediaImage,
	".txt":  domain.MediaText,
	".md":   domain.MediaText,
	".text": domain.MediaText,
	".wav":  domain.MediaAudio,
	".mp3":  domain.MediaAudio,
	".flac": domain.MediaAudio,
	".ogg":  domain.MediaAudio,
	".opus": domain.MediaAudio,
	".m4a":  domain.MediaAudio,
	".aac":  domain.MediaAudio,
	".mp4":  domain.MediaVideo,
	".mov":  domain.MediaVideo,
	".avi":  domain.MediaVideo,
	".mkv":  domain.MediaVideo,
	".webm": domain.MediaVideo,
	".m4v":  domain.MediaVideo,
}

// DetectMedia routes an upload by extension and falls back to content
// sniffing. The returned suffix includes the leading dot.
func DetectMedia(filename string, data []byte) (domain.MediaType, string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if media, ok := extensionMedia[ext]; ok {
		return media, ext, nil
	}

	mt := mimetype.Detect(data)
	for m := mt; m != nil; m = m.Parent() {
		if media, ok := mimeMedia(m.String()); ok {
			return media, mt.Extension(), nil
		}
	}
	return "", "", domain.WrapError(domain.ErrInvalidInput, "detect media", fmt.Errorf("unsupported file type %q (%s)", filename, mt.String()))
}

func mimeMedia(mime string) (domain.MediaType, bool) {
	switch {
	case strings.HasPrefix(mime, "application/pdf"):
		return domain.MediaPDF, true
	case strings.HasPrefix(mime, "image/"):
		return domain.MediaImage, true
	case strings.HasPrefix(mime, "audio/"):
		return domain.MediaAudio, true
	case strings.HasPrefix(mime, "video/"):
		return domain.MediaVideo, true
	case strings.HasPrefix(mime, "text/plain"):
		return domain.MediaText, true
	}
	return "", false
}

// SafeUploadName reduces a client-supplied filename to its base name.
func SafeUploadName(filename string) (string, error) {
	name := filepath.Base(strings.ReplaceAll(strings.TrimSpace(filename), `\`, "/"))
	if name == "" || name == "." || name == "/" || name == ".." {
		return "", domain.WrapError(domain.ErrInvalidInput, "upload name", fmt.Errorf("invalid filename %q", filename))
	}
	return name, nil
}
