// Package blobstore stores uploaded and generated documents by name. Names
// are relative slash-separated paths such as "patient_<id>/record_<id>.pdf";
// the database keeps the name, the store keeps the bytes.
package blobstore

import (
	"context"
	"errors"
	"io"
	"mime"
	"path"
	"strings"
	"time"
)

var (
	ErrNotFound    = errors.New("blob not found")
	ErrInvalidName = errors.New("invalid blob name")
)

// Info describes a stored blob.
type Info struct {
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	SHA256      string    `json:"sha256,omitempty"`
	ModTime     time.Time `json:"mod_time"`
}

// Store is the blob storage backend.
type Store interface {
	Save(ctx context.Context, name string, data []byte) (*Info, error)
	Open(ctx context.Context, name string) (io.ReadCloser, *Info, error)
	Delete(ctx context.Context, name string) error
	Stat(ctx context.Context, name string) (*Info, error)
}

// ValidateName rejects names that could escape the store root.
func ValidateName(name string) error {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, "\\") || strings.ContainsRune(name, 0) {
		return ErrInvalidName
	}
	if path.Clean(name) != name {
		return ErrInvalidName
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." || seg == "." || seg == "" {
			return ErrInvalidName
		}
	}
	return nil
}

var contentTypes = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".txt":  "text/plain; charset=utf-8",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// ContentTypeFor guesses the media type from the name's extension.
func ContentTypeFor(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
