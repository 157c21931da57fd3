package upload

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/mfortier/go-groupchat/internal/types"
)

// MaxUploadSize is the fixed ceiling for a single media object.
const MaxUploadSize = 50 << 20 // 50 MiB

var (
	ErrUnsupportedType = errors.New("unsupported media type")
	ErrTooLarge        = errors.New("file exceeds maximum upload size")
)

// Upload is the stable reference handed back for a stored media object.
// The broker only ever sees references, never raw bytes.
type Upload struct {
	Reference        string            `json:"url"`
	Kind             types.MessageKind `json:"type"`
	OriginalFilename string            `json:"original_filename"`
}

// Gateway stores media side-band on local disk and serves it under
// urlPrefix. It is independent of the broker.
type Gateway struct {
	dir       string
	urlPrefix string
	maxSize   int64
	log       *log.Logger
}

func NewGateway(dir, urlPrefix string, logger *log.Logger) (*Gateway, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}

	return &Gateway{
		dir:       dir,
		urlPrefix: strings.TrimSuffix(urlPrefix, "/"),
		maxSize:   MaxUploadSize,
		log:       logger,
	}, nil
}

// classifyMime resolves the message kind from the declared MIME type
// prefix. Anything outside image/* and video/* is unsupported.
func classifyMime(declaredMime string) (types.MessageKind, error) {
	switch {
	case strings.HasPrefix(declaredMime, "image/"):
		return types.MessageKindImage, nil
	case strings.HasPrefix(declaredMime, "video/"):
		return types.MessageKindVideo, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, declaredMime)
	}
}

// Store validates and persists one media object, returning its reference.
func (g *Gateway) Store(file io.Reader, declaredMime, originalName string) (Upload, error) {
	kind, err := classifyMime(declaredMime)
	if err != nil {
		return Upload{}, err
	}

	name := uuid.NewString() + strings.ToLower(filepath.Ext(originalName))
	dst, err := os.Create(filepath.Join(g.dir, name))
	if err != nil {
		return Upload{}, fmt.Errorf("create media file: %w", err)
	}
	defer dst.Close()

	// read one byte past the ceiling so an oversized stream is detected
	n, err := io.Copy(dst, io.LimitReader(file, g.maxSize+1))
	if err != nil {
		os.Remove(dst.Name())
		return Upload{}, fmt.Errorf("write media file: %w", err)
	}
	if n > g.maxSize {
		os.Remove(dst.Name())
		return Upload{}, ErrTooLarge
	}

	g.log.Printf("stored %s object %q (%d bytes)", kind, name, n)

	return Upload{
		Reference:        path.Join(g.urlPrefix, name),
		Kind:             kind,
		OriginalFilename: originalName,
	}, nil
}

// Dir returns the directory media objects are stored in.
func (g *Gateway) Dir() string {
	return g.dir
}
