package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/wplc/livechat/internal/modules/model"
	"github.com/wplc/livechat/internal/pkg/utils/mime"
	"github.com/wplc/livechat/internal/pkg/utils/path"
	"github.com/wplc/livechat/internal/telemetry"
	"go.uber.org/zap"
)

// DefaultMaxUploadBytes is the largest accepted attachment.
const DefaultMaxUploadBytes int64 = 10 * 1024 * 1024

var imagePayloadPattern = regexp.MustCompile(`(?i)<\?php|eval\(|base64_decode`)

// ObjectStore is the blob backend behind uploads. *blob.S3Deps satisfies it.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType, downloadName string, body io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
}

type UploadInput struct {
	SessionID  string
	SenderType model.SenderType
	SenderID   *uint64
	Header     *multipart.FileHeader
}

// FileService validates uploads and writes them to object storage. The returned File is not
// persisted yet; the caller stores it together with its message.
type FileService interface {
	Store(ctx context.Context, in UploadInput) (*model.File, error)
	// Discard removes an uploaded object whose database rows could not be written.
	Discard(ctx context.Context, file *model.File)
}

type fileService struct {
	store    ObjectStore
	maxBytes int64
	log      *zap.Logger
}

// NewFileService builds the file store. store may be nil when object storage is not configured;
// every upload then fails with ErrFileStoreDisabled.
func NewFileService(store ObjectStore, maxBytes int64, log *zap.Logger) FileService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &fileService{store: store, maxBytes: maxBytes, log: log}
}

// validatedUpload is an upload that passed every check.
type validatedUpload struct {
	content  []byte
	name     string
	mimeType string
	ext      string
}

func (s *fileService) validate(ctx context.Context, fh *multipart.FileHeader) (*validatedUpload, error) {
	if fh == nil || fh.Filename == "" {
		return nil, ErrNoFile
	}
	if fh.Size > s.maxBytes {
		telemetry.RecordUploadRejected(ctx, "size")
		return nil, ErrFileTooLarge
	}
	if mime.IsExecutableName(fh.Filename) {
		telemetry.RecordUploadRejected(ctx, "executable")
		return nil, ErrUnsafeFile
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	content, err := io.ReadAll(io.LimitReader(f, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(content)) > s.maxBytes {
		telemetry.RecordUploadRejected(ctx, "size")
		return nil, ErrFileTooLarge
	}
	if len(content) == 0 {
		return nil, ErrNoFile
	}

	mimeType, ext, ok := mime.AllowedType(content, fh.Filename)
	if !ok {
		telemetry.RecordUploadRejected(ctx, "type")
		return nil, fmt.Errorf("%w%s", ErrFileTypeNotAllowed, strings.Join(mime.AllowedExtensions(), ", "))
	}
	if strings.HasPrefix(mimeType, "image/") && imagePayloadPattern.Match(content) {
		telemetry.RecordUploadRejected(ctx, "payload")
		return nil, ErrUnsafeFile
	}

	return &validatedUpload{
		content:  content,
		name:     fh.Filename,
		mimeType: mimeType,
		ext:      ext,
	}, nil
}

// objectKey is chat/<session>/chat_<uuid>_<sanitized name>.
func objectKey(sessionID, fileName string) string {
	return fmt.Sprintf("chat/%s/chat_%s_%s",
		path.SanitizeFileName(sessionID),
		strings.ReplaceAll(uuid.NewString(), "-", ""),
		path.SanitizeFileName(fileName))
}

func (s *fileService) Store(ctx context.Context, in UploadInput) (*model.File, error) {
	if in.SessionID == "" {
		return nil, ErrMissingSessionID
	}
	up, err := s.validate(ctx, in.Header)
	if err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, ErrFileStoreDisabled
	}

	key := objectKey(in.SessionID, up.name)
	url, err := s.store.Upload(ctx, key, up.mimeType, up.name, bytes.NewReader(up.content))
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	s.log.Info("file uploaded",
		zap.String("session_id", in.SessionID),
		zap.String("key", key),
		zap.String("mime", up.mimeType),
		zap.Int("size", len(up.content)))

	return &model.File{
		SessionID:  in.SessionID,
		FileName:   up.name,
		StorageKey: key,
		FileURL:    url,
		FileType:   up.ext,
		FileSize:   int64(len(up.content)),
		MimeType:   up.mimeType,
		SenderType: in.SenderType,
		SenderID:   in.SenderID,
	}, nil
}

func (s *fileService) Discard(ctx context.Context, file *model.File) {
	if s.store == nil || file == nil || file.StorageKey == "" {
		return
	}
	if err := s.store.Delete(ctx, file.StorageKey); err != nil {
		s.log.Warn("delete orphaned upload", zap.String("key", file.StorageKey), zap.Error(err))
	}
}
