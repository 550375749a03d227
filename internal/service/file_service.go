package service

import (
	"context"
	"fmt"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/bus"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/domain"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/metrics"
)

// FileService stores room attachments. Payloads are capped at 5MB.
type FileService struct {
	rooms domain.RoomRepository
	files domain.FileRepository
	bus   *bus.Bus
}

func NewFileService(rooms domain.RoomRepository, files domain.FileRepository, b *bus.Bus) *FileService {
	return &FileService{rooms: rooms, files: files, bus: b}
}

type FileUploadInput struct {
	Sender      string
	Filename    string
	ContentType *string
	Data        []byte
}

// Upload stores an attachment in a room and announces it on the bus.
func (s *FileService) Upload(ctx context.Context, roomID string, in FileUploadInput) (*domain.File, error) {
	if err := validateSender(in.Sender); err != nil {
		return nil, err
	}
	if in.Filename == "" {
		return nil, fmt.Errorf("filename must not be empty: %w", domain.ErrInvalidInput)
	}
	if len(in.Data) == 0 {
		return nil, fmt.Errorf("data must not be empty: %w", domain.ErrInvalidInput)
	}
	if len(in.Data) > maxFileBytes {
		return nil, fmt.Errorf("file exceeds %d bytes: %w", maxFileBytes, domain.ErrTooLarge)
	}
	if _, err := s.rooms.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}

	f := &domain.File{
		RoomID:      roomID,
		Sender:      in.Sender,
		Filename:    in.Filename,
		ContentType: normalizeOpt(in.ContentType),
		Data:        in.Data,
	}
	if err := s.files.InsertFile(ctx, f); err != nil {
		return nil, err
	}

	metrics.FilesUploaded.Inc()
	// The event carries metadata only; Data is never serialized.
	publish(s.bus, domain.NewFileUploaded(f))
	return f, nil
}

// Info fetches file metadata without the payload.
func (s *FileService) Info(ctx context.Context, fileID string) (*domain.File, error) {
	return s.files.GetFileInfo(ctx, fileID)
}

// Download fetches the file including its raw bytes.
func (s *FileService) Download(ctx context.Context, fileID string) (*domain.File, error) {
	return s.files.GetFileData(ctx, fileID)
}

// List returns a room's files, newest first, without payloads.
func (s *FileService) List(ctx context.Context, roomID string) ([]*domain.File, error) {
	if _, err := s.rooms.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return s.files.ListFiles(ctx, roomID)
}

// Delete removes a file. The caller must be the uploader, unless the request
// was authorized with the room admin key.
func (s *FileService) Delete(ctx context.Context, roomID, fileID, caller string, isAdmin bool) error {
	f, err := s.files.GetFileInfo(ctx, fileID)
	if err != nil {
		return err
	}
	if f.RoomID != roomID {
		return domain.ErrNotFound
	}
	if !isAdmin {
		if caller == "" {
			return fmt.Errorf("sender required: %w", domain.ErrInvalidInput)
		}
		if f.Sender != caller {
			return fmt.Errorf("only the uploader or an admin may delete: %w", domain.ErrForbidden)
		}
	}
	return s.files.DeleteFile(ctx, fileID)
}
