package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/solite/internal/fanout"
	"github.com/charlesng35/solite/internal/models"
	apperrors "github.com/charlesng35/solite/pkg/errors"
	"github.com/charlesng35/solite/pkg/logger"
	"github.com/charlesng35/solite/pkg/metrics"
)

const (
	defaultPostTitle = "Untitled"
	maxTitleLength   = 255
	maxFilenameBytes = 255
)

var (
	// ErrPostNotFound indicates the requested post does not exist.
	ErrPostNotFound = apperrors.New("POST_NOT_FOUND", "Post not found", http.StatusNotFound)
	// ErrEmptyPost is returned when a post has no content, file or code snippet.
	ErrEmptyPost = apperrors.NewBadRequest("Content, file, or code snippet is required to create a post.")
	// ErrTitleTooLong is returned when a title would not fit the posts table or the fan-out message.
	ErrTitleTooLong = apperrors.NewBadRequest("title must be at most 255 characters")
	// ErrAttachmentsDisabled is returned when a post carries a file but no object store is configured.
	ErrAttachmentsDisabled = apperrors.NewBadRequest("File uploads are not enabled on this server.")
)

// AttachmentStore persists post attachments and returns their URLs.
type AttachmentStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

// FanoutSubmitter accepts post-creation notification jobs.
type FanoutSubmitter interface {
	Submit(job fanout.Job) error
}

// Upload is a file attached to a new post.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// CreatePostInput carries the fields accepted when publishing a post.
type CreatePostInput struct {
	AuthorID    string
	Title       string
	Content     string
	FileType    string
	CodeSnippet string
	File        *Upload
	// BearerToken is forwarded to the notification service.
	BearerToken string
}

// ListPostsInput filters the post listing.
type ListPostsInput struct {
	ExcludeAuthorID string
}

// PostService stores posts and triggers the notification fan-out after each create.
type PostService struct {
	db          *gorm.DB
	attachments AttachmentStore
	fanout      FanoutSubmitter
	now         func() time.Time
	log         *zap.Logger
}

// PostOption customises the PostService.
type PostOption func(*PostService)

// WithAttachmentStore enables file and code snippet uploads.
func WithAttachmentStore(store AttachmentStore) PostOption {
	return func(s *PostService) {
		s.attachments = store
	}
}

// WithFanout enables notification delivery after each post.
func WithFanout(submitter FanoutSubmitter) PostOption {
	return func(s *PostService) {
		s.fanout = submitter
	}
}

// WithPostClock overrides the clock used for attachment keys.
func WithPostClock(now func() time.Time) PostOption {
	return func(s *PostService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewPostService constructs a PostService.
func NewPostService(db *gorm.DB, opts ...PostOption) (*PostService, error) {
	if db == nil {
		return nil, errors.New("post service: db is required")
	}
	svc := &PostService{
		db:  db,
		now: time.Now,
		log: logger.WithModule("posts"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Create uploads any attachments, stores the post, then submits the notification
// fan-out. Fan-out failures are logged and never fail the create.
func (s *PostService) Create(ctx context.Context, input CreatePostInput) (*models.Post, error) {
	ctx = ensureContext(ctx)

	authorID := strings.TrimSpace(input.AuthorID)
	if authorID == "" {
		return nil, apperrors.ErrUnauthorized
	}
	hasFile := input.File != nil && input.File.Reader != nil
	if strings.TrimSpace(input.Content) == "" && !hasFile && strings.TrimSpace(input.CodeSnippet) == "" {
		return nil, ErrEmptyPost
	}
	title := defaultIfEmpty(strings.TrimSpace(input.Title), defaultPostTitle)
	if utf8.RuneCountInString(title) > maxTitleLength {
		return nil, ErrTitleTooLong
	}
	if (hasFile || input.CodeSnippet != "") && s.attachments == nil {
		return nil, ErrAttachmentsDisabled
	}

	post := &models.Post{
		Title:    title,
		Content:  input.Content,
		AuthorID: authorID,
		FileType: strings.TrimSpace(input.FileType),
	}

	if hasFile {
		name := SanitizeFilename(input.File.Name)
		key := attachmentKey(name, s.now())
		url, err := s.attachments.Put(ctx, key, input.File.Reader, input.File.Size, input.File.ContentType)
		if err != nil {
			return nil, apperrors.ErrUpstreamUnavailable.WithInternal(fmt.Errorf("post service: upload file: %w", err))
		}
		post.FileURL = url
		post.FileName = name
	}

	if input.CodeSnippet != "" {
		snippet := strings.NewReader(input.CodeSnippet)
		url, err := s.attachments.Put(ctx, uuid.NewString()+".txt", snippet, snippet.Size(), "text/plain")
		if err != nil {
			return nil, apperrors.ErrUpstreamUnavailable.WithInternal(fmt.Errorf("post service: upload code snippet: %w", err))
		}
		post.CodeSnippetURL = url
	}

	if err := s.db.WithContext(ctx).Create(post).Error; err != nil {
		return nil, fmt.Errorf("post service: create post: %w", err)
	}
	metrics.PostsCreated.Inc()

	s.notify(post, input.BearerToken)
	return post, nil
}

func (s *PostService) notify(post *models.Post, bearerToken string) {
	if s.fanout == nil {
		return
	}
	err := s.fanout.Submit(fanout.Job{
		PostID:      post.ID,
		Message:     NotificationMessage(post.Title),
		BearerToken: bearerToken,
	})
	if err != nil {
		metrics.FanoutFailures.Inc()
		s.log.Warn("notification fan-out not submitted", zap.String("post_id", post.ID), zap.Error(err))
	}
}

// List returns posts newest first, optionally leaving out one author's posts.
func (s *PostService) List(ctx context.Context, input ListPostsInput) ([]models.Post, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.Post{})
	if exclude := strings.TrimSpace(input.ExcludeAuthorID); exclude != "" {
		query = query.Where("author_id <> ?", exclude)
	}

	var posts []models.Post
	if err := query.Order("created_at DESC").Order("id DESC").Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("post service: list posts: %w", err)
	}
	return posts, nil
}

// ListByAuthor returns the author's posts newest first.
func (s *PostService) ListByAuthor(ctx context.Context, authorID string) ([]models.Post, error) {
	ctx = ensureContext(ctx)

	var posts []models.Post
	if err := s.db.WithContext(ctx).
		Where("author_id = ?", strings.TrimSpace(authorID)).
		Order("created_at DESC").
		Order("id DESC").
		Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("post service: list author posts: %w", err)
	}
	return posts, nil
}

// Get loads a post by identifier.
func (s *PostService) Get(ctx context.Context, id string) (*models.Post, error) {
	ctx = ensureContext(ctx)

	var post models.Post
	err := s.db.WithContext(ctx).First(&post, "id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("post service: get post: %w", err)
	}
	return &post, nil
}

// NotificationMessage builds the fan-out message for a post title.
func NotificationMessage(title string) string {
	return `A new post titled "` + title + `" has been created.`
}

// SanitizeFilename strips directory components and characters that are unsafe in
// file names on common filesystems.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base("/" + name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20 || r == 0x7f:
			return -1
		case strings.ContainsRune(`/?<>:*|"`, r):
			return -1
		}
		return r
	}, name)
	name = strings.TrimRight(strings.TrimSpace(name), ". ")
	if name == "" || name == "." || name == ".." {
		return "file"
	}
	if len(name) > maxFilenameBytes {
		ext := filepath.Ext(name)
		if len(ext) > 32 {
			ext = ""
		}
		cut := maxFilenameBytes - len(ext)
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut] + ext
	}
	return name
}

func attachmentKey(name string, now time.Time) string {
	return fmt.Sprintf("%s-%s%s", uuid.NewString(), now.Format("150405"), filepath.Ext(name))
}
