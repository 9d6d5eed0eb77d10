package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/solite/internal/middleware"
	"github.com/charlesng35/solite/internal/services"
	apperrors "github.com/charlesng35/solite/pkg/errors"
	"github.com/charlesng35/solite/pkg/response"
	appValidator "github.com/charlesng35/solite/pkg/validator"
)

// multipartMemory is how much of a multipart body is held in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

// PostHandler exposes the post store.
type PostHandler struct {
	posts *services.PostService
}

// NewPostHandler constructs a PostHandler.
func NewPostHandler(posts *services.PostService) (*PostHandler, error) {
	if posts == nil {
		return nil, errors.New("post handler: post service is required")
	}
	return &PostHandler{posts: posts}, nil
}

type createPostRequest struct {
	Title       string `json:"title" validate:"max=255"`
	Content     string `json:"content"`
	FileType    string `json:"file_type" validate:"max=64"`
	CodeSnippet string `json:"code_snippet"`
}

// Create publishes a post from a JSON body or a multipart form carrying a file.
func (h *PostHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	input := services.CreatePostInput{
		AuthorID:    userID,
		BearerToken: middleware.BearerToken(c),
	}

	if c.ContentType() == "multipart/form-data" {
		if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
			response.Error(c, apperrors.NewBadRequest("invalid multipart payload"))
			return
		}
		req := createPostRequest{
			Title:       c.PostForm("title"),
			Content:     c.PostForm("content"),
			FileType:    formValue(c, "file_type", "fileType"),
			CodeSnippet: formValue(c, "code_snippet", "codeSnippet"),
		}
		if err := appValidator.ValidateStruct(&req); err != nil {
			response.Error(c, apperrors.NewBadRequest(formatValidationError(err)))
			return
		}
		input.Title = req.Title
		input.Content = req.Content
		input.FileType = req.FileType
		input.CodeSnippet = req.CodeSnippet

		if header, err := c.FormFile("file"); err == nil {
			file, err := header.Open()
			if err != nil {
				response.Error(c, apperrors.NewBadRequest("unable to read uploaded file"))
				return
			}
			defer file.Close()
			input.File = &services.Upload{
				Name:        header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Size:        header.Size,
				Reader:      file,
			}
		} else if !errors.Is(err, http.ErrMissingFile) {
			response.Error(c, apperrors.NewBadRequest("invalid file upload"))
			return
		}
	} else {
		var req createPostRequest
		if !bindAndValidate(c, &req) {
			return
		}
		input.Title = req.Title
		input.Content = req.Content
		input.FileType = req.FileType
		input.CodeSnippet = req.CodeSnippet
	}

	post, err := h.posts.Create(requestContext(c), input)
	if err != nil {
		respondError(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusCreated, "Post created successfully.", post)
}

// List returns posts newest first. excludeUserId leaves out one author's posts.
func (h *PostHandler) List(c *gin.Context) {
	posts, err := h.posts.List(requestContext(c), services.ListPostsInput{
		ExcludeAuthorID: strings.TrimSpace(c.Query("excludeUserId")),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, posts)
}

// Get returns a single post.
func (h *PostHandler) Get(c *gin.Context) {
	post, err := h.posts.Get(requestContext(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, post)
}

// ListByUser returns the posts of the user in the path, newest first.
func (h *PostHandler) ListByUser(c *gin.Context) {
	posts, err := h.posts.ListByAuthor(requestContext(c), c.Param("userId"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, posts)
}

func formValue(c *gin.Context, keys ...string) string {
	for _, key := range keys {
		if value := c.PostForm(key); value != "" {
			return value
		}
	}
	return ""
}
