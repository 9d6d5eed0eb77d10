package handlers_test

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/solite/internal/handlers/testutil"
)

type postPayload struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Content        string `json:"content"`
	UserID         string `json:"user_id"`
	FileURL        string `json:"file_url"`
	FileName       string `json:"file_name"`
	FileType       string `json:"file_type"`
	CodeSnippetURL string `json:"code_snippet_url"`
}

type notificationPayload struct {
	ID      string   `json:"id"`
	PostID  string   `json:"post_id"`
	Message string   `json:"message"`
	SeenBy  []string `json:"seen_by"`
	IsSeen  bool     `json:"is_seen"`
}

func TestCreatePostJSONTriggersNotification(t *testing.T) {
	env := testutil.NewEnv(t)
	author := env.SignUp("Secret123!")
	reader := env.SignUp("Secret123!")

	w := env.Request(http.MethodPost, "/api/posts", map[string]string{
		"title":   "Channels",
		"content": "Buffered or not?",
	}, author.Token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	resp := testutil.DecodeResponse(t, w)
	require.Equal(t, "Post created successfully.", resp.Message)
	var post postPayload
	testutil.DecodeInto(t, resp.Data, &post)
	require.Equal(t, "Channels", post.Title)
	require.Equal(t, author.ID, post.UserID)

	require.Len(t, env.Fanout.Jobs, 1)
	require.Equal(t, author.Token, env.Fanout.Jobs[0].BearerToken)

	w = env.Request(http.MethodGet, "/api/notifications", nil, reader.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var items []notificationPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &items)
	require.Len(t, items, 1)
	require.Equal(t, post.ID, items[0].PostID)
	require.Equal(t, `A new post titled "Channels" has been created.`, items[0].Message)
	require.Equal(t, []string{author.ID}, items[0].SeenBy)
	require.False(t, items[0].IsSeen)
}

func TestCreatePostFanoutFailureStillCreates(t *testing.T) {
	env := testutil.NewEnv(t)
	author := env.SignUp("Secret123!")
	env.Fanout.Err = errors.New("notification service down")

	w := env.Request(http.MethodPost, "/api/posts", map[string]string{"content": "hello"}, author.Token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var post postPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &post)
	require.Equal(t, "Untitled", post.Title)

	w = env.Request(http.MethodGet, "/api/posts/"+post.ID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestCreatePostMultipart(t *testing.T) {
	env := testutil.NewEnv(t)
	author := env.SignUp("Secret123!")

	w := env.Multipart("/api/posts", map[string]string{
		"title":       "Stack trace",
		"fileType":    "log",
		"codeSnippet": "panic(err)",
	}, "../trace.log", []byte("goroutine 1 [running]"), author.Token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var post postPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &post)
	require.Equal(t, "trace.log", post.FileName)
	require.Equal(t, "log", post.FileType)
	require.Contains(t, post.FileURL, "http://objects.test/solite/")
	require.Contains(t, post.CodeSnippetURL, ".txt")
	require.Len(t, env.Attachments.Objects, 2)
}

func TestCreatePostValidation(t *testing.T) {
	env := testutil.NewEnv(t)
	author := env.SignUp("Secret123!")

	w := env.Request(http.MethodPost, "/api/posts", map[string]string{"title": "empty"}, author.Token)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Content, file, or code snippet is required to create a post.", testutil.DecodeResponse(t, w).Error.Message)

	w = env.Request(http.MethodPost, "/api/posts", map[string]string{"content": "x"}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Empty(t, env.Fanout.Jobs)
}

func TestCreatePostMultipartRejectsLongTitle(t *testing.T) {
	env := testutil.NewEnv(t)
	author := env.SignUp("Secret123!")
	title := strings.Repeat("t", 1200)

	w := env.Multipart("/api/posts", map[string]string{
		"title":   title,
		"content": "body",
	}, "trace.log", []byte("goroutine 1 [running]"), author.Token)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	require.Equal(t, "title must be at most 255 characters", testutil.DecodeResponse(t, w).Error.Message)
	require.Empty(t, env.Attachments.Objects)
	require.Empty(t, env.Fanout.Jobs)

	w = env.Multipart("/api/posts", map[string]string{
		"title":    "ok",
		"content":  "body",
		"fileType": strings.Repeat("x", 65),
	}, "", nil, author.Token)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = env.Request(http.MethodGet, "/api/posts", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var posts []postPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &posts)
	require.Empty(t, posts)
}

func TestListPosts(t *testing.T) {
	env := testutil.NewEnv(t)
	alice := env.SignUp("Secret123!")
	bob := env.SignUp("Secret123!")

	for _, p := range []struct {
		token string
		title string
	}{{alice.Token, "a1"}, {bob.Token, "b1"}, {alice.Token, "a2"}} {
		w := env.Request(http.MethodPost, "/api/posts", map[string]string{"title": p.title, "content": "c"}, p.token)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	var posts []postPayload
	w := env.Request(http.MethodGet, "/api/posts", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &posts)
	require.Len(t, posts, 3)

	w = env.Request(http.MethodGet, "/api/posts?excludeUserId="+alice.ID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &posts)
	require.Len(t, posts, 1)
	require.Equal(t, "b1", posts[0].Title)

	w = env.Request(http.MethodGet, "/api/posts/user/"+alice.ID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &posts)
	require.Len(t, posts, 2)
	for _, p := range posts {
		require.Equal(t, alice.ID, p.UserID)
	}

	w = env.Request(http.MethodGet, "/api/posts/does-not-exist", nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)
}
