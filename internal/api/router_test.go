package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/favorite-notify/internal/api/handler"
	"github.com/d60-Lab/favorite-notify/internal/cache"
	"github.com/d60-Lab/favorite-notify/internal/fanout"
	"github.com/d60-Lab/favorite-notify/internal/notify"
	"github.com/d60-Lab/favorite-notify/internal/queue"
	"github.com/d60-Lab/favorite-notify/internal/repository"
	"github.com/d60-Lab/favorite-notify/internal/service"
	"github.com/d60-Lab/favorite-notify/internal/testutil"
	"github.com/d60-Lab/favorite-notify/pkg/middleware"
)

const opToken = "ops-secret"

type app struct {
	router *gin.Engine
	relay  *service.OutboxRelay
	pool   *queue.Pool
	q      *queue.MemoryQueue
}

func newApp(t *testing.T) *app {
	t.Helper()
	require.NoError(t, RegisterValidators())
	env := testutil.NewEnv(t)

	users := repository.NewUserRepository(env.DB)
	posts := repository.NewPostRepository(env.DB)
	favorites := repository.NewFavoriteRepository(env.DB)
	notes := repository.NewNotificationRepository(env.DB)
	outbox := repository.NewOutboxRepository(env.DB)

	store := fanout.NewRedisBatchStore(env.Redis, 0)
	q := queue.NewMemoryQueue(128)
	coord := fanout.NewCoordinator(store, q)
	worker := fanout.NewWorker(store, posts, cache.NewUserDirectory(users, env.Redis, time.Minute), notify.NewDatabaseChannel(notes))
	listener := fanout.NewListener(posts, fanout.NewResolver(favorites, 0), coord, 0)

	pool := queue.NewPool(q, queue.PoolConfig{Workers: 1})
	pool.Handle(fanout.TaskKind, worker.HandleTask)
	pool.OnResult(coord.RecordResult)

	issuer := middleware.NewTokenIssuer("test", time.Hour)
	h := handler.New(
		service.NewUserService(users, issuer),
		service.NewPostService(env.DB, posts),
		service.NewFavoriteService(favorites, users, posts),
		notes,
		coord,
	)
	return &app{
		router: NewRouter(RouterConfig{Mode: gin.TestMode, OperatorToken: opToken}, h, issuer),
		relay:  service.NewOutboxRelay(outbox, listener, service.RelayConfig{}),
		pool:   pool,
		q:      q,
	}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (a *app) do(t *testing.T, method, path, token string, body any, headers ...string) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w.Code, env
}

func (a *app) signup(t *testing.T, name string) (uint64, string) {
	t.Helper()
	code, _ := a.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{"name": name, "email": name + "@example.com", "password": "password123"})
	require.Equal(t, http.StatusCreated, code)
	code, env := a.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": name + "@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, code)
	var out struct {
		Token string `json:"token"`
		User  struct {
			ID uint64 `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out.User.ID, out.Token
}

func TestAPI_PublishNotifiesFollowers(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()

	authorID, authorTok := a.signup(t, "ann")
	_, bobTok := a.signup(t, "bob")

	code, env := a.do(t, http.MethodPost, "/api/v1/favorites", authorTok, gin.H{"type": "user", "id": authorID})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "You cannot favorite yourself.", env.Message)

	code, _ = a.do(t, http.MethodPost, "/api/v1/favorites", bobTok, gin.H{"type": "user", "id": authorID})
	require.Equal(t, http.StatusCreated, code)
	code, env = a.do(t, http.MethodPost, "/api/v1/favorites", bobTok, gin.H{"type": "user", "id": authorID})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "This item is already in your favorites.", env.Message)

	code, env = a.do(t, http.MethodPost, "/api/v1/posts", authorTok, gin.H{"title": "Hello", "body": "World"})
	require.Equal(t, http.StatusCreated, code)
	var post struct {
		ID uint64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &post))

	n, err := a.relay.ProcessOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, 1, a.q.Len())
	require.NoError(t, a.pool.RunOnce(ctx))

	code, env = a.do(t, http.MethodGet, "/api/v1/notifications", bobTok, nil)
	require.Equal(t, http.StatusOK, code)
	var page struct {
		List []struct {
			PostID  uint64 `json:"post_id"`
			Subject string `json:"subject"`
		} `json:"list"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.List, 1)
	assert.Equal(t, post.ID, page.List[0].PostID)
	assert.Equal(t, "ann has created a new post", page.List[0].Subject)

	code, env = a.do(t, http.MethodGet, "/api/v1/notifications", authorTok, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Empty(t, page.List)
}

func TestAPI_Validation(t *testing.T) {
	a := newApp(t)
	_, tok := a.signup(t, "carl")

	code, _ := a.do(t, http.MethodPost, "/api/v1/posts", tok, gin.H{"title": "   ", "body": "x"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = a.do(t, http.MethodPost, "/api/v1/posts", "", gin.H{"title": "t", "body": "x"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = a.do(t, http.MethodPost, "/api/v1/favorites", tok, gin.H{"type": "comment", "id": 1})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = a.do(t, http.MethodPost, "/api/v1/favorites", tok, gin.H{"type": "post", "id": 4040})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = a.do(t, http.MethodDelete, "/api/v1/favorites/post/abc", tok, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAPI_OperatorBatchEndpoints(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()
	authorID, authorTok := a.signup(t, "dora")
	_, fanTok := a.signup(t, "eve")
	code, _ := a.do(t, http.MethodPost, "/api/v1/favorites", fanTok, gin.H{"type": "user", "id": authorID})
	require.Equal(t, http.StatusCreated, code)
	code, _ = a.do(t, http.MethodPost, "/api/v1/posts", authorTok, gin.H{"title": "t", "body": "b"})
	require.Equal(t, http.StatusCreated, code)
	_, err := a.relay.ProcessOnce(ctx)
	require.NoError(t, err)

	task, err := a.q.Dequeue(ctx)
	require.NoError(t, err)
	path := "/api/v1/ops/batches/" + task.BatchID

	code, _ = a.do(t, http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env := a.do(t, http.MethodGet, path, "", nil, middleware.OperatorTokenHeader, opToken)
	require.Equal(t, http.StatusOK, code)
	var b fanout.Batch
	require.NoError(t, json.Unmarshal(env.Data, &b))
	assert.EqualValues(t, 1, b.PendingJobs)
	assert.Equal(t, "Notify followers of post #"+strconv.FormatUint(b.PostID, 10), b.Name)

	code, env = a.do(t, http.MethodPost, path+"/cancel", "", nil, middleware.OperatorTokenHeader, opToken)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &b))
	assert.NotNil(t, b.CancelledAt)

	code, _ = a.do(t, http.MethodGet, "/api/v1/ops/batches/nope", "", nil, middleware.OperatorTokenHeader, opToken)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAPI_DeletedPostNotifiesNobody(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()
	authorID, authorTok := a.signup(t, "fay")
	_, fanTok := a.signup(t, "gus")
	code, _ := a.do(t, http.MethodPost, "/api/v1/favorites", fanTok, gin.H{"type": "user", "id": authorID})
	require.Equal(t, http.StatusCreated, code)

	code, env := a.do(t, http.MethodPost, "/api/v1/posts", authorTok, gin.H{"title": "oops", "body": "b"})
	require.Equal(t, http.StatusCreated, code)
	var post struct {
		ID uint64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &post))
	path := "/api/v1/posts/" + strconv.FormatUint(post.ID, 10)

	code, _ = a.do(t, http.MethodDelete, path, fanTok, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = a.do(t, http.MethodDelete, path, "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = a.do(t, http.MethodDelete, path, authorTok, nil)
	require.Equal(t, http.StatusNoContent, code)
	code, _ = a.do(t, http.MethodDelete, path, authorTok, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = a.do(t, http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusNotFound, code)

	// 删除发生在 fan-out 之前：批次照常派发，但 worker 跳过已删除的帖子
	_, err := a.relay.ProcessOnce(ctx)
	require.NoError(t, err)
	for a.q.Len() > 0 {
		require.NoError(t, a.pool.RunOnce(ctx))
	}

	code, env = a.do(t, http.MethodGet, "/api/v1/notifications", fanTok, nil)
	require.Equal(t, http.StatusOK, code)
	var page struct {
		List []json.RawMessage `json:"list"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Empty(t, page.List)
}

func TestAPI_ListPostsAndFavorites(t *testing.T) {
	a := newApp(t)
	hanID, hanTok := a.signup(t, "han")
	_, ivyTok := a.signup(t, "ivy")

	var ids []uint64
	for _, title := range []string{"first", "second"} {
		code, env := a.do(t, http.MethodPost, "/api/v1/posts", hanTok, gin.H{"title": title, "body": "b"})
		require.Equal(t, http.StatusCreated, code)
		var p struct {
			ID uint64 `json:"id"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &p))
		ids = append(ids, p.ID)
	}

	code, env := a.do(t, http.MethodGet, "/api/v1/posts", "", nil)
	require.Equal(t, http.StatusOK, code)
	var posts struct {
		List []struct {
			ID     uint64 `json:"id"`
			Author struct {
				Name string `json:"name"`
			} `json:"author"`
		} `json:"list"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &posts))
	require.Len(t, posts.List, 2)
	assert.Equal(t, "han", posts.List[0].Author.Name)
	assert.Equal(t, []uint64{ids[1], ids[0]}, []uint64{posts.List[0].ID, posts.List[1].ID}, "newest first")

	code, _ = a.do(t, http.MethodPost, "/api/v1/favorites", ivyTok, gin.H{"type": "post", "id": ids[0]})
	require.Equal(t, http.StatusCreated, code)
	code, _ = a.do(t, http.MethodPost, "/api/v1/favorites", ivyTok, gin.H{"type": "user", "id": hanID})
	require.Equal(t, http.StatusCreated, code)

	code, env = a.do(t, http.MethodGet, "/api/v1/favorites", ivyTok, nil)
	require.Equal(t, http.StatusOK, code)
	var favs struct {
		Posts []struct {
			ID    uint64 `json:"id"`
			Title string `json:"title"`
		} `json:"posts"`
		Users []struct {
			ID   uint64 `json:"id"`
			Name string `json:"name"`
		} `json:"users"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &favs))
	require.Len(t, favs.Posts, 1)
	assert.Equal(t, ids[0], favs.Posts[0].ID)
	assert.Equal(t, "first", favs.Posts[0].Title)
	require.Len(t, favs.Users, 1)
	assert.Equal(t, hanID, favs.Users[0].ID)
	assert.Equal(t, "han", favs.Users[0].Name)
}
