package gcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"scheduler-webhook/internal/common/errors"
	"scheduler-webhook/internal/credentials"
	"scheduler-webhook/internal/scheduler"
)

type fakeScheduler struct {
	mu            sync.Mutex
	jobs          map[string]map[string]interface{}
	locationCalls int
	lastMask      string
	failWith      int
}

func newFakeScheduler(t *testing.T) (*fakeScheduler, *httptest.Server) {
	f := &fakeScheduler{jobs: map[string]map[string]interface{}{}}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func apiError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]interface{}{
		"error": map[string]interface{}{"code": code, "message": msg},
	})
}

func (f *fakeScheduler) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failWith != 0 {
		apiError(w, f.failWith, "injected")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/v1/")
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/locations"):
		f.locationCalls++
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"locations": []map[string]string{
				{"name": "projects/p/locations/europe-west1", "locationId": "europe-west1"},
				{"name": "projects/p/locations/us-central1", "locationId": "us-central1"},
			},
		})
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/jobs"):
		var job map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&job)
		name, _ := job["name"].(string)
		if _, exists := f.jobs[name]; exists {
			apiError(w, http.StatusConflict, "already exists")
			return
		}
		job["state"] = "ENABLED"
		f.jobs[name] = job
		writeJSON(w, http.StatusOK, job)
	case r.Method == http.MethodGet:
		job, ok := f.jobs[path]
		if !ok {
			apiError(w, http.StatusNotFound, "job not found")
			return
		}
		writeJSON(w, http.StatusOK, job)
	case r.Method == http.MethodPatch:
		if _, ok := f.jobs[path]; !ok {
			apiError(w, http.StatusNotFound, "job not found")
			return
		}
		f.lastMask = r.URL.Query().Get("updateMask")
		var job map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&job)
		job["state"] = "ENABLED"
		f.jobs[path] = job
		writeJSON(w, http.StatusOK, job)
	case r.Method == http.MethodDelete:
		if _, ok := f.jobs[path]; !ok {
			apiError(w, http.StatusNotFound, "job not found")
			return
		}
		delete(f.jobs, path)
		writeJSON(w, http.StatusOK, map[string]interface{}{})
	default:
		apiError(w, http.StatusBadRequest, "unexpected "+r.Method+" "+r.URL.Path)
	}
}

func newTestClient(t *testing.T, srv *httptest.Server, cfg Config) *Client {
	t.Helper()
	c, err := New(context.Background(), "p", cfg,
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return c
}

func testJob() *scheduler.Job {
	return &scheduler.Job{
		Name:       "projects/p/locations/europe-west1/jobs/t1",
		Schedule:   "*/5 * * * *",
		TimeZone:   "Europe/Berlin",
		TargetURI:  "https://hooks.example.com/hook",
		HTTPMethod: "POST",
		Body:       []byte(`{"name":"Scheduled job executed via Google Cloud Scheduler"}`),
	}
}

func TestClient_ResolveLocation(t *testing.T) {
	fake, srv := newFakeScheduler(t)
	ctx := context.Background()

	c := newTestClient(t, srv, Config{})
	loc, err := c.ResolveLocation(ctx)
	require.NoError(t, err)
	assert.Equal(t, "europe-west1", loc)

	_, err = c.ResolveLocation(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.locationCalls, "location is discovered once per client")

	pinned := newTestClient(t, srv, Config{Location: "asia-east1"})
	loc, err = pinned.ResolveLocation(ctx)
	require.NoError(t, err)
	assert.Equal(t, "asia-east1", loc)
	assert.Equal(t, 1, fake.locationCalls)
}

func TestClient_JobLifecycle(t *testing.T) {
	fake, srv := newFakeScheduler(t)
	ctx := context.Background()
	c := newTestClient(t, srv, Config{})
	job := testJob()

	_, err := c.GetJob(ctx, job.Name)
	assert.ErrorIs(t, err, scheduler.ErrJobNotFound)

	created, err := c.CreateJob(ctx, "projects/p/locations/europe-west1", job)
	require.NoError(t, err)
	assert.Equal(t, "ENABLED", created.State)
	assert.Equal(t, job.Body, created.Body)
	assert.True(t, scheduler.Equivalent(job, created))

	fetched, err := c.GetJob(ctx, job.Name)
	require.NoError(t, err)
	assert.Equal(t, "https://hooks.example.com/hook", fetched.TargetURI)
	assert.Equal(t, "POST", fetched.HTTPMethod)

	edited := testJob()
	edited.TargetURI = "https://hooks.example.com/hook2"
	updated, err := c.UpdateJob(ctx, edited)
	require.NoError(t, err)
	assert.Equal(t, "https://hooks.example.com/hook2", updated.TargetURI)
	assert.Equal(t, updateMask, fake.lastMask)
	assert.Len(t, fake.jobs, 1)

	require.NoError(t, c.DeleteJob(ctx, job.Name))
	assert.ErrorIs(t, c.DeleteJob(ctx, job.Name), scheduler.ErrJobNotFound)

	_, err = c.UpdateJob(ctx, edited)
	assert.ErrorIs(t, err, scheduler.ErrJobNotFound)
}

func TestClient_BodylessJob(t *testing.T) {
	_, srv := newFakeScheduler(t)
	ctx := context.Background()
	c := newTestClient(t, srv, Config{})

	job := testJob()
	job.HTTPMethod = "GET"
	job.Body = nil

	created, err := c.CreateJob(ctx, "projects/p/locations/europe-west1", job)
	require.NoError(t, err)
	assert.Empty(t, created.Body)
}

func TestClient_ServerErrorsPassThrough(t *testing.T) {
	fake, srv := newFakeScheduler(t)
	c := newTestClient(t, srv, Config{})
	fake.failWith = http.StatusForbidden

	_, err := c.GetJob(context.Background(), testJob().Name)
	require.Error(t, err)
	assert.NotErrorIs(t, err, scheduler.ErrJobNotFound)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.ErrTypeRemoteCall, appErr.Type)
	assert.Equal(t, "403", appErr.Code)

	_, err = c.ResolveLocation(context.Background())
	assert.Error(t, err)
}

func TestNew_RequiresProject(t *testing.T) {
	_, err := New(context.Background(), "", Config{}, option.WithoutAuthentication())
	assert.Error(t, err)
}

func TestFactory(t *testing.T) {
	_, srv := newFakeScheduler(t)
	factory := Factory(Config{Options: []option.ClientOption{
		option.WithEndpoint(srv.URL + "/"),
		option.WithoutAuthentication(),
	}})

	client, err := factory(context.Background(), &credentials.Credentials{Ref: "r", ProjectID: "p"})
	require.NoError(t, err)
	assert.Equal(t, "p", client.ProjectID())

	loc, err := client.ResolveLocation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "europe-west1", loc)
}
