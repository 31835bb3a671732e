package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/envelope"
	"github.com/aretw0/waypoint/pkg/planparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testResources = []domain.Resource{{Name: "Test Resource", Description: "Test description"}}

// envelopeFor wraps text the way the backend pipeline does.
func envelopeFor(t *testing.T, text string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"result": map[string]any{
			"llm": map[string]any{
				"replies": []any{
					map[string]any{
						"_role":    "assistant",
						"_content": []any{map[string]any{"text": text}},
					},
				},
			},
		},
	})
	require.NoError(t, err)
	return body
}

type recorder struct {
	mu     sync.Mutex
	stages []string
}

func (r *recorder) ObserveRequest(stage string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, stage)
}

func newServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestGenerate_StrictRecord(t *testing.T) {
	srv, hits := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, DefaultPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body domain.ActionPlanRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, testResources, body.Resources)

		w.Write(envelopeFor(t, `{"title":"Test Action Plan","summary":"Test summary","content":"## Test Content\n\nSome content here"}`))
	})
	rec := &recorder{}
	client := New(srv.URL, WithRecorder(rec))

	plan, ok := client.Generate(context.Background(), testResources)

	require.True(t, ok)
	assert.Equal(t, domain.ActionPlan{
		Title:   "Test Action Plan",
		Summary: "Test summary",
		Content: "## Test Content\n\nSome content here",
	}, plan)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, []string{StageOK}, rec.stages)
}

func TestGenerate_RepairsLiteralLineBreak(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(envelopeFor(t, "{\"title\":\"Test\",\"summary\":\"Summary\",\"content\":\"Line 1\nLine 2\"}"))
	})
	rec := &recorder{}
	client := New(srv.URL, WithRecorder(rec))

	plan, ok := client.Generate(context.Background(), testResources)

	require.True(t, ok)
	assert.Equal(t, domain.ActionPlan{Title: "Test", Summary: "Summary", Content: "Line 1\nLine 2"}, plan)
	assert.Equal(t, []string{StageRepaired}, rec.stages)
}

func TestGenerate_NonSuccessStatus(t *testing.T) {
	srv, hits := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	})
	rec := &recorder{}
	client := New(srv.URL, WithRecorder(rec))

	plan, ok := client.Generate(context.Background(), testResources)

	assert.False(t, ok)
	assert.Equal(t, domain.ActionPlan{}, plan)
	assert.Equal(t, int32(1), hits.Load(), "must not retry")
	assert.Equal(t, []string{StageStatus}, rec.stages)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestGenerate_TransportError(t *testing.T) {
	var calls atomic.Int32
	hc := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		calls.Add(1)
		return nil, errors.New("Network error")
	})}
	rec := &recorder{}
	client := New("http://backend.invalid", WithHTTPClient(hc), WithRecorder(rec))

	plan, ok := client.Generate(context.Background(), testResources)

	assert.False(t, ok)
	assert.Equal(t, domain.ActionPlan{}, plan)
	assert.Equal(t, int32(1), calls.Load(), "must not retry")
	assert.Equal(t, []string{StageTransport}, rec.stages)
}

func TestGenerate_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv, hits := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	defer close(release)

	rec := &recorder{}
	client := New(srv.URL, WithTimeout(50*time.Millisecond), WithRecorder(rec))

	start := time.Now()
	_, ok := client.Generate(context.Background(), testResources)

	assert.False(t, ok)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, []string{StageTimeout}, rec.stages)
}

func TestGenerate_EnvelopeAndPayloadFailures(t *testing.T) {
	tests := []struct {
		name  string
		body  func(t *testing.T) []byte
		stage string
	}{
		{"Not JSON", func(t *testing.T) []byte { return []byte("<html>oops</html>") }, StageEnvelope},
		{"No Replies", func(t *testing.T) []byte { return []byte(`{"result":{"llm":{"replies":[]}}}`) }, StageEnvelope},
		{"Prose Reply", func(t *testing.T) []byte { return envelopeFor(t, "I cannot help with that.") }, StagePayload},
		{"Partial Record", func(t *testing.T) []byte { return envelopeFor(t, `{"title":"T","summary":"S"}`) }, StagePayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := tt.body(t)
			srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write(body)
			})
			rec := &recorder{}
			client := New(srv.URL, WithRecorder(rec))

			plan, ok := client.Generate(context.Background(), testResources)

			assert.False(t, ok)
			assert.Equal(t, domain.ActionPlan{}, plan)
			assert.Equal(t, []string{tt.stage}, rec.stages)
		})
	}
}

func TestFetch_WrapsSentinels(t *testing.T) {
	t.Run("Status", func(t *testing.T) {
		srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		_, err := New(srv.URL).Fetch(context.Background(), domain.ActionPlanRequest{})
		assert.ErrorIs(t, err, ErrStatus)
		assert.Contains(t, err.Error(), "502")
	})

	t.Run("Envelope", func(t *testing.T) {
		srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		})
		_, err := New(srv.URL).Fetch(context.Background(), domain.ActionPlanRequest{})
		assert.ErrorIs(t, err, envelope.ErrNotFound)
	})

	t.Run("Payload", func(t *testing.T) {
		srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write(envelopeFor(t, `not json`))
		})
		_, err := New(srv.URL).Fetch(context.Background(), domain.ActionPlanRequest{})
		assert.ErrorIs(t, err, planparse.ErrInvalidPlan)
	})

	t.Run("Too Large", func(t *testing.T) {
		srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write(envelopeFor(t, `{"title":"T","summary":"S","content":"C"}`))
		})
		_, err := New(srv.URL, WithMaxResponseBytes(16)).Fetch(context.Background(), domain.ActionPlanRequest{})
		assert.ErrorIs(t, err, ErrResponseTooLarge)
	})

	t.Run("Transport", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		_, err := New(url).Fetch(context.Background(), domain.ActionPlanRequest{})
		assert.ErrorIs(t, err, ErrTransport)
	})
}

func TestGenerate_PreservesResourceOrder(t *testing.T) {
	resources := []domain.Resource{
		{Name: "Food Bank", Description: "Groceries", Phones: []string{"512-555-0200", "512-555-0201"}},
		{Name: "Austin Resource Center", Description: "Housing", Website: "https://example.org", ReferralType: domain.ReferralGoodwill},
		{Name: "Job Training", Description: "Skills"},
	}

	var got domain.ActionPlanRequest
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &got))
		w.Write(envelopeFor(t, `{"title":"T","summary":"S","content":"C"}`))
	})

	_, ok := New(srv.URL).GenerateRequest(context.Background(), domain.ActionPlanRequest{
		Resources: resources,
		UserEmail: "case.manager@example.org",
	})

	require.True(t, ok)
	assert.Equal(t, resources, got.Resources)
	assert.Equal(t, "case.manager@example.org", got.UserEmail)
}

func TestGenerate_EmptyResourcesEncodeAsArray(t *testing.T) {
	var raw map[string]json.RawMessage
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	New(srv.URL).Generate(context.Background(), nil)

	assert.JSONEq(t, `[]`, string(raw["resources"]))
	assert.NotContains(t, raw, "user_email")
}

func TestClient_HeadersAndPath(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/custom/run", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		w.Write(envelopeFor(t, `{"title":"T","summary":"S","content":"C"}`))
	})

	client := New(srv.URL+"/", WithPath("custom/run"), WithHeader("Authorization", "Bearer token"))
	assert.Equal(t, srv.URL+"/custom/run", client.Endpoint())

	_, ok := client.Generate(context.Background(), testResources)
	assert.True(t, ok)
}

func TestGenerate_ConcurrentCallsAreIndependent(t *testing.T) {
	srv, hits := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body domain.ActionPlanRequest
		json.NewDecoder(r.Body).Decode(&body)
		title := body.Resources[0].Name
		w.Write(envelopeFor(t, `{"title":"`+title+`","summary":"S","content":"C"}`))
	})
	client := New(srv.URL)

	names := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			plan, ok := client.Generate(context.Background(), []domain.Resource{{Name: name, Description: "d"}})
			assert.True(t, ok)
			assert.Equal(t, name, plan.Title)
		}(name)
	}
	wg.Wait()

	assert.Equal(t, int32(len(names)), hits.Load())
}
