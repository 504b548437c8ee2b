package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIProviderEmbed(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)

		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Input, 1)

		resp := map[string]interface{}{
			"model": body.Model,
			"data": []map[string]interface{}{
				{"index": 0, "embedding": []float32{0.1, 0.2, 0.3}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider := &OpenAIProvider{
		apiKey:     "test-key",
		model:      DefaultOpenAIModel,
		baseURL:    server.URL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}

	vec, err := provider.Embed(context.Background(), "some study text", "")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestOpenAIProviderServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer server.Close()

	provider := &OpenAIProvider{
		apiKey:     "test-key",
		model:      DefaultOpenAIModel,
		baseURL:    server.URL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}

	_, err := provider.Embed(context.Background(), "text", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api error 500")
}

func TestOpenAIProviderEmptyText(t *testing.T) {
	provider := &OpenAIProvider{
		apiKey:     "test-key",
		model:      DefaultOpenAIModel,
		baseURL:    "http://unreachable.invalid",
		httpClient: &http.Client{Timeout: time.Second},
	}

	_, err := provider.Embed(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrEmptyText, "empty text must be rejected before any network call")
}

func TestNewOpenAIProviderRequiresKey(t *testing.T) {
	t.Setenv(EnvOpenAIAPIKey, "")
	_, err := NewOpenAIProvider("")
	assert.ErrorIs(t, err, ErrNoProviderEnabled)
}

func TestLocalProviderDeterministic(t *testing.T) {
	provider, err := NewLocalProvider()
	require.NoError(t, err)
	ctx := context.Background()

	a1, err := provider.Embed(ctx, "the quick brown fox", "")
	require.NoError(t, err)
	a2, err := provider.Embed(ctx, "the quick brown fox", "")
	require.NoError(t, err)
	b, err := provider.Embed(ctx, "a different text", "")
	require.NoError(t, err)

	assert.Equal(t, a1, a2, "identical text must produce identical vectors")
	assert.NotEqual(t, a1, b)
	assert.Len(t, a1, LocalDimension)
}

func TestLocalProviderNormalized(t *testing.T) {
	provider, _ := NewLocalProvider()
	vec, err := provider.Embed(context.Background(), "normalize me", "")
	require.NoError(t, err)

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, sum, 0.001, "local vectors are unit length")
}

func TestNormalizeVector(t *testing.T) {
	tests := []struct {
		name string
		in   []float32
		want []float32
	}{
		{
			name: "simple vector",
			in:   []float32{3, 4},
			want: []float32{0.6, 0.8},
		},
		{
			name: "zero vector unchanged",
			in:   []float32{0, 0, 0},
			want: []float32{0, 0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeVector(tt.in)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 0.0001)
			}
		})
	}
}

func TestFactoryNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantName string
		wantErr  bool
	}{
		{
			name:     "local provider",
			cfg:      Config{Provider: "local"},
			wantName: ProviderLocal,
		},
		{
			name:     "openai with key",
			cfg:      Config{Provider: "openai", APIKey: "k"},
			wantName: ProviderOpenAI,
		},
		{
			name:    "unknown provider",
			cfg:     Config{Provider: "nonsense"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, p.Name())
		})
	}
}

func TestFactoryModelOverride(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		wantModel string
	}{
		{
			name:      "local keeps default",
			cfg:       Config{Provider: "local"},
			wantModel: "local-embeddings",
		},
		{
			name:      "local with override",
			cfg:       Config{Provider: "local", Model: "custom-model"},
			wantModel: "custom-model",
		},
		{
			name:      "openai keeps default",
			cfg:       Config{Provider: "openai", APIKey: "k"},
			wantModel: DefaultOpenAIModel,
		},
		{
			name:      "openai with override",
			cfg:       Config{Provider: "openai", APIKey: "k", Model: "text-embedding-3-large"},
			wantModel: "text-embedding-3-large",
		},
		{
			name:      "jina with override",
			cfg:       Config{Provider: "jina", APIKey: "k", Model: "jina-embeddings-v2"},
			wantModel: "jina-embeddings-v2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.wantModel, p.Model())
		})
	}
}

func TestDetectProvider(t *testing.T) {
	t.Setenv(EnvProvider, "")
	t.Setenv(EnvOpenAIAPIKey, "")
	t.Setenv(EnvJinaAPIKey, "")
	assert.Equal(t, ProviderLocal, DetectProvider())

	t.Setenv(EnvOpenAIAPIKey, "key")
	assert.Equal(t, ProviderOpenAI, DetectProvider())

	t.Setenv(EnvProvider, "JINA")
	assert.Equal(t, ProviderJina, DetectProvider())
}
