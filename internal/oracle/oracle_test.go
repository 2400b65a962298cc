package oracle_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/programme-lv/pathogen/internal/oracle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCandidates(t *testing.T) {
	resp := strings.Join([]string{
		"# Here are some inputs",
		"```",
		"1. [5, 4, 3, 2, 1]",
		"2) [9, 8, 7]",
		"- Input: [1, 1, 1]",
		"* input: -3 -2 -1",
		"",
		"// trailing comment",
		"-7 5 3",
		"1.5 2.5",
		"[5, 4, 3, 2, 1]",
		"```",
	}, "\n")

	got := oracle.ParseCandidates(resp)

	assert.Equal(t, []string{
		"[5, 4, 3, 2, 1]",
		"[9, 8, 7]",
		"[1, 1, 1]",
		"-3 -2 -1",
		"-7 5 3",
		"1.5 2.5",
	}, got)
}

func TestParseCandidatesEmpty(t *testing.T) {
	assert.Empty(t, oracle.ParseCandidates("\n  \n# nothing\n"))
}

func TestFallbackCandidates(t *testing.T) {
	assert.Equal(t, []string{"[0, 1, 2]", "[1, 2, 3]"}, oracle.FallbackCandidates(2))
}

func TestFallbackOracleFollowsTargetSizes(t *testing.T) {
	f := oracle.NewFallback()

	first, err := f.Generate(context.Background(), "Generate 2 inputs with sizes: [3, 5].")
	require.NoError(t, err)
	assert.Equal(t, []string{"3 2 1", "5 4 3 2 1"}, oracle.ParseCandidates(first))

	second, err := f.Generate(context.Background(), "Generate 1 more inputs with target sizes: [2]:")
	require.NoError(t, err)
	assert.Equal(t, []string{"3 2"}, oracle.ParseCandidates(second))
}

func TestFallbackOracleWithoutSizes(t *testing.T) {
	out, err := oracle.NewFallback().Generate(context.Background(), "anything")
	require.NoError(t, err)
	assert.Len(t, oracle.ParseCandidates(out), 3)
}

func TestLookupUnknownProvider(t *testing.T) {
	_, err := oracle.Lookup("claude")
	require.ErrorIs(t, err, oracle.ErrUnknownProvider)

	_, err = oracle.New(context.Background(), oracle.Config{Provider: "nope"})
	require.ErrorIs(t, err, oracle.ErrUnknownProvider)
}

func TestProvidersAvailability(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "k")
	t.Setenv("OPENAI_API_KEY", "")

	names := []string{}
	avail := map[string]bool{}
	for _, p := range oracle.Providers() {
		names = append(names, p.Name)
		avail[p.Name] = p.Available()
	}

	assert.Equal(t, []string{"fallback", "gemini", "groq", "openai"}, names)
	assert.True(t, avail["fallback"])
	assert.True(t, avail["groq"])
	assert.False(t, avail["openai"])
}

func TestNewMissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := oracle.New(context.Background(), oracle.Config{Provider: oracle.ProviderOpenAI})
	require.ErrorIs(t, err, oracle.ErrMissingAPIKey)
}

func TestNewFallback(t *testing.T) {
	o, err := oracle.New(context.Background(), oracle.Config{Provider: oracle.ProviderFallback})
	require.NoError(t, err)
	assert.Equal(t, "fallback", o.Name())
}

func chatServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(srv.Close)
	return srv
}

func writeChoice(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
}

func TestChatCompletions(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req["model"])
		assert.EqualValues(t, 123, req["max_tokens"])

		writeChoice(w, "1. 3 2 1\n2. 4 3 2 1")
	})

	t.Setenv("GROQ_API_KEY", "secret")
	o, err := oracle.New(context.Background(), oracle.Config{
		Provider:  oracle.ProviderGroq,
		Model:     "test-model",
		MaxTokens: 123,
		BaseURL:   srv.URL + "/",
	})
	require.NoError(t, err)
	assert.Equal(t, "groq/test-model", o.Name())

	out, err := o.Generate(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, []string{"3 2 1", "4 3 2 1"}, oracle.ParseCandidates(out))
}

func TestChatCompletionsRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		writeChoice(w, "ok")
	})

	t.Setenv("OPENAI_API_KEY", "secret")
	o, err := oracle.New(context.Background(), oracle.Config{Provider: oracle.ProviderOpenAI, BaseURL: srv.URL})
	require.NoError(t, err)

	out, err := o.Generate(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(2), calls.Load())
}

func TestChatCompletionsClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"message":"bad model"}}`, http.StatusBadRequest)
	})

	t.Setenv("OPENAI_API_KEY", "secret")
	o, err := oracle.New(context.Background(), oracle.Config{Provider: oracle.ProviderOpenAI, BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = o.Generate(context.Background(), "go")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, int32(1), calls.Load())
}
