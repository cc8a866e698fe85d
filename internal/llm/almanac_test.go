package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleData() *AlmanacData {
	return &AlmanacData{
		SimTime:     "Day 3, 4:00:00",
		Season:      "summer",
		Weather:     "Sunny",
		Temperature: 24.5,
		Cash:        48250.5,
		NetProfit:   1200,
		Debt:        5000,
		CreditScore: 0.62,
		Plots:       2,
		Animals:     3,
		Machines:    1,
		Prices: []PriceLine{
			{Commodity: "wheat", Price: 280, Base: 200, Trend: "rising"},
			{Commodity: "milk", Price: 3, Base: 3, Trend: "stable"},
		},
		Events: map[string][]string{
			"crops":   {"wheat ready", "corn ready", "a", "b", "c", "d", "e"},
			"weather": {"storm"},
			"empty":   nil,
		},
	}
}

func TestFallbackAlmanac(t *testing.T) {
	issue := GenerateAlmanac(context.Background(), nil, sampleData())

	assert.False(t, issue.Narrated)
	assert.Equal(t, "Day 3, 4:00:00", issue.SimTime)
	assert.Contains(t, issue.Content, "THE FARMSTEAD ALMANAC")
	assert.Contains(t, issue.Content, "Cash on hand: $48,250.5")
	assert.Contains(t, issue.Content, "Outstanding debt: $5,000")
	assert.Contains(t, issue.Content, "- wheat: $280.00 (surging)")
	assert.Contains(t, issue.Content, "- milk: $3.00 (steady)")
	assert.Contains(t, issue.Content, "...and 2 more.")
	assert.NotContains(t, issue.Content, "EMPTY")
	assert.Less(t, strings.Index(issue.Content, "CROPS\n"), strings.Index(issue.Content, "WEATHER\n- storm"))
}

func TestNarratedAlmanac(t *testing.T) {
	var got request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, apiVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"content":[{"text":"A fine week on the farm."}],"usage":{"input_tokens":10,"output_tokens":6}}`))
	}))
	defer srv.Close()

	client := NewClient("key").WithEndpoint(srv.URL)
	issue := GenerateAlmanac(context.Background(), client, sampleData())

	assert.True(t, issue.Narrated)
	assert.Equal(t, "A fine week on the farm.", issue.Content)
	assert.Equal(t, defaultModel, got.Model)
	assert.Equal(t, almanacSystem, got.System)
	require.Len(t, got.Messages, 1)
	assert.Contains(t, got.Messages[0].Content, "WEATHER: Sunny, 24.5°C")
	assert.Contains(t, got.Messages[0].Content, "credit score 0.62")
}

func TestNarrationFailureFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	issue := GenerateAlmanac(context.Background(), NewClient("key").WithEndpoint(srv.URL), sampleData())
	assert.False(t, issue.Narrated)
	assert.Contains(t, issue.Content, "THE FARMSTEAD ALMANAC")
}

func TestClientDisabledAndRateLimited(t *testing.T) {
	assert.Nil(t, NewClient(""))
	var c *Client
	assert.False(t, c.Enabled())
	_, err := c.Complete(context.Background(), "", "hi", 10)
	assert.ErrorIs(t, err, ErrDisabled)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[{"text":"ok"}]}`))
	}))
	defer srv.Close()

	c = NewClient("key").WithEndpoint(srv.URL)
	c.maxPerMin = 1
	out, err := c.Complete(context.Background(), "", "hi", 10)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	_, err = c.Complete(context.Background(), "", "hi", 10)
	assert.ErrorContains(t, err, "rate limit")
}
