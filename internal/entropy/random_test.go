package entropy

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchSeedCombinesBlocks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{"random":{"data":[1,2,3,4]}}}`))
	}))
	defer srv.Close()

	c := NewClient("key")
	c.endpoint = srv.URL

	seed, err := c.fetchSeed()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0001000200030004), seed)
	assert.Equal(t, seed, NewSeed(c))
}

func TestFetchSeedAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
	}))
	defer srv.Close()

	c := NewClient("key")
	c.endpoint = srv.URL

	_, err := c.fetchSeed()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}
