package speech

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesize(t *testing.T) {
	t.Run("returns audio bytes", func(t *testing.T) {
		var got synthesizeRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/audio/stream", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			assert.Equal(t, "audio/mpeg", r.Header.Get("Accept"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.Write([]byte("mp3-bytes"))
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "test-key")
		audio, err := client.Synthesize(context.Background(), "hello there", "voice-123")
		require.NoError(t, err)
		assert.Equal(t, []byte("mp3-bytes"), audio)
		assert.Equal(t, "hello there", got.Input)
		assert.Equal(t, "voice-123", got.VoiceID)
		assert.Equal(t, "mp3", got.OutputFormat)
		assert.Equal(t, "simba-multilingual", got.Model)
	})

	t.Run("surfaces the provider message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(map[string]string{"message": "voice not found"})
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "test-key")
		_, err := client.Synthesize(context.Background(), "hello", "gone")

		var perr *ProviderError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, http.StatusUnprocessableEntity, perr.StatusCode)
		assert.Equal(t, "voice not found", perr.Message)
	})

	t.Run("keeps the raw body when it is not the message shape", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("upstream exploded"))
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "test-key")
		_, err := client.Synthesize(context.Background(), "hello", "v")

		var perr *ProviderError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "upstream exploded", perr.Message)
	})

	t.Run("unreachable provider", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		client := NewClient(srv.URL, "test-key")
		_, err := client.Synthesize(context.Background(), "hello", "v")
		assert.True(t, errors.Is(err, ErrUnavailable))
	})
}

func TestCloneVoice(t *testing.T) {
	t.Run("uploads the sample and returns the voice id", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/voices", r.URL.Path)
			require.NoError(t, r.ParseMultipartForm(1<<20))

			assert.Equal(t, "User 42", r.FormValue("name"))
			var consent map[string]string
			require.NoError(t, json.Unmarshal([]byte(r.FormValue("consent")), &consent))
			assert.Equal(t, "User 42", consent["fullName"])

			file, _, err := r.FormFile("sample")
			require.NoError(t, err)
			defer file.Close()

			json.NewEncoder(w).Encode(map[string]string{"id": "voice-abc"})
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "test-key")
		id, err := client.CloneVoice(context.Background(), "User 42", []byte{0x4f, 0x67, 0x67})
		require.NoError(t, err)
		assert.Equal(t, "voice-abc", id)
	})

	t.Run("missing id is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{}"))
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "test-key")
		_, err := client.CloneVoice(context.Background(), "User 42", []byte("ogg"))

		var perr *ProviderError
		require.ErrorAs(t, err, &perr)
	})
}
