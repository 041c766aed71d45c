package config

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() Settings {
	return Settings{
		DBUser:         "sparkai",
		DBPassword:     "secret",
		DBHost:         "localhost",
		DBPort:         5432,
		DBName:         "sparkai_knowledge",
		DBSSLMode:      "disable",
		OllamaURL:      "http://localhost:11434",
		OllamaModel:    "llama3.2",
		EmbeddingModel: "nomic-embed-text",
	}
}

func TestRuntime_SnapshotIsCopy(t *testing.T) {
	rt := NewRuntime(validSettings())

	snap := rt.Snapshot()
	snap.EmbeddingModel = "mutated"

	assert.Equal(t, "nomic-embed-text", rt.Snapshot().EmbeddingModel)
}

func TestRuntime_SwapEmbeddingModel(t *testing.T) {
	rt := NewRuntime(validSettings())

	prev := rt.SwapEmbeddingModel("new-model-name")
	assert.Equal(t, "nomic-embed-text", prev)
	assert.Equal(t, "new-model-name", rt.Snapshot().EmbeddingModel)

	// Other fields are untouched by the swap.
	assert.Equal(t, "llama3.2", rt.Snapshot().OllamaModel)
}

func TestRuntime_Apply_ValidationFailureLeavesSnapshot(t *testing.T) {
	rt := NewRuntime(validSettings())

	_, err := rt.Apply(func(s Settings) (Settings, error) {
		s.DBPort = -1
		if verr := s.Validate(); verr != nil {
			return Settings{}, verr
		}
		return s, nil
	})
	require.ErrorIs(t, err, ErrInvalidPort)

	assert.Equal(t, 5432, rt.Snapshot().DBPort)
}

func TestRuntime_ConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	rt := NewRuntime(validSettings())

	// Writers publish paired values; readers must never observe a mix.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tag := fmt.Sprintf("model-%d-%d", n, j)
				_, _ = rt.Apply(func(s Settings) (Settings, error) {
					s.OllamaModel = tag
					s.EmbeddingModel = tag
					return s, nil
				})
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				s := rt.Snapshot()
				assert.Equal(t, s.OllamaModel, s.EmbeddingModel, "torn snapshot observed")
			}
		}()
	}
	wg.Wait()
}

func TestSettings_MarshalJSON_MasksPassword(t *testing.T) {
	s := validSettings()
	s.DBPassword = "super-secret-password"

	data, err := json.Marshal(s)
	require.NoError(t, err)

	out := string(data)
	assert.NotContains(t, out, "super-secret-password")
	assert.Contains(t, out, `"ollama_model":"llama3.2"`)
}

func TestSettings_Validate(t *testing.T) {
	s := validSettings()
	require.NoError(t, s.Validate())

	s.OllamaURL = "::not-a-url"
	assert.ErrorIs(t, s.Validate(), ErrInvalidOllamaURL)
}
