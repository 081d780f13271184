package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bull/ragdex/internal/rag"
)

func TestBuildPromptDeterministic(t *testing.T) {
	chunks := []rag.Chunk{
		{Source: "a.txt", Content: "First chunk."},
		{Source: "b.txt", Content: "Second chunk."},
	}

	first := BuildPrompt("What is this?", chunks)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, BuildPrompt("What is this?", chunks), "prompt must be byte-identical across calls")
	}
}

func TestBuildPromptStructure(t *testing.T) {
	chunks := []rag.Chunk{
		{Source: "a.txt", Content: "Cats are mammals."},
		{Source: "b.txt", Content: "Dogs are canines."},
	}

	prompt := BuildPrompt("Tell me about canines", chunks)

	assert.Contains(t, prompt, "---CONTEXT---")
	assert.Contains(t, prompt, "---END CONTEXT---")
	assert.Contains(t, prompt, "Cats are mammals.")
	assert.Contains(t, prompt, "Dogs are canines.")
	assert.Contains(t, prompt, "QUESTION: Tell me about canines")
	assert.Contains(t, prompt, RefusalAnswer)
	assert.Contains(t, prompt, "based ONLY on the provided context")

	// Chunks are delimited, in order, inside the context block.
	ctxStart := strings.Index(prompt, "---CONTEXT---")
	ctxEnd := strings.Index(prompt, "---END CONTEXT---")
	contextBlock := prompt[ctxStart:ctxEnd]
	assert.Less(t, strings.Index(contextBlock, "Cats"), strings.Index(contextBlock, "Dogs"))
}

func TestBuildPromptNoChunks(t *testing.T) {
	prompt := BuildPrompt("anything", nil)
	assert.Contains(t, prompt, "---CONTEXT---")
	assert.Contains(t, prompt, "QUESTION: anything")
}
