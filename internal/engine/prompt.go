package engine

import (
	"fmt"
	"strings"

	"github.com/bull/ragdex/internal/rag"
)

// RefusalAnswer is the fixed phrase the generator is instructed to emit
// when the supplied context cannot answer the question. Ask returns it
// directly, without calling the generator, when retrieval comes back
// empty.
const RefusalAnswer = "I don't have enough information in the provided context to answer this question."

// chunkSeparator delimits retrieved chunks inside the prompt so the model
// can tell where one ends and the next begins.
const chunkSeparator = "\n\n---\n\n"

// BuildPrompt combines the query and retrieved chunks into the grounded
// instruction payload. Pure and deterministic: the same inputs always
// produce byte-identical output — no timestamps, no randomness.
func BuildPrompt(query string, chunks []rag.Chunk) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	context := strings.Join(texts, chunkSeparator)

	return fmt.Sprintf(`You are a helpful AI assistant.

Answer the following question based ONLY on the provided context.

If the answer is not in the context, reply with %q.

Do not use any prior knowledge or make assumptions beyond what is explicitly stated in the context.

---CONTEXT---
%s
---END CONTEXT---

QUESTION: %s

ANSWER:`, RefusalAnswer, context, query)
}
