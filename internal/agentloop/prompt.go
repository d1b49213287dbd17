// Package agentloop drives a single ExecutionNode's lifecycle: compose a
// prompt, call the LM, extract and run a program from the response at
// any depth, and record the outcome. Stateless and thread-safe — all
// state comes from the Input passed to Run, so one Loop value is reused
// across every node in an execution tree.
package agentloop

import (
	"fmt"
	"strings"

	"github.com/pmukeshreddy/rlm-engine/internal/session"
)

// systemPrompt is the fixed message describing the sandbox primitives and
// the required response format. Sent on every LM call, root and child
// alike, since any node's response may itself be a recursing program.
const systemPrompt = `You are the code-generation engine of a recursive context-processing runtime.

You may respond in one of two ways:

1. Plain text (only when answering a recursive llm_query call): your
   response is returned directly to the caller. A top-level request is
   always answered with a program; without a fenced block, the whole
   response is run as the program.
2. A program in a small Python-like scripting language, inside a fenced
   code block (` + "```" + ` or ` + "```python" + `). Use this when you need to read the
   full context, split it into pieces, or recursively delegate pieces of
   the task to further LM calls.

Inside a program you have access to:
  - context: the full context string for this node (read-only).
  - memory: a key/value mapping that persists across the whole execution;
    read and write it freely.
  - llm_query(prompt) -> string: spawn a recursive LM call over a prompt
    you construct (for example, a chunk of context plus an instruction);
    returns that call's answer as a string.
  - FINAL(value): terminate the program and return value as the result.
    Every program that reaches the end of its logic must call FINAL.
  - Built-ins: len, range, enumerate, min, max, sum, sorted, str, int,
    float, bool, list, dict, and string methods split/join/strip/upper/
    lower/find/replace/startswith/endswith.

There is no import, no file, network, or subprocess access, and no
exception handling — any error aborts the program. In a recursive
llm_query call, only emit a program when you actually need to branch on
the context's structure or fan out recursive calls; otherwise answer in
plain text.`

// rootUserMessage composes the user-facing message for a root node: the
// query plus context *metadata* (never the full context blob, which may
// be far larger than any single prompt budget) and chunk guidance.
func rootUserMessage(query string, meta session.ContextMeta, sample string, chunkSize int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n\n", query)
	fmt.Fprintf(&b, "Context metadata: size=%d characters, sha256=%s\n", meta.Size, meta.SHA256)
	fmt.Fprintf(&b, "Context sample (first %d characters): %q\n\n", len(sample), sample)
	if meta.Size > chunkSize {
		fmt.Fprintf(&b, "The context exceeds the recommended single-prompt size of %d characters. "+
			"Write a program that slices context into chunks of roughly %d characters and "+
			"calls llm_query once per chunk, then combines the results.\n", chunkSize, chunkSize)
	} else {
		b.WriteString("The context fits within a single prompt; you may pass it to llm_query directly " +
			"or reason over it without recursing, as the task requires.\n")
	}
	return b.String()
}

// childUserMessage is exactly the caller's llm_query argument: a
// recursive call's prompt is whatever the calling program built, sent
// verbatim alongside the same system message as the root.
func childUserMessage(prompt string) string {
	return prompt
}

// contextSample returns the first n runes of s, used to give the root
// prompt a peek at the context's shape without inlining the whole blob.
func contextSample(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
