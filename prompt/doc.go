// Package prompt assembles the token-bounded context handed to completion
// models: fixed instructions, a rolling window of conversation history and
// the current question. Assembly is deterministic; identical inputs always
// produce the identical prompt sequence. Token counting is pluggable so a
// provider-exact tokenizer can replace the built-in estimator.
package prompt
