// Package textutil provides text processing utilities for keyword
// extraction and filename sanitization.
//
// The primary use cases are:
//   - Extracting search keywords from narration text
//   - Sanitizing filenames and path segments for safe filesystem use
//
// The tokenization process lowercases text, splits on non-alphanumeric
// characters, and filters tokens shorter than 3 characters.
package textutil
