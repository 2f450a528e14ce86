package mcpserver

// DocumentFormatContract describes the canonical typed document format that
// LLM consumers should follow when creating or updating corpus documents.
const DocumentFormatContract = `# Document Format Contract

Every Markdown document stored in the corpus MUST follow this structure.

## Structure

` + "```" + `markdown
---
type: adr                           # REQUIRED - must name a type declared in the schema
title: Human-readable title         # usually required by the type definition
status: accepted                    # enum fields must use a declared value
tags:                               # list fields are YAML sequences
  - tag-one
  - tag-two
supersedes: ADR-001                 # relation fields reference other documents by ID
---

# Human-readable title

Body text in standard Markdown, organized into the sections the type requires.
` + "```" + `

## Rules

1. **YAML frontmatter is mandatory.** The ` + "```" + `---` + "```" + ` fences must be the first
   thing in the file (no leading blank lines).
2. **` + "`" + `type` + "`" + ` field is required.** It selects the schema type the document is
   validated against. Unknown types fail validation.
3. **Required fields and sections** come from the type definition. Run the
   ` + "`" + `validate_document` + "`" + ` tool after writing to check.
4. **Document IDs** derive from the file name: ` + "`" + `adr-001.md` + "`" + ` has ID ` + "`" + `ADR-001` + "`" + `.
   Use the ` + "`" + `next_id` + "`" + ` tool to pick a free ID for a prefix.
5. **Relation fields** reference other documents either by bare ID
   (` + "`" + `ADR-001` + "`" + `) or by relative file path (` + "`" + `../decisions/adr-001.md` + "`" + `).
   Dangling references are reported by validation.
6. **File paths** end with ` + "`" + `.md` + "`" + ` and use forward slashes.
7. **Encoding** is UTF-8 with a trailing newline.

## Example

` + "```" + `markdown
---
type: adr
title: Use SQLite for the cache
status: accepted
owner: "@alice"
supersedes: ADR-004
tags:
  - storage
---

# Use SQLite for the cache

## Context

We need incremental validation without rescanning the whole corpus.

## Decision

Store per-file checksums and diagnostics in a local SQLite database.

## Consequences

Validation of an unchanged corpus is nearly free.
` + "```" + `
`
