package mcpserver

// ImportFormatContract describes the archives import_archive accepts and
// what the importer produces from them.
const ImportFormatContract = `# NexusDrive Import Archive Format

An import archive is a single .zip file. Folder structure is preserved only
for resolving relative links; every document becomes one flat object.

## Accepted entries

- ` + "`*.md`" + ` Markdown documents (Obsidian, Logseq, plain Markdown).
- ` + "`*.html`" + ` HTML documents (Notion exports).
- Any other file is an asset (images, PDFs, attachments).
- Directories, ` + "`__MACOSX/`" + ` and any path segment starting with "." are ignored.

## Markdown documents

` + "```" + `markdown
---
title: Weekly standup        # optional, defaults to the file name
type: meeting                # optional, defaults to "page"
tags: [meeting-notes, q1]    # inline list, or one "- item" per line
date: 2025-01-20
---

Body in standard Markdown. Link with [[Other Note]], [[Other Note|label]],
[label](folder/Other%20Note.md) or embed ![[diagram.png]].
` + "```" + `

Frontmatter keys are case-sensitive and flat (key: value). Values in
brackets become lists. Keys containing "date" or "fecha" are typed as dates,
"tags" and plural list keys (aliases, authors, categories, keywords) as
multi-selects, everything else as text.

## HTML documents

The first heading (or <title>) is the title. A ` + "`table.properties`" + `
block becomes the object's properties: one row per property, the header cell
is the key and the value cell the value. Cells with several
` + "`.selected-value`" + ` elements become lists. Content is taken from
` + "`.page-body`" + ` when present, otherwise from <body>.

## Titles and duplicates

Documents whose title already exists in the workspace are skipped unless the
import runs with overwrite enabled.

## References after import

- Links to documents in the same archive become ` + "`object://<id>`" + `.
- Links and images pointing at assets become ` + "`asset://<stored name>`" + `;
  stored names are the sanitized file name plus a random token.
- External links (http, https, mailto, ...) are kept and open in a new tab.
- Anything that cannot be resolved is rendered as a broken-link marker.

## Undo

revert_import removes the objects, assets and newly created types of the most
recent import. Only the latest import can be reverted.
`
