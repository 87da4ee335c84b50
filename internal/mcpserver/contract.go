package mcpserver

// InboxFormatContract describes the Markdown file format accepted by the
// inbox importer. LLM consumers that write files into the inbox should follow it.
const InboxFormatContract = `# Marginalia Inbox Format

Every Markdown file dropped into the inbox becomes one reading note.

## Structure

` + "```" + `markdown
---
book: The Book Title               # OPTIONAL – book to file the note under (created if missing)
quote: The passage being annotated # OPTIONAL – up to 600 characters
page: "p. 42"                      # OPTIONAL – page reference, up to 40 characters
same_book_only: false              # OPTIONAL – only link to notes of the same book
---

Your own thoughts about the passage.
` + "```" + `

## Rules

1. **Frontmatter is optional.** When present, the ` + "```" + `---` + "```" + ` fences must be the
   first thing in the file.
2. **The body is the note content.** It is required and limited to 1200 characters.
3. **Without ` + "`" + `book` + "`" + `**, the note goes to the inbox's default book.
4. **Files end with ` + "`" + `.md` + "`" + `** and are UTF-8. Other files are ignored.
5. Imported files are moved to ` + "`" + `processed/` + "`" + ` inside the inbox.

## Example

` + "```" + `markdown
---
book: Big Debt Crises
quote: Debt burdens rise faster than the incomes that service them.
page: "17"
---

Every cycle ends when credit stops growing faster than income.
` + "```" + `
`
