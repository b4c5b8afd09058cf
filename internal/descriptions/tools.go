package descriptions

import "sort"

// Tool descriptions with practical examples and use cases

const (
	// Session tools
	PDFOpenDocumentDescription = `Open a PDF and build its interactive element overlay at a given zoom scale.

**When to use:** Before any per-page or scale-dependent work on a document. Returns a session_id used by the other session tools.

**Why it's useful:** Every page is parsed once into positioned elements (text lines, annotations, images, form fields) in top-left viewport coordinates, ready to be hit-tested or highlighted.

**Examples:**
• Open a contract at 150%: "Open contract.pdf with scale 1.5"
• Reparse on zoom: "Open scan.pdf with scale_mode reparse so every zoom rebuilds from the source"

**Common workflows:**
1. Overlay: Open → pdf_page_elements → highlight regions
2. Zoom: Open → pdf_set_scale → pdf_page_elements

**Best practices:** Close sessions you no longer need; the server keeps a bounded number open and evicts the least recently used.`

	PDFPageElementsDescription = `Get the element list of one page (or every page) of an open session.

**When to use:** After pdf_open_document or pdf_set_scale, to read element ids, types, subtypes and geometry.

**Why it's useful:** Elements come in a stable order (text, annotations, images, form fields) with ids like text-1-0-0 that stay the same across scale changes.

**Examples:**
• "List the elements on page 3 of session 5f0c…"
• "Get every page's elements to build a click map"

**Best practices:** Pass page 0 or omit it to get all pages. Per-page errors show which element kinds failed without hiding the rest.`

	PDFSetScaleDescription = `Change the zoom scale of an open session.

**When to use:** When the viewer zooms in or out and overlay geometry must follow.

**Why it's useful:** Abandons any in-flight extraction and rendering for the old scale and publishes a complete new element list in one step. Readers never see a mix of scales.

**Examples:**
• "Zoom session 5f0c… to 2.0"
• "Reset session 5f0c… to scale 1"

**Best practices:** In rescale mode geometry is multiplied by new/old; image placeholders keep their rescaled positions. Use reparse mode when exact per-scale minimum sizes matter.`

	PDFQueryElementsDescription = `Filter the elements of an open session by type, page, region or text.

**When to use:** To find what sits under a click, every form field on a page, or every heading containing a word.

**Why it's useful:** Queries run against the current view, so coordinates in the box filter are in the session's current scale.

**Examples:**
• Hit-test: "Which elements of page 1 lie inside x=0 y=0 width=612 height=120?"
• Forms: "List all form-field elements"
• Search: "Find text elements containing 'invoice'"

**Best practices:** Combine filters; all given criteria must match. Text matching is case-insensitive.`

	PDFRenderPageDescription = `Rasterise one page of an open session to a PNG at the session's current scale.

**When to use:** When a visual of the page is needed underneath the element overlay.

**Why it's useful:** The image and the element list share the same viewport, so element boxes line up with the picture.

**Examples:**
• "Render page 2 of session 5f0c…"

**Best practices:** A render superseded by a scale change returns no image and no error; request it again at the new scale. Rendering must be enabled in the server configuration.`

	PDFCloseDocumentDescription = `Close an open session and release its document.

**When to use:** When the viewer is done with a document.

**Best practices:** Closing cancels any render still running for that session.`

	PDFExtractElementsDescription = `Extract the element list of a PDF in one call, without opening a session.

**When to use:** Batch jobs or one-off inspections where no scale changes will follow.

**Why it's useful:** Same element model and ids as the session tools, no cleanup needed.

**Examples:**
• "Extract the elements of report.pdf at scale 1"
• "Extract only page 4 of form.pdf"

**Best practices:** Use pdf_open_document instead when the client will zoom.`

	PDFServerInfoDescription = `Get server status, configured limits, open sessions and the PDFs available in the library directory.

**When to use:** At the start of a conversation to discover documents and capabilities.

**Examples:**
• "What PDFs can you open?"
• "Is page rendering enabled?"

**Best practices:** Paths under the default directory can be given relative to it.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	"pdf_open_document":    PDFOpenDocumentDescription,
	"pdf_page_elements":    PDFPageElementsDescription,
	"pdf_set_scale":        PDFSetScaleDescription,
	"pdf_query_elements":   PDFQueryElementsDescription,
	"pdf_render_page":      PDFRenderPageDescription,
	"pdf_close_document":   PDFCloseDocumentDescription,
	"pdf_extract_elements": PDFExtractElementsDescription,
	"pdf_server_info":      PDFServerInfoDescription,
}

// ToolSummaries holds the one-line summary of each tool
var ToolSummaries = map[string]string{
	"pdf_open_document":    "Open a PDF and build its element overlay",
	"pdf_page_elements":    "Get the elements of one page or all pages of a session",
	"pdf_set_scale":        "Change a session's zoom scale",
	"pdf_query_elements":   "Filter a session's elements by type, page, region or text",
	"pdf_render_page":      "Render a page of a session to PNG",
	"pdf_close_document":   "Close a session",
	"pdf_extract_elements": "Extract elements of a PDF without a session",
	"pdf_server_info":      "Get server status and available documents",
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns every tool name in alphabetical order
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
