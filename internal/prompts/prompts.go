package prompts

// ============================================================================
// OCR Prompts (Vision Language Model)
// ============================================================================

// OCRSystemPrompt defines the role for verbatim text extraction.
const OCRSystemPrompt = `You are an OCR engine. You transcribe the text visible in an image and nothing else.`

// OCRUserPrompt asks for the transcription only, keeping reading order and
// line breaks.
const OCRUserPrompt = `Transcribe all text in this image exactly as it appears.
Keep the original reading order and line breaks. Do not translate, summarise, explain or add any prefix.
If the image contains no text, reply with exactly: ` + OCRNoTextMarker

// OCRNoTextMarker is the reply that means "no text found".
const OCRNoTextMarker = "<<NO_TEXT>>"
