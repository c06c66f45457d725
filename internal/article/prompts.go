package article

import "encoding/json"

var planSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "daily_summary": {"type": "string", "description": "A brief overview of the day's most significant developments (2-3 sentences)"},
    "top_stories": {"type": "array", "items": {"type": "string"}, "description": "3-5 key stories to cover, each with why it matters"},
    "structure": {"type": "array", "items": {"type": "string"}, "description": "Section headings ordered by story importance"}
  },
  "required": ["daily_summary", "top_stories", "structure"],
  "additionalProperties": false
}`)

var articleSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "title": {"type": "string"},
    "content": {"type": "string", "description": "The full content of the news article"},
    "summary": {"type": "string", "description": "A short summary of the article"},
    "daily_summary": {"type": "string"},
    "top_stories": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["title", "content", "summary", "daily_summary", "top_stories"],
  "additionalProperties": false
}`)

var citedArticleSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "title": {"type": "string"},
    "content": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "paragraph_text": {"type": "string"},
          "source_ids": {"type": "array", "items": {"type": "string"}, "description": "IDs of every source post this paragraph draws from"}
        },
        "required": ["paragraph_text", "source_ids"],
        "additionalProperties": false
      }
    },
    "summary": {"type": "string"},
    "daily_summary": {"type": "string"},
    "top_stories": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["title", "content", "summary", "daily_summary", "top_stories"],
  "additionalProperties": false
}`)

const planPromptTemplate = `You are planning a daily news article built from the highest-scoring
social-media posts of the day. Read the sources and produce a plan:
a short daily summary, the 3-5 top stories worth covering, and an
ordered list of section headings.

Sources:

{{.Sources}}`

const articlePromptTemplate = `You are writing the full daily news article. Follow the plan below and
ground every claim in the sources. Write clear news prose, most
important story first.

Daily summary from the plan:
{{.DailySummary}}

Top stories from the plan:
{{range .TopStories}}- {{.}}
{{end}}
Section structure:
{{range .Structure}}- {{.}}
{{end}}
Sources:

{{.Sources}}`

const citedExtra = `
Write the article as an ordered list of paragraphs. For each paragraph,
list the IDs of every source post it references or uses information from.`
