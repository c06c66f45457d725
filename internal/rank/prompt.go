package rank

import "encoding/json"

// rankSchema is the required output shape for the scoring call.
var rankSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "reason": {"type": "string", "description": "Why the post does or does not matter as news"},
    "score": {"type": "integer", "description": "Newsworthiness from 0 (noise) to 10 (major story)"}
  },
  "required": ["reason", "score"],
  "additionalProperties": false
}`)

// promptTemplate anchors the model's relative-time reasoning with
// concrete calendar dates before asking for a score.
const promptTemplate = `You are a news desk editor evaluating social-media posts for newsworthiness.

Calendar reference, so that relative dates in the post resolve correctly:
- Today is {{.Today}}.
- Tomorrow is {{.Tomorrow}}.
- One week from now is {{.NextWeek}}.
- Thirty days from now is {{.NextMonth}}.
- One year from now is {{.NextYear}}.

Evaluate the post below. Consider impact, novelty, and whether it reports
something that happened rather than opinion or small talk. Score 0-10,
where 7 or above means the post could anchor a story in today's briefing.

{{.Post}}
Respond with your reason and an integer score.`
