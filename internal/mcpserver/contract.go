package mcpserver

// MoodScale describes the mood domain that LLM consumers should use when
// creating entries.
const MoodScale = `# Solace Mood Scale

Every journal entry carries exactly one mood. Moods are stored as labels;
the numeric score is used for trends and averages.

| Score | Label   | Meaning                                  |
|-------|---------|------------------------------------------|
| 1     | awful   | Overwhelmed, in distress                 |
| 2     | low     | Down, drained, discouraged               |
| 3     | okay    | Neutral, getting by                      |
| 4     | good    | Content, steady, positive                |
| 5     | great   | Energised, joyful, thriving              |

## Rules

1. ` + "`" + `mood` + "`" + ` is required. Pass either the label (any case) or the score 1..5.
2. ` + "`" + `gratitude` + "`" + `, ` + "`" + `intentions` + "`" + ` and ` + "`" + `thoughts` + "`" + ` are optional free text,
   at most 4000 characters each. Markup is stripped; blank text is treated as absent.
3. Entry ids and dates are assigned by the journal. Never invent them.
4. An AI insight is generated in the background after each new entry. Use
   ` + "`" + `generate_insights` + "`" + ` to retry or regenerate it.
5. The weekly reflection covers at most the 7 newest entries of the last 7 days.
`
