package outbox

const sessionWrittenSchema = `{
  "type": "object",
  "title": "SessionWritten",
  "properties": {
    "session_id": {"type": "string"},
    "tenant_id": {"type": "string"},
    "user_id": {"type": "string"},
    "name": {"type": "string"},
    "category": {"type": "string", "enum": ["strength", "cardio", "hybrid"]},
    "started_at": {"type": "string", "format": "date-time"},
    "duration_seconds": {"type": "integer"},
    "exercise_count": {"type": "integer"},
    "set_count": {"type": "integer"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["session_id", "tenant_id", "user_id", "category", "started_at", "occurred_at"],
  "additionalProperties": false
}`

const sessionDeletedSchema = `{
  "type": "object",
  "title": "SessionDeleted",
  "properties": {
    "session_id": {"type": "string"},
    "tenant_id": {"type": "string"},
    "user_id": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["session_id", "tenant_id", "user_id", "occurred_at"],
  "additionalProperties": false
}`

const exerciseCatalogedSchema = `{
  "type": "object",
  "title": "ExerciseCataloged",
  "properties": {
    "exercise_id": {"type": "string"},
    "name": {"type": "string"},
    "muscle_groups": {"type": "array", "items": {"type": "string"}},
    "equipment": {"type": "string"},
    "category": {"type": "string"},
    "tenant_id": {"type": "string"},
    "cataloged_at": {"type": "string", "format": "date-time"}
  },
  "required": ["exercise_id", "name", "category", "tenant_id", "cataloged_at"],
  "additionalProperties": false
}`
