package normalize

import (
	"swipestats-workers/internal/common/validation"
)

// Only structural elements the mapping depends on are constrained. Everything else is optional and falls back to sentinels.

var tinderSchema = validation.MustCompileSchema("tinder-export", `{
  "type": "object",
  "required": ["Usage"],
  "properties": {
    "Usage": {
      "type": "object",
      "properties": {
        "app_opens":         {"$ref": "#/definitions/dailyCounter"},
        "swipes_likes":      {"$ref": "#/definitions/dailyCounter"},
        "swipes_passes":     {"$ref": "#/definitions/dailyCounter"},
        "superlikes":        {"$ref": "#/definitions/dailyCounter"},
        "matches":           {"$ref": "#/definitions/dailyCounter"},
        "messages_sent":     {"$ref": "#/definitions/dailyCounter"},
        "messages_received": {"$ref": "#/definitions/dailyCounter"}
      }
    },
    "User": {
      "type": ["object", "null"],
      "properties": {
        "jobs":    {"type": ["array", "null"], "items": {"type": "object"}},
        "schools": {"type": ["array", "null"]}
      }
    },
    "Messages": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "properties": {
          "messages": {"type": ["array", "null"], "items": {"type": "object"}}
        }
      }
    },
    "Photos": {"type": ["array", "null"]}
  },
  "definitions": {
    "dailyCounter": {
      "type": ["object", "null"],
      "additionalProperties": {"type": ["number", "string", "null"]}
    }
  }
}`)

var hingeSchema = validation.MustCompileSchema("hinge-export", `{
  "type": "object",
  "properties": {
    "User": {
      "type": ["object", "null"],
      "properties": {
        "account":     {"type": ["object", "null"]},
        "profile":     {"type": ["object", "null"]},
        "preferences": {"type": ["object", "null"]},
        "location":    {"type": ["object", "null"]}
      }
    },
    "Matches": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "properties": {
          "like":  {"$ref": "#/definitions/events"},
          "match": {"$ref": "#/definitions/events"},
          "chats": {"$ref": "#/definitions/events"},
          "block": {"$ref": "#/definitions/events"}
        }
      }
    },
    "Prompts": {"type": ["array", "null"], "items": {"type": "object"}},
    "Media":   {"type": ["array", "null"], "items": {"type": "object"}}
  },
  "definitions": {
    "events": {"type": ["array", "null"], "items": {"type": "object"}}
  }
}`)
