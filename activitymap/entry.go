// Package activitymap turns climb activity events into flat audit entries.
// Each event type maps to the object it touched: an account, a credential,
// a login attempt, or a session or route in the owner's logbook.
package activitymap

import (
	"strings"
	"time"

	climb "github.com/goliatone/go-climb"
)

// Object types an entry can point at
const (
	ObjectAccount    = "account"
	ObjectCredential = "credential"
	ObjectLogin      = "login"
	ObjectSession    = "session"
	ObjectRoute      = "route"
)

// Channels group entries by the part of the service that produced them
const (
	ChannelAuth    = "auth"
	ChannelLogbook = "logbook"
)

// MetaActorType is added to the entry metadata when the actor type is known
const MetaActorType = "actor_type"

const anonymousActor = "anonymous"

// Entry is the audit line written for an activity event
type Entry struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// target says which object an event type touches and where its id lives.
// An empty metaKey means the id is the event user id.
type target struct {
	objectType string
	channel    string
	metaKey    string
}

var targets = map[climb.ActivityEventType]target{
	climb.ActivityEventRegistered:           {objectType: ObjectAccount, channel: ChannelAuth},
	climb.ActivityEventLoginSuccess:         {objectType: ObjectLogin, channel: ChannelAuth},
	climb.ActivityEventLoginFailure:         {objectType: ObjectLogin, channel: ChannelAuth, metaKey: "identifier"},
	climb.ActivityEventPasswordChanged:      {objectType: ObjectCredential, channel: ChannelAuth},
	climb.ActivityEventPasswordResetRequest: {objectType: ObjectCredential, channel: ChannelAuth},
	climb.ActivityEventPasswordResetSuccess: {objectType: ObjectCredential, channel: ChannelAuth},

	climb.ActivityEventSessionCreated: {objectType: ObjectSession, channel: ChannelLogbook, metaKey: climb.ActivityMetaSessionID},
	climb.ActivityEventSessionUpdated: {objectType: ObjectSession, channel: ChannelLogbook, metaKey: climb.ActivityMetaSessionID},
	climb.ActivityEventSessionDeleted: {objectType: ObjectSession, channel: ChannelLogbook, metaKey: climb.ActivityMetaSessionID},
	climb.ActivityEventRouteCreated:   {objectType: ObjectRoute, channel: ChannelLogbook, metaKey: climb.ActivityMetaRouteID},
	climb.ActivityEventRouteUpdated:   {objectType: ObjectRoute, channel: ChannelLogbook, metaKey: climb.ActivityMetaRouteID},
	climb.ActivityEventRouteDeleted:   {objectType: ObjectRoute, channel: ChannelLogbook, metaKey: climb.ActivityMetaRouteID},
}

// FromEvent maps event onto an audit entry. Unknown event types are kept
// with the account as their object so nothing is silently dropped.
func FromEvent(event climb.ActivityEvent, now func() time.Time) Entry {
	t, ok := targets[event.EventType]
	if !ok {
		t = target{objectType: ObjectAccount, channel: channelOf(event.EventType)}
	}

	entry := Entry{
		ActorID:    actorOf(event),
		Verb:       string(event.EventType),
		ObjectType: t.objectType,
		Channel:    t.channel,
		OccurredAt: event.OccurredAt,
	}

	metadata := make(map[string]any, len(event.Metadata)+1)
	for k, v := range event.Metadata {
		metadata[k] = v
	}

	if t.metaKey != "" {
		if id, ok := metadata[t.metaKey].(string); ok {
			entry.ObjectID = strings.TrimSpace(id)
			delete(metadata, t.metaKey)
		}
	}
	if entry.ObjectID == "" {
		entry.ObjectID = strings.TrimSpace(event.UserID)
	}

	if actorType := strings.TrimSpace(event.Actor.Type); actorType != "" {
		metadata[MetaActorType] = actorType
	}
	if len(metadata) > 0 {
		entry.Metadata = metadata
	}

	if entry.OccurredAt.IsZero() && now != nil {
		entry.OccurredAt = now()
	}
	entry.OccurredAt = entry.OccurredAt.UTC()

	return entry
}

func actorOf(event climb.ActivityEvent) string {
	if id := strings.TrimSpace(event.Actor.ID); id != "" {
		return id
	}
	if id := strings.TrimSpace(event.UserID); id != "" {
		return id
	}
	return anonymousActor
}

// channelOf falls back to the verb prefix, "auth.login.success" -> "auth"
func channelOf(eventType climb.ActivityEventType) string {
	prefix, _, _ := strings.Cut(string(eventType), ".")
	if prefix == "" {
		return ChannelAuth
	}
	return prefix
}
