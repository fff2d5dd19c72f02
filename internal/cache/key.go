package cache

import (
	"strings"
	"time"
)

// Kind is the entity kind a cache key refers to.
type Kind string

const (
	KindChats    Kind = "chats"
	KindMessages Kind = "messages"
)

// Key identifies a cached collection: an entity kind plus an optional parent id.
type Key struct {
	Kind  Kind
	Scope string
}

// ChatsKey is the key of the chat list.
func ChatsKey() Key {
	return Key{Kind: KindChats}
}

// MessagesKey is the key of the message list of one chat.
func MessagesKey(chatID string) Key {
	return Key{Kind: KindMessages, Scope: chatID}
}

func (k Key) String() string {
	if k.Scope == "" {
		return string(k.Kind)
	}
	return string(k.Kind) + ":" + k.Scope
}

// ParseKey is the inverse of Key.String.
func ParseKey(s string) (Key, bool) {
	kind, scope, _ := strings.Cut(s, ":")
	switch Kind(kind) {
	case KindChats:
		if scope != "" {
			return Key{}, false
		}
		return ChatsKey(), true
	case KindMessages:
		if scope == "" {
			return Key{}, false
		}
		return Key{Kind: KindMessages, Scope: scope}, true
	default:
		return Key{}, false
	}
}

// Policy returns how long an entry of a given kind stays fresh after a fetch.
// A zero window means every read refetches unless a fetch is in flight.
type Policy func(Kind) time.Duration

// DefaultChatsWindow is how long the chat list is served without refetching.
const DefaultChatsWindow = 5 * time.Minute

// DefaultPolicy keeps chats fresh for chatsWindow and messages not at all.
func DefaultPolicy(chatsWindow time.Duration) Policy {
	return func(kind Kind) time.Duration {
		if kind == KindChats {
			return chatsWindow
		}
		return 0
	}
}
