package playerok

import "time"

// Deal statuses as reported by the remote.
const (
	DealPending         = "PENDING"
	DealPaid            = "PAID"
	DealSent            = "SENT"
	DealConfirmed       = "CONFIRMED"
	DealRolledBack      = "ROLLED_BACK"
	DealHasProblem      = "HAS_PROBLEM"
	DealProblemResolved = "PROBLEM_RESOLVED"
)

// Chat types and statuses accepted by the chats filter.
const (
	ChatTypeNotification = "NOTIFICATION"
	ChatTypePrivate      = "PRIVATE"

	ChatStatusNew      = "NEW"
	ChatStatusFinished = "FINISHED"
)

// User is a remote user reference embedded in chats, messages and deals.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Attachment is a file payload attached to a message.
type Attachment struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// Item is the marketplace listing a deal refers to.
type Item struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Transaction is the payment record attached to a completed deal.
type Transaction struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Provider string `json:"provider"`
}

// Deal is a remote transaction record associated with a chat.
type Deal struct {
	ID          string       `json:"id"`
	Status      string       `json:"status"`
	Direction   string       `json:"direction"`
	Item        *Item        `json:"item"`
	User        *User        `json:"user"`
	Transaction *Transaction `json:"transaction"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// Message is one chat message. Immutable once fetched. Deal is non-nil only
// for the system notices the remote embeds on deal lifecycle transitions.
type Message struct {
	ID        string      `json:"id"`
	ChatID    string      `json:"chatId"`
	Text      string      `json:"text"`
	CreatedAt time.Time   `json:"createdAt"`
	User      *User       `json:"user"`
	File      *Attachment `json:"file"`
	Deal      *Deal       `json:"deal"`
}

// Chat is a read-only snapshot of a conversation thread.
type Chat struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Status      string   `json:"status"`
	Users       []User   `json:"users"`
	LastMessage *Message `json:"lastMessage"`
	Unread      int      `json:"unreadMessagesCounter"`
}

// PageInfo is the remote's pagination marker.
type PageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

// ChatList is one page of chats, newest activity first.
type ChatList struct {
	Chats    []Chat
	PageInfo PageInfo
}

// Equal reports whether two snapshots describe the same chat-list state.
// It compares chat ids and last-message identity, which is what the diff
// engine needs to decide whether a tick has any work to do.
func (l *ChatList) Equal(other *ChatList) bool {
	if other == nil || len(l.Chats) != len(other.Chats) {
		return false
	}
	for i := range l.Chats {
		a, b := &l.Chats[i], &other.Chats[i]
		if a.ID != b.ID || a.Unread != b.Unread {
			return false
		}
		am, bm := a.LastMessage, b.LastMessage
		if (am == nil) != (bm == nil) {
			return false
		}
		if am != nil && (am.ID != bm.ID || !am.CreatedAt.Equal(bm.CreatedAt)) {
			return false
		}
	}
	return true
}

// MessageList is one page of chat messages, newest first.
type MessageList struct {
	Messages []Message
	PageInfo PageInfo
}

// DealList is one page of deals.
type DealList struct {
	Deals    []Deal
	PageInfo PageInfo
}

// Account holds the viewer identity returned by the remote for the
// configured token.
type Account struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	SupportChatID string `json:"supportChatId"`
	SystemChatID  string `json:"systemChatId"`
	UnreadChats   int    `json:"unreadChatsCounter"`
	IsBlocked     bool   `json:"isBlocked"`
	IsBlockedFor  string `json:"isBlockedFor"`
}
