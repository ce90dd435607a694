// Package listener turns the remote chat list into an ordered, de-duplicated
// stream of typed domain events by polling and diffing against per-chat
// cursors.
package listener

import (
	"github.com/oklog/ulid/v2"

	"github.com/sealbot/sealbot/internal/playerok"
)

// Kind identifies a domain event variant.
type Kind string

const (
	KindChatInitialized     Kind = "chat_initialized"
	KindNewMessage          Kind = "new_message"
	KindNewDeal             Kind = "new_deal"
	KindItemPaid            Kind = "item_paid"
	KindItemSent            Kind = "item_sent"
	KindDealConfirmed       Kind = "deal_confirmed"
	KindDealRolledBack      Kind = "deal_rolled_back"
	KindDealHasProblem      Kind = "deal_has_problem"
	KindDealProblemResolved Kind = "deal_problem_resolved"
	KindDealStatusChanged   Kind = "deal_status_changed"
)

// Event is one element of the stream handed to consumers. The concrete type
// is one of the structs below; Kind avoids type switches where only routing
// is needed.
type Event interface {
	ID() string
	Kind() Kind
	ChatID() string
}

type base struct {
	id   string
	kind Kind
	chat *playerok.Chat
}

func newBase(kind Kind, chat *playerok.Chat) base {
	return base{id: ulid.Make().String(), kind: kind, chat: chat}
}

func (b base) ID() string { return b.id }

func (b base) Kind() Kind { return b.kind }

func (b base) ChatID() string {
	if b.chat == nil {
		return ""
	}
	return b.chat.ID
}

// Chat returns the chat snapshot the event was observed in.
func (b base) Chat() *playerok.Chat { return b.chat }

// ChatInitialized acknowledges a chat present in the very first snapshot.
// It carries no message: consumers learn the existing chat set without
// reacting to old content.
type ChatInitialized struct{ base }

func NewChatInitialized(chat *playerok.Chat) ChatInitialized {
	return ChatInitialized{newBase(KindChatInitialized, chat)}
}

// NewMessage is a regular (non-sentinel) message arrival.
type NewMessage struct {
	base
	Message *playerok.Message
}

func NewNewMessage(msg *playerok.Message, chat *playerok.Chat) NewMessage {
	return NewMessage{base: newBase(KindNewMessage, chat), Message: msg}
}

type dealEvent struct {
	base
	Deal *playerok.Deal
}

func newDealEvent(kind Kind, deal *playerok.Deal, chat *playerok.Chat) dealEvent {
	return dealEvent{base: newBase(kind, chat), Deal: deal}
}

// NewDeal signals a deal observed for the first time (the buyer paid).
type NewDeal struct{ dealEvent }

// ItemPaid accompanies NewDeal: the item is paid and awaits delivery.
type ItemPaid struct{ dealEvent }

// ItemSent signals the seller marked the item as sent.
type ItemSent struct{ dealEvent }

// DealConfirmed signals the buyer confirmed receipt.
type DealConfirmed struct{ dealEvent }

// DealRolledBack signals the deal was refunded.
type DealRolledBack struct{ dealEvent }

// DealHasProblem signals a party reported a problem.
type DealHasProblem struct{ dealEvent }

// DealProblemResolved signals the reported problem was closed.
type DealProblemResolved struct{ dealEvent }

// DealStatusChanged accompanies every terminal-ish transition above so
// consumers can track status generically.
type DealStatusChanged struct{ dealEvent }

func NewNewDeal(deal *playerok.Deal, chat *playerok.Chat) NewDeal {
	return NewDeal{newDealEvent(KindNewDeal, deal, chat)}
}

func NewItemPaid(deal *playerok.Deal, chat *playerok.Chat) ItemPaid {
	return ItemPaid{newDealEvent(KindItemPaid, deal, chat)}
}

func NewItemSent(deal *playerok.Deal, chat *playerok.Chat) ItemSent {
	return ItemSent{newDealEvent(KindItemSent, deal, chat)}
}

func NewDealConfirmed(deal *playerok.Deal, chat *playerok.Chat) DealConfirmed {
	return DealConfirmed{newDealEvent(KindDealConfirmed, deal, chat)}
}

func NewDealRolledBack(deal *playerok.Deal, chat *playerok.Chat) DealRolledBack {
	return DealRolledBack{newDealEvent(KindDealRolledBack, deal, chat)}
}

func NewDealHasProblem(deal *playerok.Deal, chat *playerok.Chat) DealHasProblem {
	return DealHasProblem{newDealEvent(KindDealHasProblem, deal, chat)}
}

func NewDealProblemResolved(deal *playerok.Deal, chat *playerok.Chat) DealProblemResolved {
	return DealProblemResolved{newDealEvent(KindDealProblemResolved, deal, chat)}
}

func NewDealStatusChanged(deal *playerok.Deal, chat *playerok.Chat) DealStatusChanged {
	return DealStatusChanged{newDealEvent(KindDealStatusChanged, deal, chat)}
}
