package listener

import "github.com/sealbot/sealbot/internal/playerok"

// Sentinel texts the remote embeds as system notices on deal transitions.
// These are exact machine-generated markers, never user-authored text.
const (
	sentinelItemPaid            = "{{ITEM_PAID}}"
	sentinelItemSent            = "{{ITEM_SENT}}"
	sentinelDealConfirmed       = "{{DEAL_CONFIRMED}}"
	sentinelDealRolledBack      = "{{DEAL_ROLLED_BACK}}"
	sentinelDealHasProblem      = "{{DEAL_HAS_PROBLEM}}"
	sentinelDealProblemResolved = "{{DEAL_PROBLEM_RESOLVED}}"
)

// Classify maps one message to its domain events. Sentinel texts with an
// attached deal expand to their lifecycle events; everything else, including
// a sentinel whose deal reference the remote failed to resolve, is a plain
// NewMessage.
func Classify(msg *playerok.Message, chat *playerok.Chat) []Event {
	if msg == nil {
		return nil
	}
	if msg.Deal != nil {
		switch msg.Text {
		case sentinelItemPaid:
			return []Event{NewNewDeal(msg.Deal, chat), NewItemPaid(msg.Deal, chat)}
		case sentinelItemSent:
			return []Event{NewItemSent(msg.Deal, chat)}
		case sentinelDealConfirmed:
			return []Event{NewDealConfirmed(msg.Deal, chat), NewDealStatusChanged(msg.Deal, chat)}
		case sentinelDealRolledBack:
			return []Event{NewDealRolledBack(msg.Deal, chat), NewDealStatusChanged(msg.Deal, chat)}
		case sentinelDealHasProblem:
			return []Event{NewDealHasProblem(msg.Deal, chat), NewDealStatusChanged(msg.Deal, chat)}
		case sentinelDealProblemResolved:
			return []Event{NewDealProblemResolved(msg.Deal, chat), NewDealStatusChanged(msg.Deal, chat)}
		}
	}
	return []Event{NewNewMessage(msg, chat)}
}

// opensDeal reports whether the message is the deal-opened sentinel with a
// resolvable deal attached.
func opensDeal(msg *playerok.Message) bool {
	return msg.Text == sentinelItemPaid && msg.Deal != nil
}
