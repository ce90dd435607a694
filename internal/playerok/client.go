package playerok

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

const graphqlPath = "/graphql"

// ChatsFilter narrows the chat listing. Zero values mean no filtering.
type ChatsFilter struct {
	Type   string
	Status string
}

// DealsFilter narrows the deal listing.
type DealsFilter struct {
	Statuses  []string
	Direction string
}

// Client is the typed gateway to the remote GraphQL API. It translates
// named operations into session requests and maps the JSON payloads into
// domain types. No caching beyond passthrough.
type Client struct {
	session   *Session
	accountID string
}

// NewClient wraps a session. Call Viewer once before listing chats or deals
// so the account id is available for their filters.
func NewClient(session *Session) *Client {
	return &Client{session: session}
}

// AccountID returns the viewer id learned from the last Viewer call.
func (c *Client) AccountID() string { return c.accountID }

// Viewer fetches the account behind the configured token. A null viewer in
// the response means the token no longer has a session.
func (c *Client) Viewer(ctx context.Context) (*Account, error) {
	body, err := c.session.PostJSON(ctx, graphqlPath, map[string]any{
		"operationName": "viewer",
		"query":         queries["viewer"],
		"variables":     map[string]any{},
	})
	if err != nil {
		return nil, err
	}
	var payload struct {
		Data struct {
			Viewer *Account `json:"viewer"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode viewer: %w", err)
	}
	if payload.Data.Viewer == nil {
		return nil, &UnauthorizedError{}
	}
	c.accountID = payload.Data.Viewer.ID
	return payload.Data.Viewer, nil
}

// Chats fetches one page of the account's chats, most recent activity
// first. Pass an empty afterCursor for the first page.
func (c *Client) Chats(ctx context.Context, count int, filter ChatsFilter, afterCursor string) (*ChatList, error) {
	vars := map[string]any{
		"pagination":       pagination(count, afterCursor),
		"filter":           map[string]any{"userId": c.accountID, "type": orNil(filter.Type), "status": orNil(filter.Status)},
		"hasSupportAccess": false,
	}
	body, err := c.persistedGet(ctx, "userChats", vars)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Data struct {
			Chats struct {
				Edges []struct {
					Node Chat `json:"node"`
				} `json:"edges"`
				PageInfo PageInfo `json:"pageInfo"`
			} `json:"chats"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode chats: %w", err)
	}
	list := &ChatList{PageInfo: payload.Data.Chats.PageInfo}
	for _, e := range payload.Data.Chats.Edges {
		list.Chats = append(list.Chats, e.Node)
	}
	return list, nil
}

// AllChats walks the pagination cursor until the remote reports no next
// page and returns the full chat collection.
func (c *Client) AllChats(ctx context.Context, filter ChatsFilter) ([]Chat, error) {
	var all []Chat
	cursor := ""
	for {
		page, err := c.Chats(ctx, 24, filter, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Chats...)
		if !page.PageInfo.HasNextPage {
			return all, nil
		}
		cursor = page.PageInfo.EndCursor
	}
}

// Chat fetches a single chat by id.
func (c *Client) Chat(ctx context.Context, chatID string) (*Chat, error) {
	body, err := c.persistedGet(ctx, "chat", map[string]any{
		"id":               chatID,
		"hasSupportAccess": false,
	})
	if err != nil {
		return nil, err
	}
	var payload struct {
		Data struct {
			Chat *Chat `json:"chat"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode chat: %w", err)
	}
	return payload.Data.Chat, nil
}

// ChatByUsername finds the chat whose counterparty has the given username,
// walking pages until found or exhausted. Returns nil when no chat matches.
func (c *Client) ChatByUsername(ctx context.Context, username string) (*Chat, error) {
	cursor := ""
	for {
		page, err := c.Chats(ctx, 24, ChatsFilter{}, cursor)
		if err != nil {
			return nil, err
		}
		for i := range page.Chats {
			for _, u := range page.Chats[i].Users {
				if strings.EqualFold(u.Username, username) {
					return &page.Chats[i], nil
				}
			}
		}
		if !page.PageInfo.HasNextPage {
			return nil, nil
		}
		cursor = page.PageInfo.EndCursor
	}
}

// ChatMessages fetches one page of a chat's messages, newest first.
func (c *Client) ChatMessages(ctx context.Context, chatID string, count int) (*MessageList, error) {
	vars := map[string]any{
		"pagination":         pagination(count, ""),
		"filter":             map[string]any{"chatId": chatID},
		"hasSupportAccess":   false,
		"showForbiddenImage": true,
	}
	body, err := c.persistedGet(ctx, "chatMessages", vars)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Data struct {
			ChatMessages struct {
				Edges []struct {
					Node Message `json:"node"`
				} `json:"edges"`
				PageInfo PageInfo `json:"pageInfo"`
			} `json:"chatMessages"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode chat messages: %w", err)
	}
	list := &MessageList{PageInfo: payload.Data.ChatMessages.PageInfo}
	for _, e := range payload.Data.ChatMessages.Edges {
		list.Messages = append(list.Messages, e.Node)
	}
	return list, nil
}

// Deals fetches one page of the account's deals.
func (c *Client) Deals(ctx context.Context, count int, filter DealsFilter, afterCursor string) (*DealList, error) {
	f := map[string]any{"userId": c.accountID, "direction": orNil(filter.Direction)}
	if len(filter.Statuses) > 0 {
		f["status"] = filter.Statuses
	} else {
		f["status"] = nil
	}
	vars := map[string]any{
		"pagination":         pagination(count, afterCursor),
		"filter":             f,
		"showForbiddenImage": true,
	}
	body, err := c.persistedGet(ctx, "deals", vars)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Data struct {
			Deals struct {
				Edges []struct {
					Node Deal `json:"node"`
				} `json:"edges"`
				PageInfo PageInfo `json:"pageInfo"`
			} `json:"deals"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode deals: %w", err)
	}
	list := &DealList{PageInfo: payload.Data.Deals.PageInfo}
	for _, e := range payload.Data.Deals.Edges {
		list.Deals = append(list.Deals, e.Node)
	}
	return list, nil
}

// Deal fetches a single deal by id.
func (c *Client) Deal(ctx context.Context, dealID string) (*Deal, error) {
	body, err := c.persistedGet(ctx, "deal", map[string]any{
		"id":                 dealID,
		"hasSupportAccess":   false,
		"showForbiddenImage": true,
	})
	if err != nil {
		return nil, err
	}
	var payload struct {
		Data struct {
			Deal *Deal `json:"deal"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode deal: %w", err)
	}
	return payload.Data.Deal, nil
}

// UpdateDeal transitions a deal to a new status (confirm, refund, resolve).
func (c *Client) UpdateDeal(ctx context.Context, dealID, status string) (*Deal, error) {
	body, err := c.session.PostJSON(ctx, graphqlPath, map[string]any{
		"operationName": "updateDeal",
		"query":         queries["updateDeal"],
		"variables": map[string]any{
			"input": map[string]any{"id": dealID, "status": status},
		},
	})
	if err != nil {
		return nil, err
	}
	var payload struct {
		Data struct {
			UpdateDeal *Deal `json:"updateDeal"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode update deal: %w", err)
	}
	return payload.Data.UpdateDeal, nil
}

// MarkChatAsRead marks every message in the chat as read.
func (c *Client) MarkChatAsRead(ctx context.Context, chatID string) (*Chat, error) {
	body, err := c.session.PostJSON(ctx, graphqlPath, map[string]any{
		"operationName": "markChatAsRead",
		"query":         queries["markChatAsRead"],
		"variables": map[string]any{
			"input": map[string]any{"chatId": chatID},
		},
	})
	if err != nil {
		return nil, err
	}
	var payload struct {
		Data struct {
			MarkChatAsRead *Chat `json:"markChatAsRead"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode mark chat as read: %w", err)
	}
	return payload.Data.MarkChatAsRead, nil
}

// SendMessage sends a text message to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) (*Message, error) {
	body, err := c.session.PostJSON(ctx, graphqlPath, map[string]any{
		"operationName": "createChatMessage",
		"query":         queries["createChatMessage"],
		"variables": map[string]any{
			"input": map[string]any{"chatId": chatID, "text": text},
		},
	})
	if err != nil {
		return nil, err
	}
	return decodeCreatedMessage(body)
}

// SendImage sends a single image attachment using the GraphQL multipart
// upload convention (operations + map + file part).
func (c *Client) SendImage(ctx context.Context, chatID, filePath string) (*Message, error) {
	operations, err := json.Marshal(map[string]any{
		"operationName": "createChatMessage",
		"query":         queries["createChatMessageWithFile"],
		"variables": map[string]any{
			"input": map[string]any{"chatId": chatID},
			"file":  nil,
		},
	})
	if err != nil {
		return nil, err
	}
	fileMap, _ := json.Marshal(map[string][]string{"1": {"variables.file"}})

	body, err := c.session.PostMultipart(ctx, graphqlPath, map[string]string{
		"operations": string(operations),
		"map":        string(fileMap),
	}, filePath)
	if err != nil {
		return nil, err
	}
	return decodeCreatedMessage(body)
}

func decodeCreatedMessage(body []byte) (*Message, error) {
	var payload struct {
		Data struct {
			CreateChatMessage *Message `json:"createChatMessage"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode sent message: %w", err)
	}
	return payload.Data.CreateChatMessage, nil
}

// persistedGet issues a persisted-query GET with variables and extensions
// carried as query parameters, the way the web client does.
func (c *Client) persistedGet(ctx context.Context, op string, variables any) ([]byte, error) {
	vars, err := json.Marshal(variables)
	if err != nil {
		return nil, fmt.Errorf("marshal variables: %w", err)
	}
	ext, _ := json.Marshal(map[string]any{
		"persistedQuery": map[string]any{"version": 1, "sha256Hash": persistedQueries[op]},
	})
	params := url.Values{
		"operationName": {op},
		"variables":     {string(vars)},
		"extensions":    {string(ext)},
	}
	return c.session.Get(ctx, graphqlPath, params)
}

func pagination(count int, after string) map[string]any {
	p := map[string]any{"first": count}
	if after != "" {
		p["after"] = after
	} else {
		p["after"] = nil
	}
	return p
}

func orNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
