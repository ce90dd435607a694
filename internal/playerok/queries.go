package playerok

// Persisted query hashes for read operations. Read operations go out as
// GETs with persistedQuery extensions; mutations POST their full query text.
//
// TODO: refresh these hashes from the live web client (devtools, network
// tab); the values below are placeholders and go stale whenever the site
// redeploys its query registry.
var persistedQueries = map[string]string{
	"userChats":    "8d9f3e0c4a1b52f7c6e8d0b9a4f2317e5c8a96d04b3f1e7a2c5d8091b6e4f3a2",
	"chatMessages": "1c6b9a4e2f8d05738e9c1a6b4d2f0e597a8c3b1d6e4f20a95c7b8d31e6a40f92",
	"chat":         "7e2a5c8f1b4d09638a5e7c2f9b1d40586e3a9c7b2d5f18049a6c3e8b5d2f7014",
	"deals":        "4f8b2e6a9c1d35072b8e4f6a1c9d5e382f7a0c4b8d6e1935a2c7f0b4e8d61359",
	"deal":         "9a3e6c1f4b8d27051e9a3c6f2b8d47096a1e5c3f9b2d80461c7a4e0f6b3d9258",
	"user":         "2d7f0b4e8a6c1935c2d7f1b5e9a3c6048d1f5b2e7a9c30586b4d8f1a5e2c9637",
}

// Full query texts for mutations and the viewer bootstrap.
var queries = map[string]string{
	"viewer": `query viewer {
  viewer {
    id
    username
    email
    role
    supportChatId
    systemChatId
    unreadChatsCounter
    isBlocked
    isBlockedFor
  }
}`,
	"updateDeal": `mutation updateDeal($input: UpdateItemDealInput!) {
  updateDeal(input: $input) {
    id
    status
    direction
    createdAt
    item { id name price }
    user { id username }
    transaction { id status provider }
  }
}`,
	"markChatAsRead": `mutation markChatAsRead($input: MarkChatAsReadInput!) {
  markChatAsRead(input: $input) {
    id
    type
    status
    unreadMessagesCounter
    users { id username }
  }
}`,
	"createChatMessage": `mutation createChatMessage($input: CreateChatMessageInput!) {
  createChatMessage(input: $input) {
    id
    text
    createdAt
    user { id username }
    file { id url filename }
    deal { id status }
  }
}`,
	"createChatMessageWithFile": `mutation createChatMessage($input: CreateChatMessageInput!, $file: Upload!) {
  createChatMessage(input: $input, file: $file) {
    id
    text
    createdAt
    user { id username }
    file { id url filename }
    deal { id status }
  }
}`,
}
