// Package protocol defines the JSON messages exchanged over relay WebSockets.
//
// Every frame is an object with a "type" discriminator. Scoreboard and tablet
// apps have shipped several names for the same event and alternate field
// layouts; Decode folds them into one typed message per logical event so the
// router never sees a legacy shape.
//
// Inbound messages (client to relay):
//   - Join:      join-match, subscribe, join
//   - Leave:     leave-match, unsubscribe, leave
//   - Sync:      sync-match-data, match-update, sync
//   - Action:    match-action, action
//   - Delete:    delete-match
//   - ClearAll:  clear-all-matches
//   - Heartbeat: heartbeat, ping
//   - Response:  pin-validation-response, match-data-response,
//     game-number-response, match-update-response
//
// Anything else decodes to Unknown and is ignored by the router.
package protocol
