// Package push delivers newly created messages to the recipient's open WebSocket connections.
//
// A client opens GET /ws?token=<access token>. The Gate verifies the token before upgrading, then runs a
// Session for the connection. Each session owns an Outbox, an unbounded FIFO that the Registry stores
// under the authenticated user ID. The Gateway serializes a message once and hands the bytes to
// Registry.Broadcast, which enqueues them on every outbox of that user without blocking and drops
// outboxes whose session has ended.
//
// A session runs an egress loop (outbox to socket) and an ingress loop (socket frames, discarded). The
// first loop to finish ends the session; teardown removes exactly this session's outbox from the
// registry and closes the socket. Other sessions of the same user are unaffected.
package push
