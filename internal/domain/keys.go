package domain

// KeyPrefix namespaces every key the service writes.
const KeyPrefix = "rendezvous:"

// Key patterns:
//
//	rendezvous:context:{name}            context metadata hash
//	rendezvous:emb:{context}:idx         FT index over the context's embeddings
//	rendezvous:emb:{context}:{user}      embedding hash
//	rendezvous:profile:{user}            profile hash
//	rendezvous:flagged                   set of flagged user ids
//	rendezvous:session:{id}              session hash
//	rendezvous:pair:{pairKey}            active session id for an unordered pair
//	rendezvous:user:{user}:sessions      zset of session ids by creation time
//	rendezvous:session:{id}:log          message stream
//	rendezvous:session:{id}:events       push channel
//	rendezvous:session:{id}:nonce:...    idempotency record

// ContextKey is the metadata hash of a matching context.
func ContextKey(name string) string { return KeyPrefix + "context:" + name }

// EmbeddingIndex is the FT index name for a context.
func EmbeddingIndex(contextName string) string { return EmbeddingPrefix(contextName) + "idx" }

// EmbeddingPrefix is the key prefix covered by a context's index.
func EmbeddingPrefix(contextName string) string { return KeyPrefix + "emb:" + contextName + ":" }

// EmbeddingKey is the hash holding one user's vector in a context.
func EmbeddingKey(contextName, userID string) string { return EmbeddingPrefix(contextName) + userID }

// ProfileKey is the profile hash of a user.
func ProfileKey(userID string) string { return KeyPrefix + "profile:" + userID }

// FlaggedKey is the set of flagged user ids.
const FlaggedKey = KeyPrefix + "flagged"

// SessionKey is the hash of a match session.
func SessionKey(id string) string { return KeyPrefix + "session:" + id }

// PairLockKey guards uniqueness of the active session for a pair.
func PairLockKey(pairKey string) string { return KeyPrefix + "pair:" + pairKey }

// UserSessionsKey indexes a user's sessions by creation time.
func UserSessionsKey(userID string) string { return KeyPrefix + "user:" + userID + ":sessions" }

// MessageLogKey is the append-only message stream of a session.
func MessageLogKey(sessionID string) string { return SessionKey(sessionID) + ":log" }

// EventsChannel is the pub/sub channel of a session.
func EventsChannel(sessionID string) string { return SessionKey(sessionID) + ":events" }

// NonceKey records an idempotency key of a sender within a session.
func NonceKey(sessionID, senderID, key string) string {
	return SessionKey(sessionID) + ":nonce:" + senderID + ":" + key
}
