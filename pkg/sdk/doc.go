// Package rendezvous provides an embedded Go client for the rendezvous match
// engine backed by Redis or Valkey with the search module.
//
// The client runs the same use cases as the HTTP server in-process:
// contexts and profile vectors, discovery, match sessions and their message logs.
//
//	client, _ := rendezvous.New(ctx, rendezvous.WithValkey("localhost:6379", ""))
//	_, _ = client.Contexts().Create(ctx, "founders", 768)
//	_, _ = client.Profiles().Upsert(ctx, "alice", "Builds payments infra")
//	_ = client.Profiles().UpsertEmbedding(ctx, "founders", "alice", vec)
//
//	matches, _ := client.Discover(ctx, "alice", "founders", rendezvous.WithCount(5))
//	sess, _, _ := client.Sessions().Connect(ctx, "alice", matches[0].UserID, "founders")
//
// # Conversations
//
// A Conversation merges the two delivery paths of a session log, pull and push,
// into one ordered view. Pull is authoritative: every push stream end triggers a
// pull that fills whatever the stream missed.
//
//	conv := client.Conversation(sess.ID, "alice")
//	_, _ = conv.Send(ctx, "hi!", "")
//	err := conv.Listen(ctx, func(m rendezvous.Message) { fmt.Println(m.Content) })
package rendezvous
