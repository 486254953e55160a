// Package redisrelay implements sessions.Relay on Redis so that any replica
// behind a load balancer can accept a delivery for a session whose stream is
// held by another replica.
//
// Design Notes
//   - Ownership: SET NX with a TTL on <prefix>owner:<id>, valued with the relay's node id
//   - Release: compare-and-delete script so a replica never drops another's claim
//   - Delivery: PUBLISH on <prefix>deliver:<id>; zero receivers means no owner
//   - Reception: one PubSub connection per relay, channels added on Claim
//
// Trade-offs
//
//	Pros: no sticky routing, stateless forwarding replicas
//	Cons: at-most-once; a forward racing a close is dropped
//
// Example:
//
//	relay, err := redisrelay.New(ctx, redisrelay.Config{RedisAddr: "localhost:6379"})
//	if err != nil { ... }
//	defer relay.Close()
package redisrelay
