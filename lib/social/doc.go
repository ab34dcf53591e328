// Copyright 2026 The Alcheme Authors
// SPDX-License-Identifier: Apache-2.0

// Package social implements the social graph: posts, likes, follows,
// comments, and the per-user counters derived from them.
//
// Every counter lives next to the edge documents it summarizes, and
// the two are only ever mutated inside one document-store
// transaction. A like toggle reads the edge, flips it, and adjusts
// the post's like_count atomically; a follow toggle writes both edge
// directions and both users' stats in one commit. Counters never go
// negative: a decrement that would cross zero floors there and logs
// an invariant violation, since it means the counter and its edges
// have already diverged.
package social
