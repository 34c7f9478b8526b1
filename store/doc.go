// Package store defines the record types and persistence interfaces the
// authentication core depends on. The surrounding business application owns
// the real account database; it plugs in by implementing [AccountStore],
// [RefreshStore], and [ActivityStore]. The memory and postgres sub-packages
// ship ready-made implementations for single-node deployments and tests.
package store
